//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"trpc.group/trpc-go/trpc-workflow-go/config"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
)

func newValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Compile a workflow definition and report its structure",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("validate: expected exactly one definition file")
			}
			return validateFile(cmd.Root().Writer, cmd.Args().First())
		},
	}
}

func validateFile(w io.Writer, path string) error {
	def, err := config.LoadDefinition(path)
	if err != nil {
		return err
	}
	plan, err := graph.NewBuilder().Compile(def)
	if err != nil {
		return err
	}
	name := def.Name
	if name == "" {
		name = path
	}
	fmt.Fprintf(w, "Workflow: %s\n", name)
	fmt.Fprintf(w, "  nodes: %d, edges: %d\n", len(def.Nodes), len(def.Edges))
	fmt.Fprintf(w, "  entry point: %s\n", plan.EntryPoint())
	cycles := plan.Cycles()
	problematic := plan.ProblematicCycles()
	fmt.Fprintf(w, "  cycles: %d (%d without a conditional exit)\n", len(cycles), len(problematic))
	for _, c := range problematic {
		fmt.Fprintf(w, "    WARNING: %s\n", c)
	}
	fmt.Fprintln(w, "  valid")
	return nil
}
