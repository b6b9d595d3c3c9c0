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
	"os"
	"path/filepath"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/urfave/cli/v3"

	"trpc.group/trpc-go/trpc-workflow-go/config"
	"trpc.group/trpc-go/trpc-workflow-go/engine"
	wmsink "trpc.group/trpc-go/trpc-workflow-go/event/watermill"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge"
	kinmemory "trpc.group/trpc-go/trpc-workflow-go/knowledge/inmemory"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model/openai"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/monitor"
	"trpc.group/trpc-go/trpc-workflow-go/tool"
	"trpc.group/trpc-go/trpc-workflow-go/tracker"
)

func newRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Execute a workflow definition, or a chat when no file is given",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "message",
				Aliases:  []string{"m"},
				Usage:    "User message that starts the run",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "stream",
				Usage: "Print tokens as they are generated",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "User id recorded with the run",
				Value: "cli",
			},
			&cli.StringFlag{
				Name:  "conversation",
				Usage: "Conversation id",
			},
			&cli.StringFlag{
				Name:  "system-prompt",
				Usage: "System prompt for model-call nodes without one",
			},
			&cli.BoolFlag{
				Name:  "enable-tools",
				Usage: "Offer the built-in tools to the model",
			},
			&cli.StringSliceFlag{
				Name:  "tool",
				Usage: "Tool name glob admitted when tools are enabled",
			},
			&cli.IntFlag{
				Name:  "max-tool-calls",
				Usage: "Successful tool calls allowed before the run is finalized",
			},
			&cli.BoolFlag{
				Name:  "memory",
				Usage: "Window the transcript and summarize older turns",
			},
			&cli.StringSliceFlag{
				Name:  "doc",
				Usage: "Text file to retrieve context from; enables retrieval",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() > 1 {
				return errors.New("run: expected at most one definition file")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			svc, err := setupServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			eng, req, err := prepareRun(cmd, cfg, svc)
			if err != nil {
				return err
			}
			defer eng.Close()

			w := cmd.Root().Writer
			if cmd.Bool("stream") {
				return streamRun(ctx, w, eng, req, cmd.String("user"))
			}
			res, err := eng.Execute(ctx, req, cmd.String("user"))
			if err != nil {
				return err
			}
			fmt.Fprintln(w, res.Response)
			printSummary(w, res)
			return nil
		},
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	config.LoadEnv(cmd.StringSlice("env-file")...)
	var (
		cfg *config.Config
		err error
	)
	if path := cmd.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg = config.Default()
		err = cfg.Validate()
	}
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if l := cmd.String("log-level"); l != "" {
		level = l
	}
	log.SetLevel(level)
	return cfg, nil
}

func prepareRun(cmd *cli.Command, cfg *config.Config, svc *services) (*engine.Engine, *engine.Request, error) {
	modelOpts := []openai.Option{openai.WithAPIKey(cfg.Model.APIKey)}
	if cfg.Model.BaseURL != "" {
		modelOpts = append(modelOpts, openai.WithBaseURL(cfg.Model.BaseURL))
	}
	provider := &engine.StaticProvider{
		DefaultModel: openai.New(cfg.Model.Name, modelOpts...),
		ToolSets:     []tool.ToolSet{builtinTools()},
	}

	req := &engine.Request{
		Message:        cmd.String("message"),
		Stream:         cmd.Bool("stream"),
		ConversationID: cmd.String("conversation"),
		SystemPrompt:   cmd.String("system-prompt"),
		EnableTools:    cmd.Bool("enable-tools"),
		ToolNames:      cmd.StringSlice("tool"),
		EnableMemory:   cmd.Bool("memory"),
	}
	maxToolCalls := cfg.Engine.MaxToolCalls
	if cmd.IsSet("max-tool-calls") {
		maxToolCalls = int(cmd.Int("max-tool-calls"))
	}
	req.MaxToolCalls = &maxToolCalls

	if docs := cmd.StringSlice("doc"); len(docs) > 0 {
		kb, ids, err := loadDocuments(docs)
		if err != nil {
			return nil, nil, err
		}
		provider.Knowledge = kb
		req.EnableRetrieval = true
		req.DocumentIDs = ids
	}

	if path := cmd.Args().First(); path != "" {
		def, err := config.LoadDefinition(path)
		if err != nil {
			return nil, nil, err
		}
		req.Nodes, req.Edges, req.EntryPoint = def.Nodes, def.Edges, def.EntryPoint
	}

	eng, err := engine.New(
		engine.WithProvider(provider),
		engine.WithBuilder(graph.NewBuilder(
			graph.WithMaxSteps(cfg.Engine.MaxSteps),
			graph.WithStreamBufferSize(cfg.Engine.StreamBufferSize),
			graph.WithPlanCacheSize(cfg.Engine.PlanCacheSize),
		)),
		engine.WithDefinitionStore(svc.store),
		engine.WithTracker(tracker.New(
			tracker.WithRecordStore(svc.store),
			tracker.WithMonitor(monitor.New()),
			tracker.WithSink(svc.sink),
		)),
		engine.WithDefaults(cfg.Model.Defaults()),
		engine.WithPricing(cfg.Pricing),
		engine.WithPoolSize(cfg.Engine.PoolSize),
	)
	if err != nil {
		return nil, nil, err
	}
	return eng, req, nil
}

func streamRun(ctx context.Context, w io.Writer, eng *engine.Engine, req *engine.Request, userID string) error {
	chunks, errc := eng.ExecuteStream(ctx, req, userID)
	for c := range chunks {
		switch c.Type {
		case engine.ChunkToken:
			fmt.Fprint(w, c.Content)
		case engine.ChunkComplete:
			fmt.Fprintln(w)
		case engine.ChunkDone:
			if c.Result != nil {
				printSummary(w, c.Result)
			}
		}
	}
	return <-errc
}

func printSummary(w io.Writer, res *engine.ExecutionResult) {
	fmt.Fprintf(w, "\n[%s %s] tokens=%d (in %d, out %d) tool_calls=%d cost=%.6f duration=%s\n",
		res.WorkflowType, res.ExecutionID, res.Usage.TotalTokens, res.Usage.PromptTokens,
		res.Usage.CompletionTokens, res.ToolCallCount, res.Cost, res.Duration)
	for key, msg := range res.NodeErrors {
		fmt.Fprintf(w, "  %s: %s\n", key, msg)
	}
}

// loadDocuments indexes text files by base name.
func loadDocuments(paths []string) (*kinmemory.Retriever, []string, error) {
	kb := kinmemory.New()
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("read document %s: %w", p, err)
		}
		id := filepath.Base(p)
		kb.Add(&knowledge.Document{ID: id, Name: id, Content: string(data)})
		ids = append(ids, id)
	}
	return kb, ids, nil
}

func logEvents(messages <-chan *message.Message) {
	for msg := range messages {
		e, err := wmsink.Decode(msg)
		if err != nil {
			log.Warnf("event: %v", err)
		} else {
			log.Infof("event %s execution=%s priority=%s", e.Type, e.ExecutionID, e.Priority)
		}
		msg.Ack()
	}
}
