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
	"fmt"
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/tool"
	"trpc.group/trpc-go/trpc-workflow-go/tool/function"
)

type clockInput struct {
	Timezone string `json:"timezone,omitempty" description:"IANA time zone, e.g. Asia/Shanghai"`
}

type clockOutput struct {
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
}

func currentTime(_ context.Context, in clockInput) (clockOutput, error) {
	loc := time.Local
	if in.Timezone != "" {
		l, err := time.LoadLocation(in.Timezone)
		if err != nil {
			return clockOutput{}, fmt.Errorf("unknown time zone %q", in.Timezone)
		}
		loc = l
	}
	now := time.Now().In(loc)
	return clockOutput{Time: now.Format(time.RFC3339), Timezone: loc.String()}, nil
}

type wordCountInput struct {
	Text string `json:"text"`
}

func wordCount(_ context.Context, in wordCountInput) (int, error) {
	n, inWord := 0, false
	for _, r := range in.Text {
		space := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !space && !inWord {
			n++
		}
		inWord = !space
	}
	return n, nil
}

func builtinTools() tool.ToolSet {
	return tool.NewToolSet("builtin",
		function.NewFunctionTool(currentTime,
			function.WithName("current_time"),
			function.WithDescription("Returns the current time, optionally in a given time zone.")),
		function.NewFunctionTool(wordCount,
			function.WithName("word_count"),
			function.WithDescription("Counts the words of a text.")),
	)
}
