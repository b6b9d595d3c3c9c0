//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/engine"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, graph.DefaultMaxSteps, cfg.Engine.MaxSteps)
	assert.Equal(t, graph.DefaultPlanCacheSize, cfg.Engine.PlanCacheSize)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("WORKFLOW_TEST_REDIS", "redis://localhost:6379/2")
	t.Setenv("WORKFLOW_TEST_KEY", "sk-test")
	path := writeFile(t, "config.yaml", `
log:
  level: debug
engine:
  max_steps: 40
model:
  name: gpt-4o
  api_key: ${WORKFLOW_TEST_KEY}
  temperature: 0.3
store:
  backend: redis
  redis_url: ${WORKFLOW_TEST_REDIS}
pricing:
  gpt-4o:
    input_per_1k: 0.005
    output_per_1k: 0.015
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 40, cfg.Engine.MaxSteps)
	assert.Equal(t, engine.DefaultPoolSize, cfg.Engine.PoolSize)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, "openai", cfg.Model.Provider)
	require.NotNil(t, cfg.Model.Temperature)
	assert.Equal(t, 0.3, *cfg.Model.Temperature)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Store.RedisURL)
	assert.Equal(t, 0.015, cfg.Pricing["gpt-4o"].OutputPer1K)

	d := cfg.Model.Defaults()
	assert.Equal(t, "gpt-4o", d.Model)
	assert.Equal(t, "openai", d.Provider)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad level", "log: {level: loud}"},
		{"redis without url", "store: {backend: redis}"},
		{"postgres without dsn", "store: {backend: postgres}"},
		{"unknown backend", "store: {backend: mongo}"},
		{"kafka without brokers", "events: {backend: kafka}"},
		{"bad broker", "events: {backend: kafka, brokers: ['not a broker']}"},
		{"temperature too high", "model: {temperature: 3}"},
		{"zero steps", "engine: {max_steps: 0}"},
		{"malformed", "log: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_Kafka(t *testing.T) {
	cfg, err := Parse([]byte("events: {backend: kafka, brokers: ['localhost:9092'], topic: runs}"))
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Events.Brokers)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	path := writeFile(t, ".env", "WORKFLOW_TEST_DOTENV=loaded\n")
	t.Setenv("WORKFLOW_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("WORKFLOW_TEST_DOTENV"))
	LoadEnv(path, filepath.Join(t.TempDir(), "missing.env"))
	assert.Equal(t, "loaded", os.Getenv("WORKFLOW_TEST_DOTENV"))
}

func TestLoadDefinition(t *testing.T) {
	yamlPath := writeFile(t, "flow.yaml", `
name: review
entry_point: draft
nodes:
  - id: draft
    type: llm
    config:
      system_prompt: Draft an answer.
  - id: gate
    type: loop
    config:
      max_iterations: 2
edges:
  - source: draft
    target: gate
  - source: gate
    target: draft
    condition: loop_gate_continue
  - source: gate
    target: END
    condition: not loop_gate_continue
`)
	def, err := LoadDefinition(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "review", def.Name)
	assert.Equal(t, "draft", def.EntryPoint)
	require.Len(t, def.Nodes, 2)
	assert.Equal(t, 2, def.Nodes[1].Config["max_iterations"])
	assert.Equal(t, "loop_gate_continue", def.Edges[1].Condition)

	jsonPath := writeFile(t, "flow.json", `{"nodes":[{"id":"a","type":"llm"}],"edges":[{"source":"a","target":"END"}]}`)
	def, err = LoadDefinition(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "a", def.Nodes[0].ID)

	_, err = LoadDefinition(writeFile(t, "flow.txt", "x"))
	assert.Error(t, err)

	_, err = LoadDefinition(writeFile(t, "bad.json", `{"nodes":[]}`))
	assert.ErrorIs(t, err, graph.ErrNoNodes)
}
