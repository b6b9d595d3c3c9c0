//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package config loads the runtime configuration of the workflow engine
// from YAML files, with ${VAR} expansion from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"trpc.group/trpc-go/trpc-workflow-go/engine"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/log"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Event sink backends.
const (
	EventsNone   = "none"
	EventsMemory = "memory"
	EventsKafka  = "kafka"
)

// Config is the engine configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Engine    EngineConfig    `yaml:"engine"`
	Model     ModelConfig     `yaml:"model"`
	Store     StoreConfig     `yaml:"store"`
	Events    EventsConfig    `yaml:"events"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Pricing   engine.Pricing  `yaml:"pricing"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error fatal"`
}

// EngineConfig bounds runs.
type EngineConfig struct {
	MaxSteps         int `yaml:"max_steps" validate:"min=1"`
	StreamBufferSize int `yaml:"stream_buffer_size" validate:"min=1"`
	PoolSize         int `yaml:"pool_size" validate:"min=1"`
	MaxToolCalls     int `yaml:"max_tool_calls" validate:"min=0"`
	PlanCacheSize    int `yaml:"plan_cache_size" validate:"min=1"`
}

// ModelConfig selects the default model.
type ModelConfig struct {
	Provider     string   `yaml:"provider" validate:"required"`
	Name         string   `yaml:"name" validate:"required"`
	APIKey       string   `yaml:"api_key"`
	BaseURL      string   `yaml:"base_url" validate:"omitempty,url"`
	Temperature  *float64 `yaml:"temperature" validate:"omitempty,min=0,max=2"`
	MaxTokens    *int     `yaml:"max_tokens" validate:"omitempty,min=1"`
	SystemPrompt string   `yaml:"system_prompt"`
}

// Defaults converts c into engine request defaults.
func (c ModelConfig) Defaults() engine.Defaults {
	return engine.Defaults{
		Provider:     c.Provider,
		Model:        c.Name,
		Temperature:  c.Temperature,
		MaxTokens:    c.MaxTokens,
		SystemPrompt: c.SystemPrompt,
	}
}

// StoreConfig selects the definition and record store.
type StoreConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=memory redis postgres"`
	RedisURL    string `yaml:"redis_url" validate:"required_if=Backend redis"`
	PostgresDSN string `yaml:"postgres_dsn" validate:"required_if=Backend postgres"`
	KeyPrefix   string `yaml:"key_prefix"`
}

// EventsConfig selects the lifecycle event sink.
type EventsConfig struct {
	Backend string   `yaml:"backend" validate:"oneof=none memory kafka"`
	Brokers []string `yaml:"brokers" validate:"required_if=Backend kafka,dive,hostname_port"`
	Topic   string   `yaml:"topic"`
}

// TelemetryConfig configures OTLP export. Empty endpoints disable export.
type TelemetryConfig struct {
	TracesEndpoint  string `yaml:"traces_endpoint"`
	MetricsEndpoint string `yaml:"metrics_endpoint"`
	ServiceName     string `yaml:"service_name"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Engine: EngineConfig{
			MaxSteps:         graph.DefaultMaxSteps,
			StreamBufferSize: graph.DefaultStreamBufferSize,
			PoolSize:         engine.DefaultPoolSize,
			MaxToolCalls:     10,
			PlanCacheSize:    graph.DefaultPlanCacheSize,
		},
		Model:  ModelConfig{Provider: "openai", Name: "gpt-4o-mini", APIKey: os.Getenv("OPENAI_API_KEY")},
		Store:  StoreConfig{Backend: StoreMemory},
		Events: EventsConfig{Backend: EventsNone},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks c.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LoadEnv loads .env files into the environment. Missing files are
// skipped.
func LoadEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			log.Warnf("config: load %s: %v", p, err)
		}
	}
}

// Load reads the YAML file at path over Default and validates the result.
// ${VAR} references are expanded from the environment first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML config data over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
