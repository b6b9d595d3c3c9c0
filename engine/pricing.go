//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package engine

import "trpc.group/trpc-go/trpc-workflow-go/model"

// Price is the cost of 1000 tokens.
type Price struct {
	InputPer1K  float64 `json:"input_per_1k" yaml:"input_per_1k"`
	OutputPer1K float64 `json:"output_per_1k" yaml:"output_per_1k"`
}

// Pricing maps model names to prices.
type Pricing map[string]Price

// Cost returns the cost of usage on modelName, or 0 for unpriced models.
func (p Pricing) Cost(modelName string, usage model.Usage) float64 {
	price, ok := p[modelName]
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)/1000*price.InputPer1K +
		float64(usage.CompletionTokens)/1000*price.OutputPer1K
}
