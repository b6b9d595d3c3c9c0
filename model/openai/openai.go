//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package openai provides an OpenAI-compatible model handle.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/tool"
)

const (
	functionToolType string = "function"
	providerName     string = "openai"
	apiKeyEnv        string = "OPENAI_API_KEY"
	baseURLEnv       string = "OPENAI_BASE_URL"
)

// Model implements model.Model over the chat completions API.
type Model struct {
	client              openai.Client
	name                string
	channelBufferSize   int
	chatRequestCallback ChatRequestCallbackFunc
	chatChunkCallback   ChatChunkCallbackFunc
	extraFields         map[string]any
}

var _ model.Model = (*Model)(nil)

// New creates a new OpenAI-compatible model.
func New(name string, opts ...Option) *Model {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.APIKey == "" {
		o.APIKey = os.Getenv(apiKeyEnv)
	}
	if o.BaseURL == "" {
		o.BaseURL = os.Getenv(baseURLEnv)
	}

	var clientOpts []openaiopt.RequestOption
	if o.APIKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.APIKey))
	}
	if o.BaseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.BaseURL))
	}
	httpClient := o.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	clientOpts = append(clientOpts, openaiopt.WithHTTPClient(httpClient))
	clientOpts = append(clientOpts, o.OpenAIOptions...)

	return &Model{
		client:              openai.NewClient(clientOpts...),
		name:                name,
		channelBufferSize:   o.ChannelBufferSize,
		chatRequestCallback: o.ChatRequestCallback,
		chatChunkCallback:   o.ChatChunkCallback,
		extraFields:         o.ExtraFields,
	}
}

// Info implements the model.Model interface.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name, Provider: providerName}
}

// GenerateContent implements the model.Model interface.
func (m *Model) GenerateContent(
	ctx context.Context,
	request *model.Request,
) (<-chan *model.Response, error) {
	if request == nil {
		return nil, errors.New("request cannot be nil")
	}

	responseChan := make(chan *model.Response, m.channelBufferSize)
	chatRequest, opts := m.buildChatRequest(request)

	go func() {
		defer close(responseChan)

		if m.chatRequestCallback != nil {
			m.chatRequestCallback(ctx, &chatRequest)
		}
		if request.Stream {
			m.handleStreamingResponse(ctx, chatRequest, responseChan, opts...)
		} else {
			m.handleNonStreamingResponse(ctx, chatRequest, responseChan, opts...)
		}
	}()

	return responseChan, nil
}

func (m *Model) buildChatRequest(request *model.Request) (openai.ChatCompletionNewParams, []openaiopt.RequestOption) {
	chatRequest := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.name),
		Messages: convertMessages(request.Messages),
		Tools:    convertTools(request.Tools),
	}
	if request.MaxTokens != nil {
		chatRequest.MaxCompletionTokens = openai.Int(int64(*request.MaxTokens))
	}
	if request.Temperature != nil {
		chatRequest.Temperature = openai.Float(*request.Temperature)
	}
	if request.Stream {
		chatRequest.StreamOptions = openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		}
	}
	var opts []openaiopt.RequestOption
	for key, value := range m.extraFields {
		opts = append(opts, openaiopt.WithJSONSet(key, value))
	}
	return chatRequest, opts
}

func convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result[i] = openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			}
		case model.RoleAssistant:
			assistantMsg := &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: convertToolCalls(msg.ToolCalls),
			}
			if msg.Content != "" {
				assistantMsg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			result[i] = openai.ChatCompletionMessageParamUnion{OfAssistant: assistantMsg}
		case model.RoleTool:
			result[i] = openai.ChatCompletionMessageParamUnion{
				OfTool: &openai.ChatCompletionToolMessageParam{
					Content: openai.ChatCompletionToolMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
					ToolCallID: msg.ToolID,
				},
			}
		default: // Unknown roles are sent as user turns.
			result[i] = openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			}
		}
	}
	return result
}

func convertToolCalls(toolCalls []model.ToolCall) []openai.ChatCompletionMessageToolCallParam {
	var result []openai.ChatCompletionMessageToolCallParam
	for _, toolCall := range toolCalls {
		result = append(result, openai.ChatCompletionMessageToolCallParam{
			ID: toolCall.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      toolCall.Function.Name,
				Arguments: string(toolCall.Function.Arguments),
			},
		})
	}
	return result
}

func convertTools(tools map[string]tool.Tool) []openai.ChatCompletionToolParam {
	if len(tools) == 0 {
		return nil
	}
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	// Stable order keeps requests reproducible.
	sort.Strings(names)

	result := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, name := range names {
		declaration := tools[name].Declaration()
		if declaration == nil {
			continue
		}
		var parameters shared.FunctionParameters
		if declaration.InputSchema != nil {
			schemaBytes, err := json.Marshal(declaration.InputSchema)
			if err != nil {
				log.Errorf("failed to marshal tool schema for %s: %v", name, err)
				continue
			}
			if err := json.Unmarshal(schemaBytes, &parameters); err != nil {
				log.Errorf("failed to unmarshal tool schema for %s: %v", name, err)
				continue
			}
		}
		result = append(result, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        name,
				Description: openai.String(declaration.Description),
				Parameters:  parameters,
			},
		})
	}
	return result
}

// handleStreamingResponse forwards content deltas as partial responses and
// finishes with one accumulated response.
func (m *Model) handleStreamingResponse(
	ctx context.Context,
	chatRequest openai.ChatCompletionNewParams,
	responseChan chan<- *model.Response,
	opts ...openaiopt.RequestOption,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, chatRequest, opts...)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if m.chatChunkCallback != nil {
			m.chatChunkCallback(ctx, &chatRequest, &chunk)
		}
		// Tool call deltas surface only in the final response.
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		partial := &model.Response{
			ID:        chunk.ID,
			Model:     chunk.Model,
			Timestamp: time.Now(),
			IsPartial: true,
			Choices: []model.Choice{{
				Delta: model.Message{
					Role:    model.RoleAssistant,
					Content: chunk.Choices[0].Delta.Content,
				},
			}},
		}
		select {
		case responseChan <- partial:
		case <-ctx.Done():
			return
		}
	}

	m.sendFinalResponse(ctx, stream, acc, responseChan)
}

func (m *Model) sendFinalResponse(
	ctx context.Context,
	stream *ssestream.Stream[openai.ChatCompletionChunk],
	acc openai.ChatCompletionAccumulator,
	responseChan chan<- *model.Response,
) {
	var rsp *model.Response
	if err := stream.Err(); err != nil {
		rsp = &model.Response{
			Error: &model.ResponseError{
				Message: err.Error(),
				Type:    model.ErrorTypeStreamError,
			},
			Timestamp: time.Now(),
			Done:      true,
		}
	} else {
		rsp = convertCompletion(acc.ChatCompletion)
	}
	select {
	case responseChan <- rsp:
	case <-ctx.Done():
	}
}

func (m *Model) handleNonStreamingResponse(
	ctx context.Context,
	chatRequest openai.ChatCompletionNewParams,
	responseChan chan<- *model.Response,
	opts ...openaiopt.RequestOption,
) {
	var rsp *model.Response
	chatCompletion, err := m.client.Chat.Completions.New(ctx, chatRequest, opts...)
	if err != nil {
		rsp = &model.Response{
			Error: &model.ResponseError{
				Message: err.Error(),
				Type:    model.ErrorTypeAPIError,
			},
			Timestamp: time.Now(),
			Done:      true,
		}
	} else {
		rsp = convertCompletion(*chatCompletion)
	}
	select {
	case responseChan <- rsp:
	case <-ctx.Done():
	}
}

// convertCompletion maps a full completion, streamed or not, onto a final
// model.Response.
func convertCompletion(completion openai.ChatCompletion) *model.Response {
	usage := completionUsageToModelUsage(completion.Usage)
	response := &model.Response{
		ID:        completion.ID,
		Model:     completion.Model,
		Timestamp: time.Now(),
		Done:      true,
		Choices:   make([]model.Choice, len(completion.Choices)),
	}
	if !usage.IsZero() {
		response.Usage = &usage
	}
	for i, choice := range completion.Choices {
		msg := model.Message{
			Role:         model.RoleAssistant,
			Content:      choice.Message.Content,
			FinishReason: choice.FinishReason,
		}
		for j, toolCall := range choice.Message.ToolCalls {
			// Providers may omit empty slots or the call id.
			if toolCall.Function.Name == "" && toolCall.ID == "" {
				continue
			}
			id := toolCall.ID
			if id == "" {
				id = fmt.Sprintf("auto_call_%d", j)
			}
			msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
				ID:   id,
				Type: functionToolType,
				Function: model.FunctionDefinitionParam{
					Name:      toolCall.Function.Name,
					Arguments: []byte(toolCall.Function.Arguments),
				},
			})
		}
		response.Choices[i] = model.Choice{Index: int(choice.Index), Message: msg}
		if choice.FinishReason != "" {
			response.Choices[i].FinishReason = model.Ptr(choice.FinishReason)
		}
	}
	return response
}
