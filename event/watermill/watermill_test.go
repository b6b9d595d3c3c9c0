//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package watermill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-workflow-go/event"
)

func TestSink_PublishesToGoChannel(t *testing.T) {
	pubSub := NewGoChannel(nil)
	defer pubSub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, err := pubSub.Subscribe(ctx, "custom.topic")
	require.NoError(t, err)

	sink := NewSink(pubSub, WithTopic("custom.topic"))
	assert.Equal(t, "custom.topic", sink.Topic())

	sent := event.New(event.TypeWorkflowFailed, "exec-1",
		event.WithPriority(event.PriorityHigh),
		event.WithPayload(map[string]any{"error": "boom"}))
	require.NoError(t, sink.Emit(ctx, sent))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, sent.ID, msg.UUID)
		assert.Equal(t, event.TypeWorkflowFailed, msg.Metadata.Get(MetadataEventType))
		assert.Equal(t, "high", msg.Metadata.Get(MetadataPriority))
		assert.Equal(t, "exec-1", msg.Metadata.Get(MetadataExecutionID))
		got, err := Decode(msg)
		require.NoError(t, err)
		assert.Equal(t, sent.ExecutionID, got.ExecutionID)
		assert.Equal(t, "boom", got.Payload["error"])
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error { return errors.New("down") }
func (failingPublisher) Close() error                            { return nil }

func TestSink_Errors(t *testing.T) {
	sink := NewSink(failingPublisher{})
	assert.Equal(t, DefaultTopic, sink.Topic())
	assert.Error(t, sink.Emit(context.Background(), nil))
	err := sink.Emit(context.Background(), event.New(event.TypeWorkflowStarted, "e"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.NoError(t, sink.Close())
}

func TestNewKafkaPublisher_NoBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, nil)
	assert.Error(t, err)
	_, err = NewKafkaPublisher([]string{""}, nil)
	assert.Error(t, err)
}
