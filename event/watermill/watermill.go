//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package watermill publishes workflow lifecycle events through a watermill
// publisher, e.g. an in-process GoChannel or Kafka.
package watermill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"trpc.group/trpc-go/trpc-workflow-go/event"
)

// Metadata keys set on every published message.
const (
	MetadataEventType   = "event_type"
	MetadataPriority    = "priority"
	MetadataExecutionID = "execution_id"
)

// DefaultTopic is the topic lifecycle events are published to.
const DefaultTopic = "workflow.events"

// Sink implements event.Sink over a watermill publisher.
type Sink struct {
	publisher message.Publisher
	topic     string
}

var _ event.Sink = (*Sink)(nil)

// Option configures a Sink.
type Option func(*Sink)

// WithTopic overrides the topic.
func WithTopic(topic string) Option {
	return func(s *Sink) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// NewSink creates a sink publishing to publisher.
func NewSink(publisher message.Publisher, opts ...Option) *Sink {
	s := &Sink{publisher: publisher, topic: DefaultTopic}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Topic returns the topic the sink publishes to.
func (s *Sink) Topic() string { return s.topic }

// Emit implements event.Sink.
func (s *Sink) Emit(ctx context.Context, e *event.Event) error {
	if e == nil {
		return errors.New("watermill sink: nil event")
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("watermill sink: marshal event: %w", err)
	}
	msg := message.NewMessage(e.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetadataEventType, e.Type)
	msg.Metadata.Set(MetadataPriority, string(e.Priority))
	msg.Metadata.Set(MetadataExecutionID, e.ExecutionID)
	if err := s.publisher.Publish(s.topic, msg); err != nil {
		return fmt.Errorf("watermill sink: publish %s: %w", e.Type, err)
	}
	return nil
}

// Close closes the underlying publisher.
func (s *Sink) Close() error {
	return s.publisher.Close()
}

// Decode unmarshals a message produced by Sink.
func Decode(msg *message.Message) (*event.Event, error) {
	var e event.Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// NewGoChannel creates an in-process pub/sub usable as both the sink's
// publisher and a subscriber.
func NewGoChannel(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            1000,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		logger,
	)
}

// NewKafkaPublisher creates a Kafka publisher for brokers.
func NewKafkaPublisher(brokers []string, logger watermill.LoggerAdapter) (*kafka.Publisher, error) {
	if len(brokers) == 0 || brokers[0] == "" {
		return nil, errors.New("kafka publisher: no brokers configured")
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	saramaPublisherConfig := sarama.NewConfig()
	saramaPublisherConfig.Producer.Return.Successes = true
	return kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaPublisherConfig,
			OTELEnabled:           true,
		},
		logger,
	)
}
