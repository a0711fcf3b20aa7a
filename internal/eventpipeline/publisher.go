// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package eventpipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/innsight/innsight/internal/metrics"
)

// Publisher wraps a Watermill NATS publisher with circuit breaker
// protection. Publishes are synchronous JetStream publishes: Publish
// returns only after the broker has durably accepted the message, so a
// caller that acks its input after a successful Publish never loses an
// event.
type Publisher struct {
	publisher      message.Publisher
	circuitBreaker *gobreaker.CircuitBreaker[any]
	serializer     *Serializer
	mu             sync.RWMutex
	closed         bool
	logger         watermill.LoggerAdapter
}

// NewPublisher creates a resilient Watermill NATS publisher with
// message ID tracking enabled for broker-side deduplication.
func NewPublisher(cfg PublisherConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false, // Stream is pre-created by StreamManager
			TrackMsgId:    cfg.EnableTrackMsgID,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &Publisher{
		publisher:  pub,
		serializer: NewSerializer(),
		logger:     logger,
	}, nil
}

// SetCircuitBreaker configures the circuit breaker for publish
// operations.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[any]) {
	p.circuitBreaker = cb
}

// Publish sends a message to the given topic. The message UUID is used
// as Nats-Msg-Id for deduplication if not already set, so a publish
// retried after a confirm timeout collapses to one stream entry inside
// the duplicate window.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("publisher is closed")
	}
	p.mu.RUnlock()

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	var err error
	if p.circuitBreaker != nil {
		_, err = p.circuitBreaker.Execute(func() (any, error) {
			return nil, p.publisher.Publish(topic, msg)
		})
	} else {
		err = p.publisher.Publish(topic, msg)
	}

	if err != nil {
		metrics.RecordPublishFailure(topic)
		return err
	}

	metrics.RecordPublish(topic)
	return nil
}

// PublishReviewCreated serializes and publishes a ReviewCreated event.
// The review ID is the message UUID, so a crashed-and-retried create
// cannot enqueue the same review twice.
func (p *Publisher) PublishReviewCreated(ctx context.Context, event *ReviewCreated) error {
	data, err := p.serializer.Marshal(event)
	if err != nil {
		return fmt.Errorf("serialize review.created: %w", err)
	}

	msg := message.NewMessage(event.ReviewID, data)
	msg.Metadata.Set(MetadataEventID, event.ReviewID)
	msg.Metadata.Set("hotel_id", event.HotelID)

	return p.Publish(ctx, TopicReviewCreated, msg)
}

// NewAnalysisCompletedMessage serializes an AnalysisCompleted event
// into a message ready for publishing, used by worker handlers whose
// output the router publishes on their behalf.
func NewAnalysisCompletedMessage(event *AnalysisCompleted) (*message.Message, error) {
	data, err := NewSerializer().Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("serialize analysis.completed: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetadataEventID, msg.UUID)
	msg.Metadata.Set("review_id", event.ReviewID)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	return msg, nil
}

// Close gracefully shuts down the publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return p.publisher.Close()
}

// WatermillPublisher returns the underlying Watermill publisher for
// components that require the native message.Publisher interface, such
// as the router's publish side and the quarantine middleware.
func (p *Publisher) WatermillPublisher() message.Publisher {
	return p.publisher
}
