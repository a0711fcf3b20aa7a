// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package eventpipeline

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/innsight/innsight/internal/logging"
	"github.com/innsight/innsight/internal/metrics"
)

// Dead-letter reasons stamped into quarantined message metadata.
const (
	// DLQReasonMalformed marks payloads rejected as permanently invalid.
	DLQReasonMalformed = "malformed"
	// DLQReasonExhausted marks messages that failed every retry attempt.
	DLQReasonExhausted = "exhausted"
)

// QuarantineMiddleware routes messages that fail terminally to the
// dead-letter subject paired with sourceTopic, then acknowledges the
// original so it stops blocking the consumer. The quarantined copy
// preserves the original UUID, payload, and metadata, annotated with
// the failure reason, source subject, and time.
//
// It must be installed outermost, above retry, so only failures the
// retry policy has given up on reach it. If publishing the dead letter
// itself fails, an error is propagated and the broker redelivers; a
// message is never dropped without a durable record.
func QuarantineMiddleware(publisher message.Publisher, sourceTopic string) message.HandlerMiddleware {
	dlqTopic := DLQTopicFor(sourceTopic)

	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			produced, err := h(msg)
			if err == nil {
				return produced, nil
			}

			reason := DLQReasonExhausted
			if IsPermanentError(err) {
				reason = DLQReasonMalformed
			}

			poison := message.NewMessage(msg.UUID, msg.Payload)
			for k, v := range msg.Metadata {
				poison.Metadata.Set(k, v)
			}
			poison.Metadata.Set(MetadataDLQReason, reason)
			poison.Metadata.Set(MetadataDLQOriginalTopic, sourceTopic)
			poison.Metadata.Set(MetadataDLQTime, time.Now().UTC().Format(time.RFC3339))

			if pubErr := publisher.Publish(dlqTopic, poison); pubErr != nil {
				logging.Error().
					Err(pubErr).
					Str("message_uuid", msg.UUID).
					Str("dlq_topic", dlqTopic).
					Msg("Failed to quarantine message, leaving it for redelivery")
				return nil, fmt.Errorf("publish to %s: %w (original error: %s)", dlqTopic, pubErr, err)
			}

			metrics.RecordDeadLetter(sourceTopic, reason)
			logging.Error().
				Err(err).
				Str("message_uuid", msg.UUID).
				Str("topic", sourceTopic).
				Str("dlq_topic", dlqTopic).
				Str("reason", reason).
				Msg("Message quarantined")

			return nil, nil
		}
	}
}
