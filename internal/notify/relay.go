package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"identity-service/internal/util"
)

// MessageReader is satisfied by *kafka.Reader in consumer group mode.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Relay drains the email topic into a Notifier, typically SMTP.
type Relay struct {
	reader      MessageReader
	sender      Notifier
	sendTimeout time.Duration
}

func NewRelay(reader MessageReader, sender Notifier, sendTimeout time.Duration) *Relay {
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	return &Relay{reader: reader, sender: sender, sendTimeout: sendTimeout}
}

// Run blocks until ctx is cancelled or the reader fails. Each message is
// attempted once and committed whatever the outcome.
func (r *Relay) Run(ctx context.Context) error {
	for {
		msg, err := r.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to fetch email message: %w", err)
		}

		r.deliver(ctx, msg)

		if err := r.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to commit email message: %w", err)
		}
	}
}

func (r *Relay) deliver(ctx context.Context, msg kafka.Message) {
	var email EmailMessage
	if err := json.Unmarshal(msg.Value, &email); err != nil {
		util.Warn("Dropping malformed email message",
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()

	if err := r.sender.Send(sendCtx, email.To, email.Subject, email.Body); err != nil {
		util.Error("Email delivery failed",
			zap.String("message_id", email.ID),
			zap.Error(err))
		return
	}
	util.Info("Email delivered", zap.String("message_id", email.ID))
}
