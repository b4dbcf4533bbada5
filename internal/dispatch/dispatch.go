// Package dispatch delivers outbound replies. Persistence and dedup belong
// to the conversation manager; dispatch only decides whether a freshly
// recorded reply still needs to leave the building, and hands it to a Sender.
//
// The default Sender is LogSender: replies live in the messages table and
// channel adapters poll them, so "sending" is a structured log line. Real
// push adapters (SMTP, Twilio) implement Sender and slot in per channel.
package dispatch

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/techcorp/taskflow-support/internal/conversation"
	"github.com/techcorp/taskflow-support/internal/domain"
)

// Sender pushes a recorded outbound message to its channel.
type Sender interface {
	Send(ctx context.Context, msg *domain.Message) error
}

// LogSender records the delivery as a log line. Used when channels pull
// replies from the API instead of receiving pushes.
type LogSender struct {
	Log zerolog.Logger
}

func (s *LogSender) Send(_ context.Context, msg *domain.Message) error {
	s.Log.Info().
		Str("message_id", msg.ID).
		Str("conversation_id", msg.ConversationID).
		Str("channel", msg.Channel).
		Int("chars", len(msg.Content)).
		Msg("outbound reply ready")
	return nil
}

// Dispatcher records a reply exactly once and sends it at most once.
type Dispatcher struct {
	Conversations *conversation.Manager
	Sender        Sender
}

// Deliver appends the reply to the conversation and, when this call was the
// one that created it, pushes it through the Sender. Redeliveries of the same
// inReplyTo key return the original message and send nothing.
func (d *Dispatcher) Deliver(ctx context.Context, conversationID, channel, role, content, inReplyTo string) (*domain.Message, bool, error) {
	ctx, span := otel.Tracer("dispatch/Dispatcher").Start(ctx, "Dispatcher.Deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", conversationID),
		attribute.String("channel", channel),
	)

	msg, created, err := d.Conversations.AppendOutbound(ctx, conversationID, channel, role, content, inReplyTo)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return msg, false, nil
	}
	if d.Sender != nil {
		if err := d.Sender.Send(ctx, msg); err != nil {
			// the reply is durable; delivery retries ride on redelivery
			return msg, true, err
		}
	}
	return msg, true, nil
}
