// Package conversation owns the per-customer conversation lifecycle: the
// active/escalated/resolved state machine, cross-channel reuse, sentiment
// trend tracking, and the inactivity auto-close.
//
// All mutations run inside a transaction holding the conversation row lock
// (see repo.GetConversationForUpdate), so two messages for the same
// customer landing in the same poll window are applied one at a time and
// message ordering is preserved.
package conversation

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/techcorp/taskflow-support/internal/domain"
	"github.com/techcorp/taskflow-support/internal/repo"
)

// Trend and lifecycle defaults. All of them are overridable per Manager.
const (
	// DefaultTrendWindow is how many recent inbound scores feed the trend.
	DefaultTrendWindow = 10
	// DefaultDeclineRun: this many consecutive scores below
	// DefaultDeclineThreshold flip the trend to declining.
	DefaultDeclineRun       = 3
	DefaultDeclineThreshold = -0.2
	// DefaultDeclineDelta: a latest score this far below the conversation's
	// first score also flips the trend to declining.
	DefaultDeclineDelta = 0.4
	// DefaultInactivityWindow is how long an active conversation may sit
	// without inbound activity before it auto-resolves.
	DefaultInactivityWindow = 72 * time.Hour

	// movingAvgSpan and movingAvgBand shape the stable/improving split.
	movingAvgSpan = 3
	movingAvgBand = 0.1
)

// ClosureNotice is the single outbound message appended when a conversation
// auto-resolves from inactivity.
const ClosureNotice = "We haven't heard back from you, so we're marking this conversation as resolved. " +
	"If you still need help, just reply and we'll pick it right up."

// ErrConversationResolved is returned when a mutation targets a resolved
// conversation. Resolved conversations are immutable.
var ErrConversationResolved = errors.New("conversation is resolved")

// Manager drives conversation state. Fields mirror the defaults above;
// zero values fall back to them.
type Manager struct {
	DB *gorm.DB

	TrendWindow      int
	DeclineRun       int
	DeclineThreshold float64
	DeclineDelta     float64
	InactivityWindow time.Duration
}

// NewManager returns a Manager with default trend and lifecycle settings.
func NewManager(db *gorm.DB) *Manager {
	return &Manager{
		DB:               db,
		TrendWindow:      DefaultTrendWindow,
		DeclineRun:       DefaultDeclineRun,
		DeclineThreshold: DefaultDeclineThreshold,
		DeclineDelta:     DefaultDeclineDelta,
		InactivityWindow: DefaultInactivityWindow,
	}
}

// AppendResult is the outcome of AppendInbound.
type AppendResult struct {
	Conversation *domain.Conversation
	Message      *domain.Message
	// CreatedConversation is true when no open conversation existed and a
	// new one was started.
	CreatedConversation bool
	// Duplicate is true when the external message id was already recorded;
	// Message then points at the original row and no state changed.
	Duplicate bool
}

// AppendInbound records one inbound customer message: it reuses the most
// recent open conversation or starts a new one, appends the message, grows
// channels_used, moves current_channel, and recomputes the sentiment trend.
//
// Redelivery safe: a message whose externalID was recorded before returns
// Duplicate=true without touching conversation state.
func (m *Manager) AppendInbound(ctx context.Context, customer *domain.Customer, channel, content, externalID string, score float64, intent string) (*AppendResult, error) {
	tr := otel.Tracer("conversation/Manager")
	ctx, span := tr.Start(ctx, "AppendInbound",
		trace.WithAttributes(
			attribute.String("customer.id", customer.ID),
			attribute.String("channel", channel),
		),
	)
	defer span.End()

	// Redelivery short-circuit before any mutation.
	if externalID != "" {
		if existing, err := repo.FindMessageByExternalID(ctx, m.DB, externalID); err == nil {
			conv, gerr := repo.GetConversation(ctx, m.DB, existing.ConversationID)
			if gerr != nil {
				return nil, gerr
			}
			return &AppendResult{Conversation: conv, Message: existing, Duplicate: true}, nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}

	res := &AppendResult{}
	err := m.appendInboundTx(ctx, res, customer, channel, content, externalID, score, intent)
	if err != nil && repo.IsDuplicate(err) {
		// lost the one-open-conversation race to a concurrent first contact;
		// the winner's row is committed now, so a second pass reuses it
		res = &AppendResult{}
		err = m.appendInboundTx(ctx, res, customer, channel, content, externalID, score, intent)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (m *Manager) appendInboundTx(ctx context.Context, res *AppendResult, customer *domain.Customer, channel, content, externalID string, score float64, intent string) error {
	return m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := repo.FindOpenConversation(ctx, tx, customer.ID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			conv, err = repo.CreateConversation(ctx, tx, customer.ID, channel)
			if err != nil {
				return err
			}
			if err := repo.IncrementConversationCount(ctx, tx, customer.ID); err != nil {
				return err
			}
			res.CreatedConversation = true
		case err != nil:
			return err
		default:
			// lock the reuse target for the rest of the transaction
			conv, err = repo.GetConversationForUpdate(ctx, tx, conv.ID)
			if err != nil {
				return err
			}
			if !conv.Open() {
				// resolved in the window between lookup and lock; start fresh
				conv, err = repo.CreateConversation(ctx, tx, customer.ID, channel)
				if err != nil {
					return err
				}
				if err := repo.IncrementConversationCount(ctx, tx, customer.ID); err != nil {
					return err
				}
				res.CreatedConversation = true
			}
		}

		msg := repo.NewMessage(conv.ID, channel, domain.DirectionInbound, domain.RoleCustomer, content)
		msg.Sentiment = &score
		if intent != "" {
			msg.Intent = &intent
		}
		if externalID != "" {
			msg.ExternalID = &externalID
		}
		if err := repo.CreateMessage(ctx, tx, msg); err != nil {
			if repo.IsDuplicate(err) {
				existing, ferr := repo.FindMessageByExternalID(ctx, tx, externalID)
				if ferr != nil {
					return ferr
				}
				res.Conversation, res.Message, res.Duplicate = conv, existing, true
				return nil
			}
			return err
		}

		conv.CurrentChannel = channel
		conv.AddChannel(channel)
		if intent != "" {
			conv.AddTopic(intent)
		}
		conv.LastMessageAt = msg.CreatedAt
		conv.LastSentiment = score

		trend, err := m.recomputeTrend(ctx, tx, conv.ID)
		if err != nil {
			return err
		}
		conv.SentimentTrend = trend

		if err := repo.SaveConversation(ctx, tx, conv); err != nil {
			return err
		}
		res.Conversation, res.Message = conv, msg
		return nil
	})
}

// AppendOutbound records an agent or system reply. inReplyTo carries the
// inbound external id being answered; its unique index means redelivered
// queue entries produce at most one outbound row. The returned bool is
// false when the reply already existed.
func (m *Manager) AppendOutbound(ctx context.Context, conversationID, channel, role, content string, inReplyTo string) (*domain.Message, bool, error) {
	msg := repo.NewMessage(conversationID, channel, domain.DirectionOutbound, role, content)
	if inReplyTo != "" {
		msg.InReplyTo = &inReplyTo
	}
	if err := repo.CreateMessage(ctx, m.DB, msg); err != nil {
		if repo.IsDuplicate(err) && inReplyTo != "" {
			existing, ferr := repo.FindReplyTo(ctx, m.DB, inReplyTo)
			if ferr != nil {
				return nil, false, ferr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return msg, true, nil
}

// Escalate flips a conversation to escalated and records reason, target and
// urgency. An already-escalated conversation keeps accepting messages and
// updates to the latest escalation context; a resolved one is rejected.
func (m *Manager) Escalate(ctx context.Context, conversationID, reason, target, urgency string) error {
	return m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := repo.GetConversationForUpdate(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if conv.Status == domain.StatusResolved {
			return ErrConversationResolved
		}
		conv.Status = domain.StatusEscalated
		conv.EscalationReason = &reason
		conv.EscalationTarget = &target
		conv.EscalationUrgency = &urgency
		return repo.SaveConversation(ctx, tx, conv)
	})
}

// Resolve marks a conversation resolved. Terminal unless an admin reopens
// it out of band.
func (m *Manager) Resolve(ctx context.Context, conversationID string) error {
	return m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := repo.GetConversationForUpdate(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if conv.Status == domain.StatusResolved {
			return nil
		}
		now := time.Now().UTC()
		conv.Status = domain.StatusResolved
		conv.ResolvedAt = &now
		return repo.SaveConversation(ctx, tx, conv)
	})
}

// CloseInactive resolves active conversations without inbound activity for
// the inactivity window and appends exactly one closure notice to each. The
// notice's in_reply_to is derived from the conversation id, so concurrent
// sweeps cannot double-append. Returns the conversations it closed.
func (m *Manager) CloseInactive(ctx context.Context, now time.Time, limit int) ([]domain.Conversation, error) {
	window := m.InactivityWindow
	if window <= 0 {
		window = DefaultInactivityWindow
	}
	cutoff := now.Add(-window)

	candidates, err := repo.ListInactiveConversations(ctx, m.DB, cutoff, limit)
	if err != nil {
		return nil, err
	}

	var closed []domain.Conversation
	for _, cand := range candidates {
		err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			conv, err := repo.GetConversationForUpdate(ctx, tx, cand.ID)
			if err != nil {
				return err
			}
			// re-check under the lock: a message may have arrived meanwhile
			if conv.Status != domain.StatusActive || !conv.LastMessageAt.Before(cutoff) {
				return nil
			}

			resolvedAt := now.UTC()
			conv.Status = domain.StatusResolved
			conv.ResolvedAt = &resolvedAt
			if err := repo.SaveConversation(ctx, tx, conv); err != nil {
				return err
			}

			notice := repo.NewMessage(conv.ID, conv.CurrentChannel, domain.DirectionOutbound, domain.RoleSystem, ClosureNotice)
			key := "closure:" + conv.ID
			notice.InReplyTo = &key
			if err := repo.CreateMessage(ctx, tx, notice); err != nil {
				if repo.IsDuplicate(err) {
					return nil // another sweep got here first
				}
				return err
			}
			closed = append(closed, *conv)
			return nil
		})
		if err != nil {
			return closed, err
		}
	}
	return closed, nil
}

// recomputeTrend derives the trend from the most recent inbound scores:
// declining on a run of consecutive scores below the threshold, or when the
// latest score has fallen more than the delta below the conversation's
// first score; otherwise improving or stable by the sign of the short
// moving average.
func (m *Manager) recomputeTrend(ctx context.Context, tx *gorm.DB, conversationID string) (string, error) {
	window := m.TrendWindow
	if window <= 0 {
		window = DefaultTrendWindow
	}
	scores, err := repo.RecentInboundSentiments(ctx, tx, conversationID, window)
	if err != nil {
		return "", err
	}
	if len(scores) == 0 {
		return domain.TrendStable, nil
	}
	first, err := repo.FirstInboundSentiment(ctx, tx, conversationID)
	if err != nil {
		return "", err
	}
	return m.trendOf(scores, first), nil
}

func (m *Manager) trendOf(scores []float64, first float64) string {
	run := m.DeclineRun
	if run <= 0 {
		run = DefaultDeclineRun
	}
	threshold := m.DeclineThreshold
	if threshold == 0 {
		threshold = DefaultDeclineThreshold
	}
	delta := m.DeclineDelta
	if delta <= 0 {
		delta = DefaultDeclineDelta
	}

	// rule 1: a run of consecutive scores below the threshold
	consecutive := 0
	for _, s := range scores {
		if s < threshold {
			consecutive++
			if consecutive >= run {
				return domain.TrendDeclining
			}
		} else {
			consecutive = 0
		}
	}

	// rule 2: latest score fell too far below the first ever recorded
	latest := scores[len(scores)-1]
	if first-latest > delta {
		return domain.TrendDeclining
	}

	// otherwise: sign of the short-term moving average
	span := movingAvgSpan
	if len(scores) < span {
		span = len(scores)
	}
	var sum float64
	for _, s := range scores[len(scores)-span:] {
		sum += s
	}
	if sum/float64(span) > movingAvgBand {
		return domain.TrendImproving
	}
	return domain.TrendStable
}
