// Package worker drives the autonomous support pipeline: it claims inbound
// tickets from the durable queue, resolves the sender to a customer, appends
// the message to its conversation, decides between answering and escalating,
// and records the outbound reply. Validation failures and spam go to the
// dead-letter table and are acked; infrastructure failures release the claim
// so the entry is retried on a later poll.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/techcorp/taskflow-support/internal/classify"
	"github.com/techcorp/taskflow-support/internal/conversation"
	"github.com/techcorp/taskflow-support/internal/dispatch"
	"github.com/techcorp/taskflow-support/internal/domain"
	"github.com/techcorp/taskflow-support/internal/format"
	"github.com/techcorp/taskflow-support/internal/identity"
	"github.com/techcorp/taskflow-support/internal/queue"
	"github.com/techcorp/taskflow-support/internal/repo"
	"github.com/techcorp/taskflow-support/internal/respond"
	"github.com/techcorp/taskflow-support/internal/routing"
	"github.com/techcorp/taskflow-support/internal/search"
	"github.com/techcorp/taskflow-support/internal/sentiment"
)

// Defaults applied when the corresponding Worker field is zero.
const (
	DefaultConcurrency  = 4
	DefaultBatchSize    = 8
	DefaultPollInterval = 2 * time.Second
	DefaultDrainTimeout = 30 * time.Second
	DefaultEntryTimeout = 30 * time.Second
)

// Outcome labels for the processed-entries counter.
const (
	outcomeReplied    = "replied"
	outcomeEscalated  = "escalated"
	outcomeDuplicate  = "duplicate"
	outcomeDeadLetter = "dead_letter"
	outcomeRetry      = "retry"
)

// Worker owns one poll loop and a bounded pool of pipeline goroutines.
// Zero-valued tuning fields fall back to the package defaults.
type Worker struct {
	DB            *gorm.DB
	Queue         *queue.Queue
	Identities    *identity.Resolver
	Conversations *conversation.Manager
	Dispatcher    *dispatch.Dispatcher
	Routes        *routing.Table
	Index         search.Index
	Log           zerolog.Logger

	Concurrency  int
	BatchSize    int
	PollInterval time.Duration
	DrainTimeout time.Duration
	EntryTimeout time.Duration
}

// Run polls the queue until ctx is canceled, then stops claiming and drains
// in-flight entries, waiting at most DrainTimeout before giving up. Entries
// abandoned at that point are reclaimed by lease expiry.
func (w *Worker) Run(ctx context.Context) error {
	concurrency := w.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	batch := w.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	poll := w.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	jobs := make(chan domain.QueueEntry, concurrency)
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			for entry := range jobs {
				w.process(entry)
			}
		}()
	}

	w.Log.Info().
		Str("topic", queue.TopicInbound).
		Int("concurrency", concurrency).
		Int("batch", batch).
		Msg("worker started")

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			w.drain(&wg)
			return nil

		case <-ticker.C:
			entries, err := w.Queue.ClaimBatch(ctx, queue.TopicInbound, batch)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				w.Log.Error().Err(err).Msg("claim batch failed")
				continue
			}
			for _, entry := range entries {
				select {
				case jobs <- entry:
				case <-ctx.Done():
					// claimed but never started; hand it straight back
					w.release(entry.ID)
				}
			}
		}
	}
}

func (w *Worker) drain(wg *sync.WaitGroup) {
	timeout := w.DrainTimeout
	if timeout <= 0 {
		timeout = DefaultDrainTimeout
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.Log.Info().Msg("worker drained")
	case <-time.After(timeout):
		w.Log.Warn().Dur("timeout", timeout).Msg("drain timeout, abandoning in-flight entries")
	}
}

// process runs one entry through the pipeline on its own context so an
// in-flight entry survives shutdown of the poll loop.
func (w *Worker) process(entry domain.QueueEntry) {
	timeout := w.EntryTimeout
	if timeout <= 0 {
		timeout = DefaultEntryTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ctx, span := otel.Tracer("worker/Worker").Start(ctx, "Worker.process")
	defer span.End()
	span.SetAttributes(attribute.Int64("queue.entry_id", int64(entry.ID)))

	entriesInflight.Inc()
	defer entriesInflight.Dec()
	start := time.Now()

	outcome, err := w.handle(ctx, entry)
	processingLat.Observe(time.Since(start).Seconds())
	entriesProcessed.WithLabelValues(outcome).Inc()

	evt := w.Log.Info()
	if err != nil {
		evt = w.Log.Error().Err(err)
	}
	evt.Uint64("entry", entry.ID).
		Str("outcome", outcome).
		Dur("took", time.Since(start)).
		Msg("entry processed")
}

func (w *Worker) handle(ctx context.Context, entry domain.QueueEntry) (string, error) {
	var p queue.TicketPayload
	if err := json.Unmarshal([]byte(entry.Payload), &p); err != nil {
		return w.deadLetter(ctx, entry, "malformed payload: "+err.Error())
	}
	if err := p.Validate(); err != nil {
		return w.deadLetter(ctx, entry, err.Error())
	}

	intent := classify.DetectIntent(p.Content)
	if intent == classify.IntentSpam {
		return w.deadLetter(ctx, entry, "spam")
	}

	related := make([]identity.Contact, 0, len(p.Related))
	for _, rc := range p.Related {
		related = append(related, identity.Contact{Type: rc.Type, Value: rc.Value})
	}
	cust, err := w.Identities.Resolve(ctx, p.IdentityType, p.IdentityValue, p.CustomerName, p.Plan, related...)
	if errors.Is(err, identity.ErrEmptyIdentifier) || errors.Is(err, identity.ErrUnknownIdentifierType) {
		return w.deadLetter(ctx, entry, "identity: "+err.Error())
	}
	if err != nil {
		return w.retry(entry, err)
	}

	score := sentiment.Score(p.Content)
	res, err := w.Conversations.AppendInbound(ctx, cust, p.Channel, p.Content, p.ExternalID, score, intent)
	if err != nil {
		return w.retry(entry, err)
	}
	conv := res.Conversation

	cls := classify.Classify(p.Content, cust.Plan, conv.SentimentTrend, score)

	escalate := cls.Escalate
	confidence := cls.Confidence
	reason := cls.Reason

	var docs []search.Result
	if !escalate {
		if w.Index != nil {
			docs = w.Index.TopK(p.Content, 3)
		}
		confidence = classify.MessageConfidence(p.Content, intent, len(docs) > 0, score)
		if confidence < classify.ConfidenceFloor {
			escalate = true
			reason = "low_confidence"
		}
	}

	var body string
	if escalate {
		owner := w.Routes.Route(cls.Category)
		urgency := routing.Urgency(cls.Tier, cls.Category, cust.Plan)
		target := fmt.Sprintf("%s <%s>", owner.Name, owner.Contact)
		if err := w.Conversations.Escalate(ctx, conv.ID, reason, target, urgency); err != nil &&
			!errors.Is(err, conversation.ErrConversationResolved) {
			return w.retry(entry, err)
		}
		escalations.WithLabelValues(orUnknown(cls.Category)).Inc()
		body = respond.EscalationAck(reason, w.Routes.PlanSLA(cust.Plan), conv.ID)
	} else {
		body = respond.Answer(intent, p.Channel, docs)
	}

	formatted := format.Format(body, p.Channel, cust.DisplayName, conv.ID, escalate, score)
	if _, _, err := w.Dispatcher.Deliver(ctx, conv.ID, p.Channel, domain.RoleAgent, formatted, p.ExternalID); err != nil {
		return w.retry(entry, err)
	}

	if err := w.Queue.Ack(ctx, entry.ID); err != nil && !errors.Is(err, queue.ErrAlreadyAcked) {
		return outcomeRetry, err
	}

	rec := &domain.MetricRecord{
		ConversationID: conv.ID,
		MessageID:      res.Message.ID,
		Intent:         intent,
		LatencyMS:      time.Since(entry.CreatedAt).Milliseconds(),
		Escalated:      escalate,
		Sentiment:      score,
		Confidence:     confidence,
	}
	if err := repo.CreateMetricRecord(ctx, w.DB, rec); err != nil {
		// the reply already shipped; metrics are best effort
		w.Log.Warn().Err(err).Uint64("entry", entry.ID).Msg("metric record failed")
	}

	if res.Duplicate {
		return outcomeDuplicate, nil
	}
	if escalate {
		return outcomeEscalated, nil
	}
	return outcomeReplied, nil
}

// deadLetter parks the entry with its cause and acks it; retrying a
// structurally invalid payload can never succeed.
func (w *Worker) deadLetter(ctx context.Context, entry domain.QueueEntry, cause string) (string, error) {
	if err := repo.CreateDeadLetter(ctx, w.DB, entry.ID, entry.Topic, entry.Payload, cause); err != nil {
		return w.retry(entry, err)
	}
	if err := w.Queue.Ack(ctx, entry.ID); err != nil && !errors.Is(err, queue.ErrAlreadyAcked) {
		return outcomeRetry, err
	}
	w.Log.Warn().Uint64("entry", entry.ID).Str("cause", cause).Msg("entry dead-lettered")
	return outcomeDeadLetter, nil
}

// Backoff bounds for infrastructure retries.
const (
	retryBackoffBase = 5 * time.Second
	retryBackoffCap  = 5 * time.Minute
)

// retryDelay doubles per delivery attempt: 5s, 10s, 20s, ... capped at
// retryBackoffCap. Attempts below 2 get the base delay.
func retryDelay(attempts int) time.Duration {
	d := retryBackoffBase
	for i := 1; i < attempts && d < retryBackoffCap; i++ {
		d *= 2
	}
	if d > retryBackoffCap {
		d = retryBackoffCap
	}
	return d
}

// retry hands the claim back with an exponential delay so a persistently
// failing dependency is not hammered on every poll.
func (w *Worker) retry(entry domain.QueueEntry, cause error) (string, error) {
	delay := retryDelay(entry.Attempts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Queue.ReleaseAfter(ctx, entry.ID, delay); err != nil {
		// lease expiry recovers it either way
		w.Log.Warn().Err(err).Uint64("entry", entry.ID).Msg("release failed")
	}
	return outcomeRetry, cause
}

func (w *Worker) release(entryID uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Queue.Release(ctx, entryID); err != nil {
		// lease expiry recovers it either way
		w.Log.Warn().Err(err).Uint64("entry", entryID).Msg("release failed")
	}
}

func orUnknown(category string) string {
	if category == "" {
		return "unknown"
	}
	return category
}
