// Package queue implements the durable job queue backing inbound message
// processing. Entries live in the queue_entries table: the ingress publishes
// them, workers claim them in ascending id order, and an acknowledgment
// flips processed exactly once.
//
// Claims are leases, not open transactions. A claim atomically stamps
// claimed_by/claimed_at on a batch of rows and commits immediately, so no
// connection is pinned while the pipeline runs. On postgres the claim
// subquery uses FOR UPDATE SKIP LOCKED, so concurrent claimers skip each
// other's rows instead of queueing on them. A worker that dies mid-claim
// simply lets the lease expire; the rows become claimable again and
// delivery is at-least-once.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/techcorp/taskflow-support/internal/domain"
	"github.com/techcorp/taskflow-support/internal/repo"
)

// TopicInbound is the topic the ingress publishes normalized channel events
// to and the worker consumes from.
const TopicInbound = "taskflow.tickets.incoming"

// DefaultLease matches the pipeline execution timeout: a claim older than
// this belongs to a worker that crashed or timed out.
const DefaultLease = 30 * time.Second

// ErrAlreadyAcked is returned when an entry was acknowledged twice. The
// second ack is a logic error worth surfacing, not silently absorbing.
var ErrAlreadyAcked = errors.New("queue entry already acknowledged")

// Queue provides publish/claim/ack/purge over one database handle. Safe for
// concurrent use; every claim gets its own lease token.
type Queue struct {
	DB    *gorm.DB
	Lease time.Duration
}

// New returns a Queue with the default lease.
func New(db *gorm.DB) *Queue {
	return &Queue{DB: db, Lease: DefaultLease}
}

// Publish appends a payload to a topic and returns the new entry id.
func (q *Queue) Publish(ctx context.Context, topic string, payload []byte) (uint64, error) {
	e := &domain.QueueEntry{
		Topic:     topic,
		Payload:   string(payload),
		CreatedAt: time.Now().UTC(),
	}
	if err := q.DB.WithContext(ctx).Create(e).Error; err != nil {
		return 0, err
	}
	return e.ID, nil
}

// ClaimBatch leases up to maxN unprocessed entries of a topic to the
// caller, oldest first. Entries under another worker's live lease are
// skipped, never waited on. The returned entries stay claimed until Ack,
// Release, or lease expiry.
func (q *Queue) ClaimBatch(ctx context.Context, topic string, maxN int) ([]domain.QueueEntry, error) {
	if maxN <= 0 {
		return nil, nil
	}

	token := uuid.NewString()
	now := time.Now().UTC()
	cutoff := now.Add(-q.lease())

	// Single atomic UPDATE: SQLite serializes it on its write lock, and on
	// postgres the subquery takes SKIP LOCKED row locks so concurrent
	// claimers cannot stamp the same rows.
	sub := `SELECT id FROM queue_entries
		WHERE topic = ? AND processed = ? AND (claimed_at IS NULL OR claimed_at < ?)
		ORDER BY id ASC LIMIT ?`
	if repo.IsPostgres(q.DB) {
		sub += ` FOR UPDATE SKIP LOCKED`
	}
	res := q.DB.WithContext(ctx).Exec(
		`UPDATE queue_entries SET claimed_by = ?, claimed_at = ?, attempts = attempts + 1 WHERE id IN (`+sub+`)`,
		token, now, topic, false, cutoff, maxN,
	)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var out []domain.QueueEntry
	err := q.DB.WithContext(ctx).
		Where("claimed_by = ? AND processed = ?", token, false).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Ack marks an entry processed. The transition happens exactly once:
// a second Ack returns ErrAlreadyAcked, an unknown id repo.ErrNotFound.
func (q *Queue) Ack(ctx context.Context, entryID uint64) error {
	now := time.Now().UTC()
	res := q.DB.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Where("id = ? AND processed = ?", entryID, false).
		Updates(map[string]any{"processed": true, "processed_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := q.DB.WithContext(ctx).Model(&domain.QueueEntry{}).Where("id = ?", entryID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return repo.ErrNotFound
		}
		return ErrAlreadyAcked
	}
	return nil
}

// Release drops the caller's lease so the entry is immediately reclaimable,
// instead of waiting out the lease after a transient pipeline failure.
func (q *Queue) Release(ctx context.Context, entryID uint64) error {
	return q.DB.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Where("id = ? AND processed = ?", entryID, false).
		Updates(map[string]any{"claimed_by": nil, "claimed_at": nil}).Error
}

// ReleaseAfter drops the lease but keeps the entry invisible for delay, so
// repeatedly failing entries retry with backoff instead of hot-looping on
// every poll. Implemented by backdating claimed_at: the entry becomes
// claimable once claimed_at < now-lease, which lands delay from now.
func (q *Queue) ReleaseAfter(ctx context.Context, entryID uint64, delay time.Duration) error {
	if delay <= 0 {
		return q.Release(ctx, entryID)
	}
	at := time.Now().UTC().Add(delay - q.lease())
	return q.DB.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Where("id = ? AND processed = ?", entryID, false).
		Updates(map[string]any{"claimed_by": nil, "claimed_at": at}).Error
}

// Purge deletes acknowledged entries whose processed_at is older than the
// retention window and returns the number of rows removed.
func (q *Queue) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res := q.DB.WithContext(ctx).
		Where("processed = ? AND processed_at < ?", true, cutoff).
		Delete(&domain.QueueEntry{})
	return res.RowsAffected, res.Error
}

// Depth reports the number of unprocessed entries in a topic.
func (q *Queue) Depth(ctx context.Context, topic string) (int64, error) {
	return repo.QueueDepth(ctx, q.DB, topic)
}

func (q *Queue) lease() time.Duration {
	if q.Lease > 0 {
		return q.Lease
	}
	return DefaultLease
}
