// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the worker bookkeeping writes (dead
// letters, metric records) and small aggregate queries used by the HTTP
// layer for conditional responses and health output.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/techcorp/taskflow-support/internal/domain"
)

// CreateDeadLetter preserves an unprocessable queue entry with its error
// cause. The original entry is acked separately; this row is the audit
// trail.
func CreateDeadLetter(ctx context.Context, db *gorm.DB, entryID uint64, topic, payload, cause string) error {
	dl := &domain.DeadLetter{
		ID:        uuid.NewString(),
		EntryID:   entryID,
		Topic:     topic,
		Payload:   payload,
		Cause:     cause,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(dl).Error
}

// CreateMetricRecord emits the per-message processing record written at the
// end of every pipeline run.
func CreateMetricRecord(ctx context.Context, db *gorm.DB, rec *domain.MetricRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(rec).Error
}

// QueueDepth returns the number of unprocessed entries for a topic. A depth
// that keeps growing across polls is the backpressure health signal.
func QueueDepth(ctx context.Context, db *gorm.DB, topic string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Where("topic = ? AND processed = ?", topic, false).
		Count(&total).Error
	return total, err
}

// ConversationStats returns aggregate metadata for a conversation's
// messages: the total number of rows and the greatest CreatedAt among them.
// Used for ETag-style conditional responses on the messages endpoint.
func ConversationStats(ctx context.Context, db *gorm.DB, conversationID string) (count int64, lastCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("conversation_id = ?", conversationID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
