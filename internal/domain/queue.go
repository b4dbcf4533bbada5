// Package domain – durable queue and worker bookkeeping models.
package domain

import "time"

// QueueEntry is one durable job in the message queue. Entries are written by
// the ingress, claimed in ascending id order by workers, and flipped to
// processed exactly once on acknowledgment.
//
// ClaimedAt/ClaimedBy implement the claim lease: a claim older than the
// worker's lease window is treated as abandoned (the holder crashed or timed
// out) and becomes claimable again, which is what makes delivery
// at-least-once rather than at-most-once.
type QueueEntry struct {
	ID          uint64     `json:"id"           gorm:"primaryKey;autoIncrement"`
	Topic       string     `json:"topic"        gorm:"type:varchar(128);not null;index:idx_queue_claim,priority:1"`
	Payload     string     `json:"payload"      gorm:"type:text;not null"`
	Processed   bool       `json:"processed"    gorm:"not null;default:false;index:idx_queue_claim,priority:2"`
	Attempts    int        `json:"attempts"     gorm:"not null;default:0"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	ClaimedBy   *string    `json:"claimed_by,omitempty" gorm:"type:char(36)"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" gorm:"index"`
}

// TableName returns the database table name for QueueEntry.
func (QueueEntry) TableName() string { return "queue_entries" }

// DeadLetter preserves a queue entry that can never succeed (malformed
// payload, unresolvable customer) together with the error cause. Dead
// letters are acked on the queue side so they stop being redelivered, but
// the payload is never silently dropped.
type DeadLetter struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	EntryID   uint64    `json:"entry_id" gorm:"not null;index"`
	Topic     string    `json:"topic"    gorm:"type:varchar(128);not null"`
	Payload   string    `json:"payload"  gorm:"type:text;not null"`
	Cause     string    `json:"cause"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for DeadLetter.
func (DeadLetter) TableName() string { return "dead_letters" }

// MetricRecord is the per-message processing record emitted at the end of a
// pipeline run: end-to-end latency, the escalation outcome, and the scored
// sentiment. Kept as rows so dashboards can aggregate without scraping logs.
type MetricRecord struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string    `json:"conversation_id" gorm:"type:char(36);not null;index"`
	MessageID      string    `json:"message_id"      gorm:"type:char(36);not null"`
	Intent         string    `json:"intent"          gorm:"type:varchar(64);not null;default:''"`
	LatencyMS      int64     `json:"latency_ms"      gorm:"not null"`
	Escalated      bool      `json:"escalated"       gorm:"not null"`
	Sentiment      float64   `json:"sentiment"       gorm:"not null"`
	Confidence     float64   `json:"confidence"      gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"      gorm:"index"`
}

// TableName returns the database table name for MetricRecord.
func (MetricRecord) TableName() string { return "metric_records" }
