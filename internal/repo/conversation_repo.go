// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model, including the row-lock helper that serializes
// concurrent pipeline executions touching the same conversation.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/techcorp/taskflow-support/internal/domain"
)

// CreateConversation inserts a new active conversation for a customer.
func CreateConversation(ctx context.Context, db *gorm.DB, customerID, channel string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	c := &domain.Conversation{
		ID:             uuid.NewString(),
		CustomerID:     customerID,
		OriginChannel:  channel,
		CurrentChannel: channel,
		Status:         domain.StatusActive,
		SentimentTrend: domain.TrendStable,
		StartedAt:      now,
		LastMessageAt:  now,
		CreatedAt:      now,
	}
	c.AddChannel(channel)
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetConversation fetches a conversation by id, or ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversationForUpdate fetches a conversation and, on postgres, takes a
// FOR UPDATE row lock for the lifetime of the surrounding transaction. Two
// messages for the same customer arriving in the same poll window are
// applied one at a time behind this lock. SQLite's single writer gives the
// same serialization without the clause.
func GetConversationForUpdate(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	q := db.WithContext(ctx)
	if IsPostgres(db) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var c domain.Conversation
	if err := q.Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindOpenConversation returns the customer's most recent active or
// escalated conversation, or ErrNotFound when every conversation is
// resolved. This is the reuse target for new inbound messages.
func FindOpenConversation(ctx context.Context, db *gorm.DB, customerID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("customer_id = ? AND status IN ?", customerID, []string{domain.StatusActive, domain.StatusEscalated}).
		Order("last_message_at desc").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveConversation persists the mutated conversation row.
func SaveConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation) error {
	return db.WithContext(ctx).Save(c).Error
}

// ListInactiveConversations returns active conversations whose last message
// is older than the cutoff. Used by the maintenance sweep for auto-close.
func ListInactiveConversations(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	q := db.WithContext(ctx).
		Where("status = ? AND last_message_at < ?", domain.StatusActive, cutoff).
		Order("last_message_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountOpenConversations returns the number of non-resolved conversations
// for a customer. Exposed for the conversation endpoint and health checks.
func CountOpenConversations(ctx context.Context, db *gorm.DB, customerID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("customer_id = ? AND status IN ?", customerID, []string{domain.StatusActive, domain.StatusEscalated}).
		Count(&total).Error
	return total, err
}
