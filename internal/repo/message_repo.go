// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model. Messages are append-only: there is deliberately no update or
// delete here.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/techcorp/taskflow-support/internal/domain"
)

// NewMessage assembles an unsaved Message with a generated id and UTC
// timestamp. Callers fill the optional fields before CreateMessage.
func NewMessage(conversationID, channel, direction, role, content string) *domain.Message {
	return &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Channel:        channel,
		Direction:      direction,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
}

// CreateMessage inserts a message row. A unique-violation on external_id or
// in_reply_to (detect with IsDuplicate) means the message was already
// recorded by an earlier delivery of the same queue entry.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	return db.WithContext(ctx).Create(m).Error
}

// FindMessageByExternalID returns the inbound message recorded for a
// channel message id, or ErrNotFound. Used to short-circuit redeliveries.
func FindMessageByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindReplyTo returns the outbound message answering the given inbound
// external id, or ErrNotFound.
func FindReplyTo(ctx context.Context, db *gorm.DB, externalID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("in_reply_to = ?", externalID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns a conversation's messages ordered deterministically
// (CreatedAt ASC, ID ASC).
func ListMessages(ctx context.Context, db *gorm.DB, conversationID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// RecentInboundSentiments returns the sentiment scores of the last n
// inbound customer messages, oldest first, for the trend computation.
func RecentInboundSentiments(ctx context.Context, db *gorm.DB, conversationID string, n int) ([]float64, error) {
	var rows []domain.Message
	err := db.WithContext(ctx).
		Select("sentiment", "created_at", "id").
		Where("conversation_id = ? AND direction = ? AND sentiment IS NOT NULL", conversationID, domain.DirectionInbound).
		Order("created_at DESC, id DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, *rows[i].Sentiment)
	}
	return out, nil
}

// FirstInboundSentiment returns the first recorded inbound sentiment of the
// conversation, or ErrNotFound when no scored message exists yet.
func FirstInboundSentiment(ctx context.Context, db *gorm.DB, conversationID string) (float64, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Select("sentiment", "created_at", "id").
		Where("conversation_id = ? AND direction = ? AND sentiment IS NOT NULL", conversationID, domain.DirectionInbound).
		Order("created_at ASC, id ASC").
		First(&m).Error
	if err != nil {
		return 0, err
	}
	return *m.Sentiment, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).
		Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
func ListMessagesPage(ctx context.Context, db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
