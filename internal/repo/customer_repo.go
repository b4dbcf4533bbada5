// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Customer
// and Identifier models.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Unique-violation failures can be detected with IsDuplicate; the raw
//     driver error is propagated so callers keep the full context.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/techcorp/taskflow-support/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// IsDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}

// CreateCustomer inserts a new Customer row. The id is a generated UUID and
// CreatedAt is set to UTC.
func CreateCustomer(ctx context.Context, db *gorm.DB, displayName, plan string, email, phone *string) (*domain.Customer, error) {
	c := &domain.Customer{
		ID:          uuid.NewString(),
		Email:       email,
		Phone:       phone,
		DisplayName: displayName,
		Plan:        plan,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetCustomer fetches a customer by id, or ErrNotFound.
func GetCustomer(ctx context.Context, db *gorm.DB, id string) (*domain.Customer, error) {
	var c domain.Customer
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindCustomerByIdentifier resolves a (type, value) identifier to its
// customer, or ErrNotFound when the identifier is unknown.
func FindCustomerByIdentifier(ctx context.Context, db *gorm.DB, idType, value string) (*domain.Customer, error) {
	var ident domain.Identifier
	err := db.WithContext(ctx).
		Where("type = ? AND value = ?", idType, value).
		First(&ident).Error
	if err != nil {
		return nil, err
	}
	return GetCustomer(ctx, db, ident.CustomerID)
}

// CreateIdentifier binds a (type, value) pair to a customer. A concurrent
// insert of the same pair fails the unique index; callers detect that with
// IsDuplicate and re-resolve.
func CreateIdentifier(ctx context.Context, db *gorm.DB, idType, value, customerID string) (*domain.Identifier, error) {
	ident := &domain.Identifier{
		ID:         uuid.NewString(),
		Type:       idType,
		Value:      value,
		CustomerID: customerID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ident).Error; err != nil {
		return nil, err
	}
	return ident, nil
}

// TouchCustomerContact stamps last_contact_at. Invoked on every resolved
// inbound message.
func TouchCustomerContact(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("id = ?", id).
		Update("last_contact_at", at).Error
}

// IncrementConversationCount bumps the running conversation counter.
func IncrementConversationCount(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("id = ?", id).
		Update("conversation_count", gorm.Expr("conversation_count + 1")).Error
}

// FillCustomerContact backfills the denormalized email/phone columns when
// they are still empty. Existing values are never overwritten; the
// identifiers table stays authoritative.
func FillCustomerContact(ctx context.Context, db *gorm.DB, id string, email, phone *string) error {
	if email != nil && *email != "" {
		err := db.WithContext(ctx).Model(&domain.Customer{}).
			Where("id = ? AND (email IS NULL OR email = '')", id).
			Update("email", *email).Error
		if err != nil {
			return err
		}
	}
	if phone != nil && *phone != "" {
		err := db.WithContext(ctx).Model(&domain.Customer{}).
			Where("id = ? AND (phone IS NULL OR phone = '')", id).
			Update("phone", *phone).Error
		if err != nil {
			return err
		}
	}
	return nil
}
