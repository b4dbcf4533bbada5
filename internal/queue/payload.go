package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Payload validation errors. Entries failing validation cannot succeed on
// retry and belong in the dead-letter table.
var (
	ErrMissingChannel    = errors.New("payload missing channel")
	ErrMissingIdentity   = errors.New("payload missing identity")
	ErrMissingContent    = errors.New("payload missing content")
	ErrMissingExternalID = errors.New("payload missing external id")
)

// RelatedContact is an extra identifier carried alongside the primary one,
// e.g. the email field of a web form submitted from a known phone number.
type RelatedContact struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// TicketPayload is the JSON schema of entries on TopicInbound. ExternalID is
// the channel-native message id and doubles as the processing idempotency
// key.
type TicketPayload struct {
	ExternalID    string           `json:"external_id"`
	Channel       string           `json:"channel"`
	IdentityType  string           `json:"identity_type"`
	IdentityValue string           `json:"identity_value"`
	CustomerName  string           `json:"customer_name,omitempty"`
	Plan          string           `json:"plan,omitempty"`
	Content       string           `json:"content"`
	ReceivedAt    time.Time        `json:"received_at,omitempty"`
	Related       []RelatedContact `json:"related,omitempty"`
}

// Validate reports the first structural problem with the payload.
func (p *TicketPayload) Validate() error {
	switch {
	case strings.TrimSpace(p.ExternalID) == "":
		return ErrMissingExternalID
	case strings.TrimSpace(p.Channel) == "":
		return ErrMissingChannel
	case strings.TrimSpace(p.IdentityType) == "" || strings.TrimSpace(p.IdentityValue) == "":
		return ErrMissingIdentity
	case strings.TrimSpace(p.Content) == "":
		return ErrMissingContent
	}
	return nil
}

// PublishTicket marshals the payload and enqueues it on TopicInbound.
func (q *Queue) PublishTicket(ctx context.Context, p *TicketPayload) (uint64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return 0, err
	}
	return q.Publish(ctx, TopicInbound, raw)
}
