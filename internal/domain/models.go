// Package domain defines the persistence models for customers, identifiers,
// conversations, and messages. These types are mapped with GORM and form the
// core data layer of the support automation service.
package domain

import (
	"strings"
	"time"
)

// Plan tiers. The tier drives escalation SLAs and the enterprise compound
// escalation rule.
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Identifier types accepted by the identity resolver.
const (
	IdentifierEmail   = "email"
	IdentifierPhone   = "phone"
	IdentifierChannel = "channel"
)

// Channel names.
const (
	ChannelEmail = "email"
	ChannelChat  = "chat"
)

// Conversation statuses.
const (
	StatusActive    = "active"
	StatusEscalated = "escalated"
	StatusResolved  = "resolved"
)

// Sentiment trend values.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

// Message directions and roles.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	RoleCustomer = "customer"
	RoleAgent    = "agent"
	RoleSystem   = "system"
)

// Customer is the canonical identity record. Every channel identifier a
// person contacts us from resolves to exactly one Customer; uniqueness is
// enforced at the identifier level, not here.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email / Phone: denormalized convenience copies of the first identifier
//     of each type; the identifiers table is authoritative.
//   - DisplayName: best-known name for greetings.
//   - Plan: free | pro | enterprise (enforced by DB constraint).
//   - LastContactAt: updated on every resolved inbound message.
//   - ConversationCount: running total of conversations ever opened.
type Customer struct {
	ID                string     `json:"id"                 gorm:"type:char(36);primaryKey"`
	Email             *string    `json:"email,omitempty"    gorm:"type:varchar(255)"`
	Phone             *string    `json:"phone,omitempty"    gorm:"type:varchar(64)"`
	DisplayName       string     `json:"display_name"       gorm:"type:varchar(255);not null;default:''"`
	Plan              string     `json:"plan"               gorm:"type:varchar(16);not null;default:'free';check:plan IN ('free','pro','enterprise')"`
	LastContactAt     *time.Time `json:"last_contact_at,omitempty"`
	ConversationCount int        `json:"conversation_count" gorm:"not null;default:0"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Customer.
func (Customer) TableName() string { return "customers" }

// Identifier binds a (type, value) channel address to exactly one Customer.
// The composite unique index is what makes concurrent first-contact races
// safe: the second inserter hits the constraint and reuses the winner's row.
type Identifier struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Type       string    `json:"type"        gorm:"type:varchar(16);not null;uniqueIndex:ux_identifiers_type_value;check:type IN ('email','phone','channel')"`
	Value      string    `json:"value"       gorm:"type:varchar(255);not null;uniqueIndex:ux_identifiers_type_value"`
	CustomerID string    `json:"customer_id" gorm:"type:char(36);not null;index"`
	CreatedAt  time.Time `json:"created_at"`

	// Customer is the canonical identity this address belongs to.
	Customer Customer `json:"-" gorm:"foreignKey:CustomerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Identifier.
func (Identifier) TableName() string { return "identifiers" }

// Conversation is a bounded support session for one Customer. New inbound
// messages attach to the most recent active or escalated conversation; only
// a resolved conversation forces creation of a new one.
//
// ChannelsUsed and Topics are append-only comma-separated lists; use
// AddChannel/AddTopic rather than writing the columns directly.
type Conversation struct {
	ID             string  `json:"id"              gorm:"type:char(36);primaryKey"`
	CustomerID     string  `json:"customer_id"     gorm:"type:char(36);not null;index:idx_customer_convs"`
	OriginChannel  string  `json:"origin_channel"  gorm:"type:varchar(32);not null"`
	CurrentChannel string  `json:"current_channel" gorm:"type:varchar(32);not null"`
	ChannelsUsed   string  `json:"channels_used"   gorm:"type:text;not null;default:''"`
	Status         string  `json:"status"          gorm:"type:varchar(16);not null;default:'active';index;check:status IN ('active','escalated','resolved')"`
	LastSentiment  float64 `json:"last_sentiment"  gorm:"not null;default:0"`
	SentimentTrend string  `json:"sentiment_trend" gorm:"type:varchar(16);not null;default:'stable';check:sentiment_trend IN ('improving','stable','declining')"`
	Topics         string  `json:"topics"          gorm:"type:text;not null;default:''"`

	// Populated when Status becomes escalated.
	EscalationReason  *string `json:"escalation_reason,omitempty"  gorm:"type:text"`
	EscalationTarget  *string `json:"escalation_target,omitempty"  gorm:"type:varchar(255)"`
	EscalationUrgency *string `json:"escalation_urgency,omitempty" gorm:"type:varchar(16)"`

	StartedAt     time.Time  `json:"started_at"`
	LastMessageAt time.Time  `json:"last_message_at" gorm:"index"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Customer Customer `json:"-" gorm:"foreignKey:CustomerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Channels returns the distinct channels used so far, in first-use order.
func (c *Conversation) Channels() []string { return splitList(c.ChannelsUsed) }

// AddChannel appends ch to ChannelsUsed if not already present and reports
// whether the set grew. Existing entries are never removed or reordered.
func (c *Conversation) AddChannel(ch string) bool {
	added, list := appendUnique(c.ChannelsUsed, ch)
	c.ChannelsUsed = list
	return added
}

// TopicList returns the distinct topics discussed, in first-seen order.
func (c *Conversation) TopicList() []string { return splitList(c.Topics) }

// AddTopic appends t to Topics if not already present.
func (c *Conversation) AddTopic(t string) bool {
	added, list := appendUnique(c.Topics, t)
	c.Topics = list
	return added
}

// Open reports whether the conversation still accepts inbound messages.
func (c *Conversation) Open() bool {
	return c.Status == StatusActive || c.Status == StatusEscalated
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func appendUnique(list, v string) (bool, string) {
	if v == "" {
		return false, list
	}
	for _, have := range splitList(list) {
		if have == v {
			return false, list
		}
	}
	if list == "" {
		return true, v
	}
	return true, list + "," + v
}

// Message is an immutable, append-only record inside a Conversation.
// Messages are never updated or deleted; ordering is (CreatedAt, ID).
//
// ExternalID carries the channel's message id for inbound messages and is
// globally unique, which is what makes queue redelivery idempotent: a second
// insert for the same external id fails and the pipeline reuses the first
// row. InReplyTo plays the same role for outbound messages, guaranteeing at
// most one reply per inbound external id.
type Message struct {
	ID             string   `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string   `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1"`
	Channel        string   `json:"channel"         gorm:"type:varchar(32);not null"`
	Direction      string   `json:"direction"       gorm:"type:varchar(16);not null;check:direction IN ('inbound','outbound')"`
	Role           string   `json:"role"            gorm:"type:varchar(16);not null;check:role IN ('customer','agent','system')"`
	Content        string   `json:"content"         gorm:"type:text;not null"`
	Sentiment      *float64 `json:"sentiment,omitempty"` // inbound only
	Intent         *string  `json:"intent,omitempty"          gorm:"type:varchar(64)"`
	EscalationTier *string  `json:"escalation_tier,omitempty" gorm:"type:varchar(16)"`
	ExternalID     *string  `json:"external_id,omitempty"     gorm:"type:varchar(255);uniqueIndex:ux_messages_external"`
	InReplyTo      *string  `json:"in_reply_to,omitempty"     gorm:"type:varchar(255);uniqueIndex:ux_messages_reply"`
	CreatedAt      time.Time `json:"created_at" gorm:"index:idx_conv_msgs,priority:2"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }
