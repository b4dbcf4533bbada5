// Ingress HTTP handlers.
//
// This file exposes the single write endpoint of the API:
//   - POST /events   (normalize an inbound channel event and enqueue it)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (including newline and length constraints)
//   - publish to the durable queue; the worker does everything else
//   - short-circuit redeliveries by external id so channel retries are cheap
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/techcorp/taskflow-support/internal/queue"
	"github.com/techcorp/taskflow-support/internal/repo"
)

// Handlers bundles the dependencies shared by all endpoints.
type Handlers struct {
	DB    *gorm.DB
	Queue *queue.Queue
}

// New constructs a Handlers instance bound to the given database and queue.
func New(db *gorm.DB, q *queue.Queue) *Handlers {
	return &Handlers{DB: db, Queue: q}
}

//
// DTOs
//

// RelatedContactRequest is an extra identifier submitted alongside the
// primary one, e.g. the email field of a web form.
type RelatedContactRequest struct {
	Type  string `json:"type" binding:"required" example:"email"`
	Value string `json:"value" binding:"required" example:"maya@example.com"`
}

// IngestEventRequest is the JSON payload for an inbound channel event.
//
// Content is normalized by the handler (line endings and excessive blank
// lines) before being enqueued. ExternalID must be the channel-native
// message id; it is the idempotency key for the whole pipeline.
type IngestEventRequest struct {
	// ExternalID is the channel-native message id.
	ExternalID string `json:"external_id" binding:"required" example:"gmail-18c2a"`
	// Channel the event arrived on: email, chat, whatsapp, or form.
	Channel string `json:"channel" binding:"required" example:"email"`
	// IdentityType is how the sender identified themselves.
	IdentityType string `json:"identity_type" binding:"required" example:"email"`
	// IdentityValue is the identifier itself.
	IdentityValue string `json:"identity_value" binding:"required" example:"maya@example.com"`
	// CustomerName is the display name, when the channel provides one.
	CustomerName string `json:"customer_name,omitempty" example:"Maya Chen"`
	// Plan is the claimed plan tier; unknown values fall back to free.
	Plan string `json:"plan,omitempty" example:"pro"`
	// Content is the message body. It must be non-empty.
	Content string `json:"content" binding:"required,min=1" example:"How do I export my boards to CSV?"`
	// Related carries additional identifiers to link to the same customer.
	Related []RelatedContactRequest `json:"related,omitempty"`
}

// IngestEventResponse acknowledges an accepted or deduplicated event.
type IngestEventResponse struct {
	// EntryID is the queue entry created for this event (0 on duplicates).
	EntryID uint64 `json:"entry_id,omitempty"`
	// Status is "queued" or "duplicate".
	Status string `json:"status" example:"queued"`
	// ConversationID is set on duplicates, pointing at the original.
	ConversationID string `json:"conversation_id,omitempty"`
}

// maxContentRunes caps the accepted message body length at the edge.
const maxContentRunes = 8000

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// IngestEvent godoc
// @ID          ingestEvent
// @Summary     Ingest an inbound channel event
// @Description Normalizes an inbound message from any support channel and
// @Description enqueues it for asynchronous processing. Redeliveries of the
// @Description same external_id are acknowledged without enqueueing again.
// @Tags        Events
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.IngestEventRequest  true  "Inbound event payload"
//
// @Success     202  {object}  handlers.IngestEventResponse  "Event queued"
// @Success     200  {object}  handlers.IngestEventResponse  "Duplicate, already processed"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse        "Internal error"
// @Router      /events [post]
func (h *Handlers) IngestEvent(c *gin.Context) {
	ctx := c.Request.Context()

	var req IngestEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "external_id, channel, identity and content are required")
		return
	}

	content := sanitizeContent(req.Content)
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	if utf8.RuneCountInString(content) > maxContentRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxContentRunes))
		return
	}

	// Redelivery fast path: the message already made it through the pipeline.
	if prev, err := repo.FindMessageByExternalID(ctx, h.DB, req.ExternalID); err == nil && prev != nil {
		ok(c, http.StatusOK, IngestEventResponse{
			Status:         "duplicate",
			ConversationID: prev.ConversationID,
		})
		return
	}

	p := &queue.TicketPayload{
		ExternalID:    req.ExternalID,
		Channel:       strings.ToLower(strings.TrimSpace(req.Channel)),
		IdentityType:  strings.ToLower(strings.TrimSpace(req.IdentityType)),
		IdentityValue: req.IdentityValue,
		CustomerName:  req.CustomerName,
		Plan:          req.Plan,
		Content:       content,
		ReceivedAt:    time.Now().UTC(),
	}
	for _, rc := range req.Related {
		p.Related = append(p.Related, queue.RelatedContact{Type: rc.Type, Value: rc.Value})
	}

	id, err := h.Queue.PublishTicket(ctx, p)
	if err != nil {
		switch err {
		case queue.ErrMissingExternalID, queue.ErrMissingChannel, queue.ErrMissingIdentity, queue.ErrMissingContent:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodePublishFailed, err.Error())
		}
		return
	}

	ok(c, http.StatusAccepted, IngestEventResponse{EntryID: id, Status: "queued"})
}
