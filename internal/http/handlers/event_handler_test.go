package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/techcorp/taskflow-support/internal/domain"
	"github.com/techcorp/taskflow-support/internal/queue"
	"github.com/techcorp/taskflow-support/internal/repo"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newHandlerDB opens a throwaway SQLite database with the full schema.
func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "handlers_test.db")
	db, err := repo.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newTestRouter mounts the handlers without the full middleware stack.
func newTestRouter(t *testing.T) (*gin.Engine, *Handlers, *gorm.DB) {
	t.Helper()
	db := newHandlerDB(t)
	h := New(db, queue.New(db))
	r := gin.New()
	r.POST("/events", h.IngestEvent)
	r.GET("/conversations/:id", h.GetConversation)
	r.GET("/conversations/:id/messages", h.ListConversationMessages)
	r.GET("/customers/:id", h.GetCustomer)
	return r, h, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIngestEvent_QueuesTicket(t *testing.T) {
	r, h, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/events", `{
		"external_id": "gmail-1",
		"channel": "Email",
		"identity_type": "EMAIL",
		"identity_value": "maya@example.com",
		"customer_name": "Maya Chen",
		"plan": "pro",
		"content": "How do I export my boards?\r\n\r\n\r\n\r\nThanks!"
	}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d; body=%s", w.Code, w.Body.String())
	}

	var resp IngestEventResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "queued" || resp.EntryID == 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// The payload on the queue carries normalized fields.
	entries, err := h.Queue.ClaimBatch(context.Background(), queue.TopicInbound, 1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("claim: %v (%d entries)", err, len(entries))
	}
	var p queue.TicketPayload
	if err := json.Unmarshal([]byte(entries[0].Payload), &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Channel != "email" || p.IdentityType != "email" {
		t.Fatalf("channel/identity not lowercased: %+v", p)
	}
	if strings.Contains(p.Content, "\r") || strings.Contains(p.Content, "\n\n\n") {
		t.Fatalf("content not sanitized: %q", p.Content)
	}
}

func TestIngestEvent_ValidationFailures(t *testing.T) {
	r, _, _ := newTestRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing fields", `{"channel":"email"}`},
		{"whitespace content", `{"external_id":"x","channel":"email","identity_type":"email","identity_value":"a@b.c","content":"   \n\n  "}`},
		{"malformed json", `{not json`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/events", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d; want 400 (body=%s)", w.Code, w.Body.String())
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != ErrCodeBadRequest {
				t.Fatalf("code = %q; want %q", resp.Code, ErrCodeBadRequest)
			}
		})
	}
}

func TestIngestEvent_ContentTooLong(t *testing.T) {
	r, _, _ := newTestRouter(t)

	long := strings.Repeat("a", maxContentRunes+1)
	body := `{"external_id":"x","channel":"email","identity_type":"email","identity_value":"a@b.c","content":"` + long + `"}`
	w := doJSON(t, r, http.MethodPost, "/events", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}

func TestIngestEvent_RedeliveryShortCircuits(t *testing.T) {
	r, _, db := newTestRouter(t)
	ctx := context.Background()

	cust, err := repo.CreateCustomer(ctx, db, "Maya", domain.PlanPro, nil, nil)
	if err != nil {
		t.Fatalf("customer: %v", err)
	}
	conv, err := repo.CreateConversation(ctx, db, cust.ID, domain.ChannelEmail)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	m := repo.NewMessage(conv.ID, domain.ChannelEmail, domain.DirectionInbound, domain.RoleCustomer, "hi")
	ext := "gmail-99"
	m.ExternalID = &ext
	if err := repo.CreateMessage(ctx, db, m); err != nil {
		t.Fatalf("message: %v", err)
	}

	w := doJSON(t, r, http.MethodPost, "/events", `{
		"external_id": "gmail-99",
		"channel": "email",
		"identity_type": "email",
		"identity_value": "maya@example.com",
		"content": "hi"
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 on redelivery", w.Code)
	}
	var resp IngestEventResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "duplicate" || resp.ConversationID != conv.ID || resp.EntryID != 0 {
		t.Fatalf("unexpected duplicate response: %+v", resp)
	}

	depth, _ := repo.QueueDepth(ctx, db, queue.TopicInbound)
	if depth != 0 {
		t.Fatalf("redelivery must not enqueue, depth = %d", depth)
	}
}

func TestSanitizeContent(t *testing.T) {
	in := "a\r\nb\r\r\n\n\n\nc\n"
	got := sanitizeContent(in)
	if strings.Contains(got, "\r") {
		t.Fatalf("carriage returns survived: %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("blank-line runs not collapsed: %q", got)
	}
	if strings.HasSuffix(got, "\n") {
		t.Fatalf("trailing whitespace not trimmed: %q", got)
	}
}
