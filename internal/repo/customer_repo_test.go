package repo

import (
	"context"
	"testing"
	"time"

	"github.com/techcorp/taskflow-support/internal/domain"
)

func TestCustomer_CreateAndGet(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	c, err := CreateCustomer(ctx, db, "Maya Chen", domain.PlanPro, strptr("maya@example.com"), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := GetCustomer(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DisplayName != "Maya Chen" || got.Plan != domain.PlanPro || got.Email == nil || *got.Email != "maya@example.com" {
		t.Fatalf("unexpected customer: %+v", got)
	}

	if _, err := GetCustomer(ctx, db, "00000000-0000-0000-0000-000000000000"); err != ErrNotFound {
		t.Fatalf("missing customer: got %v want ErrNotFound", err)
	}
}

func TestFindCustomerByIdentifier(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	cust, _ := seedConversation(t, db)

	if _, err := CreateIdentifier(ctx, db, domain.IdentifierPhone, "+15550001111", cust.ID); err != nil {
		t.Fatalf("create identifier: %v", err)
	}

	got, err := FindCustomerByIdentifier(ctx, db, domain.IdentifierPhone, "+15550001111")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != cust.ID {
		t.Fatalf("resolved wrong customer: %s vs %s", got.ID, cust.ID)
	}

	if _, err := FindCustomerByIdentifier(ctx, db, domain.IdentifierPhone, "+19999999999"); err != ErrNotFound {
		t.Fatalf("unknown identifier: got %v want ErrNotFound", err)
	}
}

func TestTouchCustomerContact(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	cust, _ := seedConversation(t, db)

	at := time.Now().UTC().Truncate(time.Second)
	if err := TouchCustomerContact(ctx, db, cust.ID, at); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, _ := GetCustomer(ctx, db, cust.ID)
	if got.LastContactAt == nil || got.LastContactAt.Unix() != at.Unix() {
		t.Fatalf("last_contact_at not stamped: %+v", got.LastContactAt)
	}
}

func TestIncrementConversationCount(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	cust, _ := seedConversation(t, db)

	if err := IncrementConversationCount(ctx, db, cust.ID); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := IncrementConversationCount(ctx, db, cust.ID); err != nil {
		t.Fatalf("increment: %v", err)
	}
	got, _ := GetCustomer(ctx, db, cust.ID)
	if got.ConversationCount != 2 {
		t.Fatalf("conversation_count = %d; want 2", got.ConversationCount)
	}
}

func TestFillCustomerContact_NeverOverwrites(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	c, err := CreateCustomer(ctx, db, "", domain.PlanFree, nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// First fill lands on the empty columns.
	if err := FillCustomerContact(ctx, db, c.ID, strptr("a@example.com"), strptr("+15550002222")); err != nil {
		t.Fatalf("fill: %v", err)
	}
	// Second fill must not clobber what is already set.
	if err := FillCustomerContact(ctx, db, c.ID, strptr("b@example.com"), nil); err != nil {
		t.Fatalf("refill: %v", err)
	}

	got, _ := GetCustomer(ctx, db, c.ID)
	if got.Email == nil || *got.Email != "a@example.com" {
		t.Fatalf("email overwritten: %+v", got.Email)
	}
	if got.Phone == nil || *got.Phone != "+15550002222" {
		t.Fatalf("phone not backfilled: %+v", got.Phone)
	}
}
