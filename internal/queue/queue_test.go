package queue

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/techcorp/taskflow-support/internal/domain"
)

func newQueueDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("queue_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA busy_timeout=5000;")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.QueueEntry{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestPublishClaimAck(t *testing.T) {
	q := New(newQueueDB(t))
	ctx := context.Background()

	id1, err := q.Publish(ctx, TopicInbound, []byte(`{"n":1}`))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	id2, err := q.Publish(ctx, TopicInbound, []byte(`{"n":2}`))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if id2 <= id1 {
		t.Fatalf("ids must be monotonically increasing: %d then %d", id1, id2)
	}

	batch, err := q.ClaimBatch(ctx, TopicInbound, 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(batch) != 2 || batch[0].ID != id1 || batch[1].ID != id2 {
		t.Fatalf("expected both entries in id order, got %+v", batch)
	}

	if err := q.Ack(ctx, id1); err != nil {
		t.Fatalf("ack: %v", err)
	}

	depth, err := q.Depth(ctx, TopicInbound)
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if depth != 1 {
		t.Fatalf("depth after one ack: got %d want 1", depth)
	}
}

func TestClaimBatch_SkipsLeasedEntries(t *testing.T) {
	q := New(newQueueDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := q.Publish(ctx, TopicInbound, []byte(`{}`)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	first, err := q.ClaimBatch(ctx, TopicInbound, 2)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first claim: got %d entries, want 2", len(first))
	}

	second, err := q.ClaimBatch(ctx, TopicInbound, 10)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("second claim must skip leased rows: got %d entries", len(second))
	}
	for _, e := range second {
		for _, f := range first {
			if e.ID == f.ID {
				t.Fatalf("entry %d claimed twice", e.ID)
			}
		}
	}
}

func TestClaimBatch_ConcurrentClaimersNeverShareAnEntry(t *testing.T) {
	q := New(newQueueDB(t))
	ctx := context.Background()

	const entries = 20
	for i := 0; i < entries; i++ {
		if _, err := q.Publish(ctx, TopicInbound, []byte(`{}`)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	const workers = 4
	var mu sync.Mutex
	seen := map[uint64]int{}
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				batch, err := q.ClaimBatch(ctx, TopicInbound, 3)
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				if len(batch) == 0 {
					return
				}
				mu.Lock()
				for _, e := range batch {
					seen[e.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != entries {
		t.Fatalf("claimed %d distinct entries, want %d", len(seen), entries)
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("entry %d claimed %d times", id, n)
		}
	}
}

func TestClaimBatch_ExpiredLeaseIsReclaimable(t *testing.T) {
	q := New(newQueueDB(t))
	q.Lease = 10 * time.Millisecond
	ctx := context.Background()

	id, err := q.Publish(ctx, TopicInbound, []byte(`{}`))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if batch, _ := q.ClaimBatch(ctx, TopicInbound, 1); len(batch) != 1 {
		t.Fatalf("initial claim failed")
	}

	// crash simulation: no ack, lease runs out
	time.Sleep(25 * time.Millisecond)

	batch, err := q.ClaimBatch(ctx, TopicInbound, 1)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != id {
		t.Fatalf("expired lease should be reclaimable, got %+v", batch)
	}
}

func TestAck_ExactlyOnce(t *testing.T) {
	q := New(newQueueDB(t))
	ctx := context.Background()

	id, err := q.Publish(ctx, TopicInbound, []byte(`{}`))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := q.Ack(ctx, id); err != nil {
		t.Fatalf("first ack: %v", err)
	}
	if err := q.Ack(ctx, id); err != ErrAlreadyAcked {
		t.Fatalf("second ack: got %v want ErrAlreadyAcked", err)
	}
	if err := q.Ack(ctx, 99999); err == nil {
		t.Fatalf("unknown id should error")
	}
}

func TestRelease_MakesEntryImmediatelyReclaimable(t *testing.T) {
	q := New(newQueueDB(t))
	ctx := context.Background()

	id, _ := q.Publish(ctx, TopicInbound, []byte(`{}`))
	if batch, _ := q.ClaimBatch(ctx, TopicInbound, 1); len(batch) != 1 {
		t.Fatalf("claim failed")
	}
	if err := q.Release(ctx, id); err != nil {
		t.Fatalf("release: %v", err)
	}
	batch, err := q.ClaimBatch(ctx, TopicInbound, 1)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != id {
		t.Fatalf("released entry should be reclaimable now, got %+v", batch)
	}
}

func TestClaimBatch_CountsAttempts(t *testing.T) {
	q := New(newQueueDB(t))
	q.Lease = 10 * time.Millisecond
	ctx := context.Background()

	id, err := q.Publish(ctx, TopicInbound, []byte(`{}`))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	batch, err := q.ClaimBatch(ctx, TopicInbound, 1)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if len(batch) != 1 || batch[0].Attempts != 1 {
		t.Fatalf("first claim should record attempt 1, got %+v", batch)
	}

	if err := q.Release(ctx, id); err != nil {
		t.Fatalf("release: %v", err)
	}
	batch, err = q.ClaimBatch(ctx, TopicInbound, 1)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(batch) != 1 || batch[0].Attempts != 2 {
		t.Fatalf("second claim should record attempt 2, got %+v", batch)
	}
}

func TestReleaseAfter_DelaysReclaim(t *testing.T) {
	q := New(newQueueDB(t))
	q.Lease = 10 * time.Millisecond
	ctx := context.Background()

	id, _ := q.Publish(ctx, TopicInbound, []byte(`{}`))
	if batch, _ := q.ClaimBatch(ctx, TopicInbound, 1); len(batch) != 1 {
		t.Fatalf("claim failed")
	}

	if err := q.ReleaseAfter(ctx, id, 60*time.Millisecond); err != nil {
		t.Fatalf("release after: %v", err)
	}

	batch, err := q.ClaimBatch(ctx, TopicInbound, 1)
	if err != nil {
		t.Fatalf("early claim: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("entry must stay invisible during the backoff window, got %+v", batch)
	}

	time.Sleep(90 * time.Millisecond)

	batch, err = q.ClaimBatch(ctx, TopicInbound, 1)
	if err != nil {
		t.Fatalf("late claim: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != id {
		t.Fatalf("entry should be claimable after the delay, got %+v", batch)
	}
}

func TestReleaseAfter_ZeroDelayReleasesNow(t *testing.T) {
	q := New(newQueueDB(t))
	ctx := context.Background()

	id, _ := q.Publish(ctx, TopicInbound, []byte(`{}`))
	if batch, _ := q.ClaimBatch(ctx, TopicInbound, 1); len(batch) != 1 {
		t.Fatalf("claim failed")
	}
	if err := q.ReleaseAfter(ctx, id, 0); err != nil {
		t.Fatalf("release after: %v", err)
	}
	batch, err := q.ClaimBatch(ctx, TopicInbound, 1)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != id {
		t.Fatalf("zero delay should release immediately, got %+v", batch)
	}
}

func TestPurge_RemovesOldProcessedOnly(t *testing.T) {
	db := newQueueDB(t)
	q := New(db)
	ctx := context.Background()

	oldID, _ := q.Publish(ctx, TopicInbound, []byte(`{}`))
	newID, _ := q.Publish(ctx, TopicInbound, []byte(`{}`))
	pendingID, _ := q.Publish(ctx, TopicInbound, []byte(`{}`))

	_ = q.Ack(ctx, oldID)
	_ = q.Ack(ctx, newID)

	// age the first ack beyond the retention window
	past := time.Now().UTC().Add(-48 * time.Hour)
	if err := db.Model(&domain.QueueEntry{}).Where("id = ?", oldID).Update("processed_at", past).Error; err != nil {
		t.Fatalf("age entry: %v", err)
	}

	n, err := q.Purge(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d rows, want 1", n)
	}

	var remaining []domain.QueueEntry
	if err := db.Order("id").Find(&remaining).Error; err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 2 || remaining[0].ID != newID || remaining[1].ID != pendingID {
		t.Fatalf("unexpected survivors: %+v", remaining)
	}
}

func TestClaimBatch_TopicIsolation(t *testing.T) {
	q := New(newQueueDB(t))
	ctx := context.Background()

	if _, err := q.Publish(ctx, "other.topic", []byte(`{}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	batch, err := q.ClaimBatch(ctx, TopicInbound, 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("claim must be topic-scoped, got %+v", batch)
	}
}
