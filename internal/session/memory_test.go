package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func testSession(userID string) Session {
	created := time.Date(2026, time.June, 15, 10, 0, 0, 0, time.UTC)
	return Session{
		UserID:    userID,
		Flow:      FlowSetBirthDate,
		State:     StateAwaitingDay,
		CreatedAt: created,
		ExpiresAt: created.Add(5 * time.Minute),
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sess := testSession("user-1")
	sess.Day = 25
	sess.Month = 12

	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put returned %v", err)
	}

	got, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get returned %v", err)
	}
	if got != sess {
		t.Errorf("Get = %+v, want %+v", got, sess)
	}

	if err := store.Delete(ctx, "user-1"); err != nil {
		t.Fatalf("Delete returned %v", err)
	}
	if _, err := store.Get(ctx, "user-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete returned %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(nobody) returned %v, want ErrNotFound", err)
	}
}

func TestMemoryStorePutRequiresUserID(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Put(context.Background(), Session{}); err == nil {
		t.Errorf("Put without user ID succeeded")
	}
}

func TestMemoryStoreDeleteMissing(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Delete(context.Background(), "nobody"); err != nil {
		t.Errorf("Delete(nobody) returned %v", err)
	}
}

func TestMemoryStoreMutateInsert(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.Mutate(ctx, "user-1", func(sess *Session, found bool) (MutateResult, error) {
		if found {
			t.Errorf("callback saw found = true for a fresh store")
		}
		sess.Flow = FlowCheckCompatibility
		sess.State = StateAwaitingPartnerDay
		return KeepSession, nil
	})
	if err != nil {
		t.Fatalf("Mutate returned %v", err)
	}

	got, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get returned %v", err)
	}
	if got.UserID != "user-1" {
		t.Errorf("stored UserID = %q, want user-1", got.UserID)
	}
	if got.Flow != FlowCheckCompatibility || got.State != StateAwaitingPartnerDay {
		t.Errorf("stored session = %+v", got)
	}
}

func TestMemoryStoreMutateDropAppliesDespiteError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Put(ctx, testSession("user-1")); err != nil {
		t.Fatalf("Put returned %v", err)
	}

	sentinel := errors.New("session expired")
	err := store.Mutate(ctx, "user-1", func(sess *Session, found bool) (MutateResult, error) {
		if !found {
			t.Errorf("callback saw found = false for a stored session")
		}
		return DropSession, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Mutate returned %v, want sentinel", err)
	}

	if _, err := store.Get(ctx, "user-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("session survived a DropSession result: %v", err)
	}
}

func TestMemoryStoreMutateLeaveStoresNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.Mutate(ctx, "user-1", func(sess *Session, found bool) (MutateResult, error) {
		return LeaveSession, errors.New("no session to resume")
	})
	if err == nil {
		t.Fatalf("Mutate swallowed the callback error")
	}

	if _, err := store.Get(ctx, "user-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LeaveSession wrote a session: %v", err)
	}

	n, err := store.ActiveCount(ctx)
	if err != nil {
		t.Fatalf("ActiveCount returned %v", err)
	}
	if n != 0 {
		t.Errorf("ActiveCount = %d, want 0", n)
	}
}

func TestMemoryStoreConcurrentMutate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithShardCount(1))
	if err := store.Put(ctx, testSession("user-1")); err != nil {
		t.Fatalf("Put returned %v", err)
	}

	const goroutines = 8
	const increments = 100

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < increments; i++ {
				_ = store.Mutate(ctx, "user-1", func(sess *Session, found bool) (MutateResult, error) {
					sess.Day++
					return KeepSession, nil
				})
			}
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get returned %v", err)
	}
	if got.Day != goroutines*increments {
		t.Errorf("Day = %d after concurrent mutates, want %d", got.Day, goroutines*increments)
	}
}

func TestMemoryStorePruneExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, time.June, 15, 10, 0, 0, 0, time.UTC)

	for i, expiresAt := range []time.Time{
		now.Add(-time.Minute),
		now,
		now.Add(time.Minute),
	} {
		sess := testSession(fmt.Sprintf("user-%d", i))
		sess.ExpiresAt = expiresAt
		if err := store.Put(ctx, sess); err != nil {
			t.Fatalf("Put returned %v", err)
		}
	}

	removed, err := store.PruneExpired(ctx, now)
	if err != nil {
		t.Fatalf("PruneExpired returned %v", err)
	}
	// The deadline instant itself counts as expired, so two sessions go.
	if len(removed) != 2 {
		t.Fatalf("PruneExpired removed %d sessions, want 2", len(removed))
	}

	n, err := store.ActiveCount(ctx)
	if err != nil {
		t.Fatalf("ActiveCount returned %v", err)
	}
	if n != 1 {
		t.Errorf("ActiveCount = %d after prune, want 1", n)
	}
	if _, err := store.Get(ctx, "user-2"); err != nil {
		t.Errorf("live session was pruned: %v", err)
	}
}

func TestMemoryStoreContextCancelled(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Put(ctx, testSession("user-1")); !errors.Is(err, context.Canceled) {
		t.Errorf("Put with cancelled context returned %v", err)
	}
	if _, err := store.Get(ctx, "user-1"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get with cancelled context returned %v", err)
	}
	if err := store.Mutate(ctx, "user-1", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Mutate with cancelled context returned %v", err)
	}
}
