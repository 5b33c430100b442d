package session

import (
	"context"
	"testing"
	"time"
)

func TestAdmitAndMembership(t *testing.T) {
	_, rdb := testRedis(t)
	tr := NewTracker(rdb, 2, time.Hour)
	ctx := context.Background()

	if member, err := tr.IsMember(ctx, 1, "a"); err != nil || member {
		t.Fatalf("unknown token: member=%v err=%v", member, err)
	}
	if err := tr.Admit(ctx, 1, "a"); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if member, _ := tr.IsMember(ctx, 1, "a"); !member {
		t.Fatal("admitted token not recognized")
	}
	// Other accounts must not see the token.
	if member, _ := tr.IsMember(ctx, 2, "a"); member {
		t.Fatal("token leaked into another account's membership")
	}
}

func TestCapEvictsOldestFirst(t *testing.T) {
	_, rdb := testRedis(t)
	tr := NewTracker(rdb, 2, time.Hour)
	ctx := context.Background()

	// Login A, then B, then C with cap 2: A is evicted, B and C remain.
	for _, tok := range []string{"a", "b", "c"} {
		if err := tr.Admit(ctx, 1, tok); err != nil {
			t.Fatalf("admit %q: %v", tok, err)
		}
	}
	if member, _ := tr.IsMember(ctx, 1, "a"); member {
		t.Fatal("oldest session survived beyond the cap")
	}
	for _, tok := range []string{"b", "c"} {
		if member, _ := tr.IsMember(ctx, 1, tok); !member {
			t.Fatalf("session %q should still be a member", tok)
		}
	}
}

func TestRemoveDropsOnlyThatToken(t *testing.T) {
	_, rdb := testRedis(t)
	tr := NewTracker(rdb, 2, time.Hour)
	ctx := context.Background()

	_ = tr.Admit(ctx, 1, "a")
	_ = tr.Admit(ctx, 1, "b")
	if err := tr.Remove(ctx, 1, "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if member, _ := tr.IsMember(ctx, 1, "a"); member {
		t.Fatal("removed token still a member")
	}
	if member, _ := tr.IsMember(ctx, 1, "b"); !member {
		t.Fatal("unrelated token was dropped")
	}
	// Removing an absent token is a no-op.
	if err := tr.Remove(ctx, 1, "a"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestClearForgetsAccount(t *testing.T) {
	_, rdb := testRedis(t)
	tr := NewTracker(rdb, 2, time.Hour)
	ctx := context.Background()

	_ = tr.Admit(ctx, 1, "a")
	_ = tr.Admit(ctx, 1, "b")
	if err := tr.Clear(ctx, 1); err != nil {
		t.Fatalf("clear: %v", err)
	}
	for _, tok := range []string{"a", "b"} {
		if member, _ := tr.IsMember(ctx, 1, tok); member {
			t.Fatalf("session %q survived clear", tok)
		}
	}
}

func TestTrackerDefaultsCap(t *testing.T) {
	_, rdb := testRedis(t)
	tr := NewTracker(rdb, 0, time.Hour)
	if tr.Cap() != DefaultSessionCap {
		t.Fatalf("cap = %d, want default %d", tr.Cap(), DefaultSessionCap)
	}
}

func TestTrackerGuardsZeroTTL(t *testing.T) {
	_, rdb := testRedis(t)
	tr := NewTracker(rdb, 2, 0)
	ctx := context.Background()

	// A zero ttl must not expire the list on the spot; the admitted token
	// has to stay a member.
	if err := tr.Admit(ctx, 1, "a"); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if member, err := tr.IsMember(ctx, 1, "a"); err != nil || !member {
		t.Fatalf("member=%v err=%v, want membership to survive", member, err)
	}
}
