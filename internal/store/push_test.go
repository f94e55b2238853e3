package store

import (
	"testing"

	"github.com/dukerupert/choreboard/internal/database"
)

func setupPushTestDB(t *testing.T) (*PushStore, *HouseholdStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPushStore(db), NewHouseholdStore(db)
}

func TestPushSubscriptionUpsert(t *testing.T) {
	ps, hs := setupPushTestDB(t)

	h, _ := hs.Create("Smiths", "UTC")
	m, _ := hs.CreateMember(h.ID, "Alice", "")

	sub, err := ps.Upsert(m.ID, "https://push.example.com/ep1", "p256dh-key", "auth-key")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if sub.Endpoint != "https://push.example.com/ep1" {
		t.Errorf("endpoint = %q", sub.Endpoint)
	}

	// Re-registering the same endpoint updates keys in place.
	sub2, err := ps.Upsert(m.ID, "https://push.example.com/ep1", "new-p256dh", "new-auth")
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if sub2.ID != sub.ID {
		t.Errorf("id = %d, want %d", sub2.ID, sub.ID)
	}
	if sub2.P256dhKey != "new-p256dh" {
		t.Errorf("p256dh = %q, want new-p256dh", sub2.P256dhKey)
	}

	subs, _ := ps.ListByMember(m.ID)
	if len(subs) != 1 {
		t.Errorf("len(subs) = %d, want 1", len(subs))
	}
}

func TestPushSubscriptionDeleteByEndpoint(t *testing.T) {
	ps, hs := setupPushTestDB(t)

	h, _ := hs.Create("Smiths", "UTC")
	m, _ := hs.CreateMember(h.ID, "Alice", "")

	ps.Upsert(m.ID, "https://push.example.com/ep1", "k", "a")
	ps.Upsert(m.ID, "https://push.example.com/ep2", "k", "a")

	if err := ps.DeleteByEndpoint("https://push.example.com/ep1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	subs, _ := ps.ListByMember(m.ID)
	if len(subs) != 1 {
		t.Fatalf("len(subs) = %d, want 1", len(subs))
	}
	if subs[0].Endpoint != "https://push.example.com/ep2" {
		t.Errorf("endpoint = %q, want ep2", subs[0].Endpoint)
	}
}
