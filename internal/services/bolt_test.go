package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sohana-dev/nammai-web/internal/models"
	bolt "go.etcd.io/bbolt"
)

func TestBoltDBRoundTrip(t *testing.T) {
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("NewBoltDB() error = %v", err)
	}
	defer db.Close()

	id, err := db.InsertSession(context.Background(), models.ChatSession{
		ID:      "1756400000000",
		Title:   "hello",
		OwnerID: "user-1",
	})
	if err != nil {
		t.Fatalf("InsertSession() error = %v", err)
	}
	if len(id) <= 13 {
		t.Errorf("InsertSession() id = %q, want longer than a client-generated id", id)
	}

	sessions, err := db.SessionsByOwner(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("SessionsByOwner() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("SessionsByOwner() returned %d sessions, want 1", len(sessions))
	}
	if sessions[0].ID != id || sessions[0].Title != "hello" {
		t.Errorf("SessionsByOwner() = %+v, want id %q title %q", sessions[0], id, "hello")
	}

	if sessions, _ := db.SessionsByOwner(context.Background(), "someone-else"); len(sessions) != 0 {
		t.Errorf("SessionsByOwner() leaked %d sessions across owners", len(sessions))
	}
}

func TestBoltDBInsertSessionMissingBucket(t *testing.T) {
	raw, err := bolt.Open(filepath.Join(t.TempDir(), "store.db"), 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()

	db := BoltDB{db: raw}
	if _, err := db.InsertSession(context.Background(), models.ChatSession{ID: "1756400000000"}); err == nil {
		t.Error("InsertSession() should fail when the sessions bucket is missing")
	}
}
