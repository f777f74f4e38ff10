package chat_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sohana-dev/nammai-web/internal/chat"
	"github.com/sohana-dev/nammai-web/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failStore errors on every operation.
type failStore struct{}

var errStoreDown = errors.New("store down")

func (failStore) SessionsByOwner(context.Context, string) ([]models.ChatSession, error) {
	return nil, errStoreDown
}
func (failStore) InsertSession(context.Context, models.ChatSession) (string, error) {
	return "", errStoreDown
}
func (failStore) UpdateSession(context.Context, models.ChatSession) error { return errStoreDown }
func (failStore) DeleteSession(context.Context, string) error             { return errStoreDown }

func TestBridgeUpsertInsertsUnpersisted(t *testing.T) {
	docs := newMemStore()
	bridge := chat.NewBridge(docs, testLogger())

	id, inserted := bridge.Upsert(context.Background(), models.ChatSession{
		ID:      "1756400000000", // 13 chars, client-generated
		OwnerID: "user-1",
		Messages: []models.Message{
			{ID: 1, Sender: models.SenderAI, Text: "hello"},
			{ID: 2, Sender: models.SenderAI, IsTyping: true},
		},
	})

	require.True(t, inserted)
	assert.Greater(t, len(id), 13, "store-assigned ids exceed the timestamp length")
	assert.True(t, strings.HasPrefix(id, "session-"))

	rec := docs.records[id]
	require.Len(t, rec.Messages, 1, "still-typing placeholders are dropped")
	assert.Equal(t, "hello", rec.Messages[0].Text)
}

func TestBridgeUpsertUpdatesPersisted(t *testing.T) {
	docs := newMemStore()
	bridge := chat.NewBridge(docs, testLogger())

	sess := models.ChatSession{ID: "1756400000000", OwnerID: "user-1", Persisted: true}
	_, inserted := bridge.Upsert(context.Background(), sess)
	assert.False(t, inserted, "the flag forces the update path regardless of id shape")

	// Long ids take the update path even without the flag.
	long := models.ChatSession{ID: "session-9-1756400000000", OwnerID: "user-1"}
	_, inserted = bridge.Upsert(context.Background(), long)
	assert.False(t, inserted)
	assert.Contains(t, docs.records, long.ID)
}

func TestBridgeUpsertSkipsAnonymous(t *testing.T) {
	docs := newMemStore()
	bridge := chat.NewBridge(docs, testLogger())

	_, inserted := bridge.Upsert(context.Background(), models.ChatSession{ID: "1756400000000"})
	assert.False(t, inserted)
	assert.Empty(t, docs.records, "sessions without an owner are never written")
}

func TestBridgeNilStore(t *testing.T) {
	bridge := chat.NewBridge(nil, testLogger())

	_, inserted := bridge.Upsert(context.Background(), models.ChatSession{ID: "1", OwnerID: "u"})
	assert.False(t, inserted)
	assert.Nil(t, bridge.Load(context.Background(), "u"))
	bridge.Delete(context.Background(), models.ChatSession{ID: "x", Persisted: true})
}

func TestBridgeFailuresAreSwallowed(t *testing.T) {
	bridge := chat.NewBridge(failStore{}, testLogger())

	_, inserted := bridge.Upsert(context.Background(), models.ChatSession{
		ID:      "1756400000000",
		OwnerID: "user-1",
	})
	assert.False(t, inserted)
	assert.Nil(t, bridge.Load(context.Background(), "user-1"))
	bridge.Delete(context.Background(), models.ChatSession{ID: "session-1-x", Persisted: true})
}

func TestBridgeLoadTagsPersisted(t *testing.T) {
	docs := newMemStore()
	bridge := chat.NewBridge(docs, testLogger())

	_, err := docs.InsertSession(context.Background(), models.ChatSession{
		ID:      "1756400000000",
		OwnerID: "user-1",
	})
	require.NoError(t, err)

	sessions := bridge.Load(context.Background(), "user-1")
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Persisted)
}

func TestBridgeDeleteSkipsUnpersisted(t *testing.T) {
	docs := newMemStore()
	bridge := chat.NewBridge(docs, testLogger())

	bridge.Delete(context.Background(), models.ChatSession{ID: "1756400000000"})
	assert.Empty(t, docs.deleted, "a session that was never written has nothing to delete")

	bridge.Delete(context.Background(), models.ChatSession{ID: "1756400000000", Persisted: true})
	assert.Equal(t, []string{"1756400000000"}, docs.deleted)
}
