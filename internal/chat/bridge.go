package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/sohana-dev/nammai-web/internal/models"
)

// persistedIDThreshold is the id-length fallback for deciding whether a
// session already has a remote record. Client-generated ids are millisecond
// timestamps (13 characters); store-assigned ids are longer. Records that
// carry the explicit Persisted flag never reach this check.
const persistedIDThreshold = 13

const errLoggerKey = "err"

// Bridge performs one-way, best-effort sync of session state to a document
// store. Persistence failures are logged and never surfaced: local state is
// the source of truth and the next mutation tries again.
type Bridge struct {
	docs   Store
	logger *slog.Logger
}

// NewBridge returns a bridge over the given document store. A nil store
// disables persistence entirely.
func NewBridge(docs Store, logger *slog.Logger) *Bridge {
	return &Bridge{
		docs:   docs,
		logger: logger.With(slog.String("module", "bridge")),
	}
}

// persisted reports whether the session already has a remote record.
func persisted(sess models.ChatSession) bool {
	return sess.Persisted || len(sess.ID) > persistedIDThreshold
}

// Upsert writes the session to the document store. Sessions without a remote
// record take the insert path and the store-assigned id is returned with
// inserted=true; the caller rekeys its references. A still-typing trailing
// placeholder is dropped from the record: transient state is never persisted.
func (b *Bridge) Upsert(ctx context.Context, sess models.ChatSession) (newID string, inserted bool) {
	if b.docs == nil || sess.OwnerID == "" {
		return "", false
	}

	msgs := make([]models.Message, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		if m.IsTyping {
			continue
		}
		msgs = append(msgs, m)
	}
	sess.Messages = msgs
	sess.UpdatedAt = time.Now()

	if persisted(sess) {
		if err := b.docs.UpdateSession(ctx, sess); err != nil {
			b.logger.Error("Failed to update session",
				slog.String("sessionID", sess.ID),
				slog.String(errLoggerKey, err.Error()))
		}
		return "", false
	}

	id, err := b.docs.InsertSession(ctx, sess)
	if err != nil {
		b.logger.Error("Failed to insert session",
			slog.String("sessionID", sess.ID),
			slog.String(errLoggerKey, err.Error()))
		return "", false
	}
	return id, true
}

// Load fetches every session owned by ownerID, ordered by creation time
// descending, and tags each as persisted.
func (b *Bridge) Load(ctx context.Context, ownerID string) []models.ChatSession {
	if b.docs == nil {
		return nil
	}

	sessions, err := b.docs.SessionsByOwner(ctx, ownerID)
	if err != nil {
		b.logger.Error("Failed to load sessions",
			slog.String("ownerID", ownerID),
			slog.String(errLoggerKey, err.Error()))
		return nil
	}
	for i := range sessions {
		sessions[i].Persisted = true
	}
	return sessions
}

// Delete removes the session's remote record, if it has one.
func (b *Bridge) Delete(ctx context.Context, sess models.ChatSession) {
	if b.docs == nil || !persisted(sess) {
		return
	}
	if err := b.docs.DeleteSession(ctx, sess.ID); err != nil {
		b.logger.Error("Failed to delete session",
			slog.String("sessionID", sess.ID),
			slog.String(errLoggerKey, err.Error()))
	}
}
