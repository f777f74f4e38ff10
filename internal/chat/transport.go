package chat

import (
	"context"
	"iter"

	"github.com/sohana-dev/nammai-web/internal/models"
)

// Part is one unit of content sent to the model: text, or an inline binary
// payload with its declared MIME type.
type Part struct {
	Text string

	Data     []byte
	MIMEType string
}

// Conversation is a stateful remote model context. Each StreamSend carries
// the new content parts and returns a finite stream of text deltas,
// delivered in send order and consumed exactly once.
type Conversation interface {
	StreamSend(ctx context.Context, parts []Part) iter.Seq2[string, error]
}

// Transport opens model conversations scoped to a system preamble. It is the
// only contact the reconciler has with a model vendor.
type Transport interface {
	CreateConversation(ctx context.Context, systemInstruction string) (Conversation, error)
}

// Store is the document-store contract the persistence bridge works
// against. Implementations return store-assigned ids from InsertSession.
type Store interface {
	SessionsByOwner(ctx context.Context, ownerID string) ([]models.ChatSession, error)
	InsertSession(ctx context.Context, sess models.ChatSession) (string, error)
	UpdateSession(ctx context.Context, sess models.ChatSession) error
	DeleteSession(ctx context.Context, id string) error
}
