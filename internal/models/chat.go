package models

import "time"

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	// SenderUser marks a message typed by the signed-in user.
	SenderUser Sender = "USER"
	// SenderAI marks a message produced by the model, including the greeting
	// a fresh session is seeded with.
	SenderAI Sender = "AI"
)

// Message is one entry in a session's conversation log. IDs are
// client-generated from a monotonic millisecond clock and are unique within
// a session; they are the only correlation key used when the trailing
// message is patched during streaming.
type Message struct {
	ID     int64  `json:"id" bson:"id"`
	Sender Sender `json:"sender" bson:"sender"`
	Text   string `json:"text" bson:"text"`

	// IsTyping flags the in-flight assistant placeholder. It is transient
	// UI state and is never persisted.
	IsTyping bool `json:"-" bson:"-"`

	ImageURL       string `json:"imageUrl,omitempty" bson:"image_url,omitempty"`
	IsDownloadable bool   `json:"isDownloadable,omitempty" bson:"is_downloadable,omitempty"`
}

// MessagePatch carries a shallow field merge for the trailing message of a
// session. Nil fields are left untouched.
type MessagePatch struct {
	Text     *string
	IsTyping *bool
	ImageURL *string
}

// Apply merges the non-nil fields of the patch into m.
func (p MessagePatch) Apply(m *Message) {
	if p.Text != nil {
		m.Text = *p.Text
	}
	if p.IsTyping != nil {
		m.IsTyping = *p.IsTyping
	}
	if p.ImageURL != nil {
		m.ImageURL = *p.ImageURL
	}
}

// ChatSession is one conversation thread. A session id has two lifecycles: a
// short client-generated id (millisecond timestamp) assigned at creation,
// replaced by the longer store-assigned id once the session is first
// persisted. Persisted records the transition explicitly so the insert/update
// decision does not have to be inferred from the id shape.
type ChatSession struct {
	ID       string    `json:"id" bson:"-"`
	Title    string    `json:"title" bson:"title"`
	Messages []Message `json:"messages" bson:"messages"`
	Language Language  `json:"language" bson:"language"`
	OwnerID  string    `json:"ownerId,omitempty" bson:"owner_id,omitempty"`

	Persisted bool      `json:"-" bson:"-"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// LastAIMessage returns the most recent assistant message, or false when the
// session has none.
func (s ChatSession) LastAIMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Sender == SenderAI {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// HasUserTurns reports whether the user has sent anything yet. A fresh
// session holds only the seeded greeting, so changing its language may still
// rewrite the greeting and system preamble.
func (s ChatSession) HasUserTurns() bool {
	for _, m := range s.Messages {
		if m.Sender == SenderUser {
			return true
		}
	}
	return false
}

// titleLimit is the number of characters of the first user message used as
// the session title.
const titleLimit = 30

// DeriveTitle builds a session title from the first user message: the first
// 30 characters, with an ellipsis marker when truncated.
func DeriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit]) + "..."
}
