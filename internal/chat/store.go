package chat

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/sohana-dev/nammai-web/internal/models"
)

// ErrSessionNotFound is returned by store operations addressed to a session
// id that no longer resolves.
var ErrSessionNotFound = errors.New("session not found")

// ErrStreamInFlight is returned when a send is requested for a session that
// already has an outstanding streaming call.
var ErrStreamInFlight = errors.New("a streaming call is already in flight for this session")

// greetingMessageID is the fixed id of the seeded assistant greeting. User
// and assistant message ids are millisecond timestamps, so the greeting never
// collides with them.
const greetingMessageID = 1

// session pairs the session value with the runtime state that never leaves
// this package: the model conversation handle and the outstanding stream
// registration.
type session struct {
	data models.ChatSession
	conv Conversation

	streamToken  string
	cancelStream context.CancelFunc
	composing    bool
}

// SessionStore owns every ChatSession value and is the single mutation path
// for all of them. Mutations arrive from several asynchronous sources (user
// actions, stream chunks, persistence callbacks), so every operation holds
// the store lock; consumers only ever see snapshot copies.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	order    []string // iteration order, most recent first
	activeID string

	lastTimeID int64
}

// NewSessionStore returns an empty store with no active session.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*session),
	}
}

// nextTimeID returns a millisecond timestamp guaranteed to increase within
// this process even when called twice inside the same millisecond.
func (s *SessionStore) nextTimeID() int64 {
	now := time.Now().UnixMilli()
	if now <= s.lastTimeID {
		now = s.lastTimeID + 1
	}
	s.lastTimeID = now
	return now
}

// NextMessageID allocates a monotonic client-side message id.
func (s *SessionStore) NextMessageID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextTimeID()
}

// Create allocates a new session seeded with the localized greeting, inserts
// it at the front of the iteration order, and marks it active. The caller
// supplies the conversation handle already scoped to the language's system
// preamble.
func (s *SessionStore) Create(conv Conversation, lang models.Language, ownerID string) models.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	strs := lang.Strings()
	now := time.Now()
	id := strconv.FormatInt(s.nextTimeID(), 10)
	sess := &session{
		data: models.ChatSession{
			ID:    id,
			Title: strs.NewChatTitle,
			Messages: []models.Message{{
				ID:     greetingMessageID,
				Sender: models.SenderAI,
				Text:   strs.InitialMessage,
			}},
			Language:  lang,
			OwnerID:   ownerID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		conv: conv,
	}

	s.sessions[id] = sess
	s.order = slices.Insert(s.order, 0, id)
	s.activeID = id

	return snapshot(sess.data)
}

// Adopt installs a session restored from the document store at the back of
// the iteration order. Load order is creation time descending, so appending
// preserves it.
func (s *SessionStore) Adopt(sess models.ChatSession, conv Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = &session{data: snapshot(sess), conv: conv}
	s.order = append(s.order, sess.ID)
	if s.activeID == "" {
		s.activeID = sess.ID
	}
}

// Select marks the given session active. Unknown ids are ignored.
func (s *SessionStore) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	s.activeID = id
	return true
}

// ActiveID returns the id of the active session, or "" when the store is
// empty.
func (s *SessionStore) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Active returns a snapshot of the active session.
func (s *SessionStore) Active() (models.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[s.activeID]
	if !ok {
		return models.ChatSession{}, false
	}
	return snapshot(sess.data), true
}

// Get returns a snapshot of the session with the given id.
func (s *SessionStore) Get(id string) (models.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return models.ChatSession{}, false
	}
	return snapshot(sess.data), true
}

// Sessions returns snapshots of every session in iteration order, most
// recent first.
func (s *SessionStore) Sessions() []models.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ChatSession, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, snapshot(s.sessions[id].data))
	}
	return out
}

// Count returns the number of sessions in the store.
func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Delete removes the session and cancels any stream it owns. When the
// removed session was active, the next-most-recent remaining session becomes
// active; the caller is responsible for creating a fresh session when none
// remain.
func (s *SessionStore) Delete(id string) (removed models.ChatSession, wasActive, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, found := s.sessions[id]
	if !found {
		return models.ChatSession{}, false, false
	}
	if sess.cancelStream != nil {
		sess.cancelStream()
	}
	delete(s.sessions, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })

	wasActive = s.activeID == id
	if wasActive {
		s.activeID = ""
		if len(s.order) > 0 {
			s.activeID = s.order[0]
		}
	}
	return snapshot(sess.data), wasActive, true
}

// ReplaceID atomically rekeys a session after its first successful
// persistence. The iteration order and, when applicable, the active pointer
// move to the new id.
func (s *SessionStore) ReplaceID(oldID, newID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[oldID]
	if !ok {
		return false
	}
	sess.data.ID = newID
	delete(s.sessions, oldID)
	s.sessions[newID] = sess

	for i, id := range s.order {
		if id == oldID {
			s.order[i] = newID
		}
	}
	if s.activeID == oldID {
		s.activeID = newID
	}
	return true
}

// MarkPersisted records that the session has a remote record.
func (s *SessionStore) MarkPersisted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.data.Persisted = true
	}
}

// Append adds a message to the end of the session's log. When the appended
// message is the session's first user message, the session title is derived
// from its text.
func (s *SessionStore) Append(id string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if msg.Sender == models.SenderUser && !sess.data.HasUserTurns() {
		sess.data.Title = models.DeriveTitle(msg.Text)
	}
	sess.data.Messages = append(sess.data.Messages, msg)
	sess.data.UpdatedAt = time.Now()
	return nil
}

// PatchLast merges the patch into the session's trailing message. It is a
// no-op for unknown sessions and for empty logs; a placeholder is always
// appended before patching begins, so neither occurs during normal streaming.
func (s *SessionStore) PatchLast(id string, patch models.MessagePatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || len(sess.data.Messages) == 0 {
		return
	}
	patch.Apply(&sess.data.Messages[len(sess.data.Messages)-1])
	sess.data.UpdatedAt = time.Now()
}

// Conversation returns the model conversation handle of the session.
func (s *SessionStore) Conversation(id string) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.conv == nil {
		return nil, false
	}
	return sess.conv, true
}

// SetLanguage rewrites the session's language, greeting, and conversation
// handle. It only applies while the session has no user turns; once the
// conversation has started the language is fixed.
func (s *SessionStore) SetLanguage(id string, lang models.Language, conv Conversation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.data.HasUserTurns() {
		return false
	}
	strs := lang.Strings()
	sess.data.Language = lang
	sess.data.Messages = []models.Message{{
		ID:     greetingMessageID,
		Sender: models.SenderAI,
		Text:   strs.InitialMessage,
	}}
	sess.data.UpdatedAt = time.Now()
	sess.conv = conv
	return true
}

// BeginStream registers an outstanding streaming call for the session. The
// token identifies the stream so late chunks from a superseded call can be
// recognized and dropped.
func (s *SessionStore) BeginStream(id, token string, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if sess.streamToken != "" {
		return ErrStreamInFlight
	}
	sess.streamToken = token
	sess.cancelStream = cancel
	return nil
}

// EndStream clears the stream registration if the token still matches.
func (s *SessionStore) EndStream(id, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.streamToken != token {
		return
	}
	sess.streamToken = ""
	sess.cancelStream = nil
}

// SetComposing records whether the session's outstanding stream is still
// waiting for its first chunk. The flag lives on the session so it survives
// the user switching away and back mid-stream. Returns the previous value.
func (s *SessionStore) SetComposing(id string, composing bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	prev := sess.composing
	sess.composing = composing
	return prev
}

// Composing reports whether the session's stream is awaiting its first
// chunk. Unknown sessions report false.
func (s *SessionStore) Composing(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	return sess.composing
}

// StreamToken returns the token of the session's outstanding stream, or ""
// when the session is idle or gone.
func (s *SessionStore) StreamToken(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ""
	}
	return sess.streamToken
}

// Clear cancels every outstanding stream and removes all sessions. Used on
// sign-out.
func (s *SessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		if sess.cancelStream != nil {
			sess.cancelStream()
		}
	}
	s.sessions = make(map[string]*session)
	s.order = nil
	s.activeID = ""
}

// snapshot copies a session value so callers never share the store's backing
// message slice.
func snapshot(data models.ChatSession) models.ChatSession {
	data.Messages = slices.Clone(data.Messages)
	return data
}
