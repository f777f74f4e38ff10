package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sohana-dev/nammai-web/internal/models"
)

// GenerationMode is a one-shot modifier applied to a single send; it wraps
// the prompt in a mode-specific instruction template and has no effect on
// later sends.
type GenerationMode string

const (
	// ModeChat sends the prompt as typed.
	ModeChat GenerationMode = "chat"
	// ModeSlides wraps the prompt in the presentation-authoring template.
	ModeSlides GenerationMode = "slides"
	// ModeCode wraps the prompt in the code-request template.
	ModeCode GenerationMode = "code"
)

// ErrEmptyMessage is returned when a send carries neither prompt text after
// mode transformation nor a file.
var ErrEmptyMessage = errors.New("message is empty")

// ErrNoActiveSession is returned when a send arrives while the store holds
// no sessions.
var ErrNoActiveSession = errors.New("no active session")

// Events carries the observable-state callbacks the surrounding shell hooks
// into. Nil fields are skipped. Callbacks run on the goroutine performing
// the mutation, between store writes, so they observe consistent snapshots.
type Events struct {
	SessionsChanged  func()
	MessagesChanged  func(sessionID string)
	ComposingChanged func(composing bool)
	PreviewChanged   func(doc string, ok bool)
}

func (e Events) sessionsChanged() {
	if e.SessionsChanged != nil {
		e.SessionsChanged()
	}
}

func (e Events) messagesChanged(sessionID string) {
	if e.MessagesChanged != nil {
		e.MessagesChanged(sessionID)
	}
}

func (e Events) composingChanged(composing bool) {
	if e.ComposingChanged != nil {
		e.ComposingChanged(composing)
	}
}

func (e Events) previewChanged(doc string, ok bool) {
	if e.PreviewChanged != nil {
		e.PreviewChanged(doc, ok)
	}
}

// Service drives one user's conversations: it owns the session store, runs
// the streaming reconciliation for each send, extracts preview documents
// from finished responses, and syncs session state through the persistence
// bridge.
type Service struct {
	store     *SessionStore
	transport Transport
	bridge    *Bridge
	events    Events
	logger    *slog.Logger

	mu         sync.Mutex
	owner      string
	language   models.Language
	preview    string
	hasPreview bool
}

// NewService wires a service over the given model transport and document
// store. A nil docs disables persistence.
func NewService(transport Transport, docs Store, events Events, logger *slog.Logger) *Service {
	return &Service{
		store:     NewSessionStore(),
		transport: transport,
		bridge:    NewBridge(docs, logger),
		events:    events,
		logger:    logger.With(slog.String("module", "chat")),
		language:  models.LanguageKannada,
	}
}

// Store exposes the session store for read access by the shell.
func (s *Service) Store() *SessionStore { return s.store }

// Language returns the language new sessions are created with.
func (s *Service) Language() models.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// Preview returns the current preview document, if any.
func (s *Service) Preview() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview, s.hasPreview
}

// Composing reports whether the assistant is composing a response for the
// active session, i.e. a stream is open but its first chunk has not arrived.
func (s *Service) Composing() bool {
	return s.store.Composing(s.store.ActiveID())
}

// SignIn loads the principal's persisted sessions, most recent first,
// reconstructing a model conversation handle for each from its language
// preamble (handles are not persisted, only message history is). The most
// recent session becomes active; when none exist a fresh session is created.
func (s *Service) SignIn(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	s.owner = ownerID
	s.mu.Unlock()

	for _, sess := range s.bridge.Load(ctx, ownerID) {
		conv, err := s.transport.CreateConversation(ctx, sess.Language.Strings().SystemInstruction)
		if err != nil {
			return fmt.Errorf("failed to open conversation for session %s: %w", sess.ID, err)
		}
		s.store.Adopt(sess, conv)
	}

	if s.store.Count() == 0 {
		if _, err := s.NewSession(ctx); err != nil {
			return err
		}
		return nil
	}

	if active, ok := s.store.Active(); ok {
		s.mu.Lock()
		s.language = active.Language
		s.mu.Unlock()
		s.recomputePreview(active)
	}
	s.events.sessionsChanged()
	return nil
}

// SignOut cancels outstanding streams and clears all local session state.
func (s *Service) SignOut() {
	s.store.Clear()

	s.mu.Lock()
	s.owner = ""
	s.preview = ""
	s.hasPreview = false
	s.mu.Unlock()

	s.events.sessionsChanged()
	s.events.previewChanged("", false)
	s.events.composingChanged(false)
}

// NewSession opens a fresh model conversation in the current language, seeds
// it with the localized greeting, and makes it active. Failing to allocate
// the conversation handle is a configuration error and is not retried.
func (s *Service) NewSession(ctx context.Context) (models.ChatSession, error) {
	s.mu.Lock()
	lang := s.language
	owner := s.owner
	s.mu.Unlock()

	conv, err := s.transport.CreateConversation(ctx, lang.Strings().SystemInstruction)
	if err != nil {
		return models.ChatSession{}, fmt.Errorf("failed to create conversation: %w", err)
	}

	sess := s.store.Create(conv, lang, owner)
	s.setPreview("", false)
	s.events.sessionsChanged()
	s.events.messagesChanged(sess.ID)
	s.events.composingChanged(false)
	return sess, nil
}

// SelectSession makes the given session active and recomputes the preview
// from its most recent assistant message. Unknown ids are ignored; selecting
// the already-active session changes nothing.
func (s *Service) SelectSession(id string) {
	if !s.store.Select(id) {
		return
	}
	sess, _ := s.store.Get(id)

	s.mu.Lock()
	s.language = sess.Language
	s.mu.Unlock()

	s.recomputePreview(sess)
	s.events.sessionsChanged()
	s.events.messagesChanged(id)
	// The selected session may have a stream still awaiting its first chunk,
	// or one that finished while it was in the background.
	s.events.composingChanged(s.store.Composing(id))
}

// DeleteSession removes the session locally and from the document store.
// The store is never left empty: deleting the last remaining session
// immediately creates a fresh one.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	removed, wasActive, ok := s.store.Delete(id)
	if !ok {
		return nil
	}
	s.bridge.Delete(ctx, removed)

	if s.store.Count() == 0 {
		if _, err := s.NewSession(ctx); err != nil {
			return err
		}
	} else if wasActive {
		if active, found := s.store.Active(); found {
			s.recomputePreview(active)
		}
	}
	s.events.sessionsChanged()
	if active, found := s.store.Active(); found {
		s.events.messagesChanged(active.ID)
		s.events.composingChanged(s.store.Composing(active.ID))
	}
	return nil
}

// ChangeLanguage switches the language used for new sessions. When the
// active session has no user turns yet, its greeting and system preamble are
// rewritten in the new language over a fresh conversation handle; otherwise
// the existing session is left untouched.
func (s *Service) ChangeLanguage(ctx context.Context, lang models.Language) error {
	if !lang.Valid() {
		return fmt.Errorf("unknown language %q", lang)
	}

	s.mu.Lock()
	s.language = lang
	s.mu.Unlock()

	active, ok := s.store.Active()
	if !ok || active.HasUserTurns() {
		return nil
	}

	conv, err := s.transport.CreateConversation(ctx, lang.Strings().SystemInstruction)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	if s.store.SetLanguage(active.ID, lang, conv) {
		s.events.sessionsChanged()
		s.events.messagesChanged(active.ID)
	}
	return nil
}

// SendMessage appends the user's message to the active session, opens a
// streaming model call, and incrementally patches the trailing assistant
// placeholder as chunks arrive. It blocks until the stream is exhausted;
// callers wanting asynchrony run it on their own goroutine. Transport and
// stream failures are reconciled into the session (placeholder finalized, a
// localized failure message appended) and do not surface as errors.
func (s *Service) SendMessage(ctx context.Context, text string, file *Part, mode GenerationMode) error {
	active, ok := s.store.Active()
	if !ok {
		return ErrNoActiveSession
	}
	strs := active.Language.Strings()

	prompt := transformPrompt(strings.TrimSpace(text), file, mode, strs)
	if prompt == "" {
		return ErrEmptyMessage
	}

	sessionID := active.ID
	conv, ok := s.store.Conversation(sessionID)
	if !ok {
		return fmt.Errorf("session %s has no conversation handle", sessionID)
	}

	token := uuid.New().String()
	streamCtx, cancel := context.WithCancel(ctx)
	if err := s.store.BeginStream(sessionID, token, cancel); err != nil {
		cancel()
		return err
	}
	// The first sync below may rekey the session, so the registration must be
	// released under whatever id the session holds by then.
	defer func() { s.store.EndStream(sessionID, token) }()
	defer cancel()

	// The user message records the text as typed; mode templates only shape
	// what is sent to the model.
	if err := s.store.Append(sessionID, models.Message{
		ID:     s.store.NextMessageID(),
		Sender: models.SenderUser,
		Text:   strings.TrimSpace(text),
	}); err != nil {
		return err
	}
	if err := s.store.Append(sessionID, models.Message{
		ID:       s.store.NextMessageID(),
		Sender:   models.SenderAI,
		IsTyping: true,
	}); err != nil {
		return err
	}

	s.setComposing(true, sessionID)
	s.setPreview("", false)
	s.events.sessionsChanged()
	s.events.messagesChanged(sessionID)
	sessionID = s.sync(ctx, sessionID)

	parts := []Part{{Text: prompt}}
	if file != nil {
		parts = append(parts, *file)
	}

	s.consume(streamCtx, sessionID, token, conv, parts, strs)
	s.sync(ctx, sessionID)
	return nil
}

// consume drains one streaming call, merging each chunk's accumulated text
// into the session's trailing placeholder. Chunk application is strictly
// sequential: each patch extends the previous buffer, never truncates it.
func (s *Service) consume(
	ctx context.Context,
	sessionID, token string,
	conv Conversation,
	parts []Part,
	strs models.Strings,
) {
	first := true
	var buf strings.Builder

	for delta, err := range conv.StreamSend(ctx, parts) {
		// The session may have been deleted mid-stream; its token is gone
		// and the chunk has nowhere to go.
		if s.store.StreamToken(sessionID) != token {
			return
		}
		if err != nil {
			s.logger.Error("Error from model transport",
				slog.String("sessionID", sessionID),
				slog.String(errLoggerKey, err.Error()))
			s.failStream(ctx, sessionID, strs)
			return
		}
		if first {
			first = false
			s.setComposing(false, sessionID)
		}
		buf.WriteString(delta)

		text := buf.String()
		typing := false
		s.store.PatchLast(sessionID, models.MessagePatch{Text: &text, IsTyping: &typing})
		s.events.messagesChanged(sessionID)
	}

	if s.store.StreamToken(sessionID) != token {
		return
	}

	if first {
		// The call completed without producing any content.
		text := "..."
		typing := false
		s.store.PatchLast(sessionID, models.MessagePatch{Text: &text, IsTyping: &typing})
		s.setComposing(false, sessionID)
		s.events.messagesChanged(sessionID)
		return
	}

	if doc, ok := ExtractHTML(buf.String()); ok && s.store.ActiveID() == sessionID {
		s.setPreview(doc, true)
	}
}

// failStream finalizes the placeholder (typing cleared, accumulated text
// kept) and appends an explicit localized failure message after it.
func (s *Service) failStream(ctx context.Context, sessionID string, strs models.Strings) {
	typing := false
	s.store.PatchLast(sessionID, models.MessagePatch{IsTyping: &typing})
	s.setComposing(false, sessionID)

	if err := s.store.Append(sessionID, models.Message{
		ID:     s.store.NextMessageID(),
		Sender: models.SenderAI,
		Text:   strs.APIError,
	}); err != nil {
		return
	}
	s.events.messagesChanged(sessionID)
	s.sync(ctx, sessionID)
}

// transformPrompt applies the one-shot generation mode to the typed text.
// When only a file is attached, a fixed describe-this-image instruction
// stands in for the missing prompt.
func transformPrompt(text string, file *Part, mode GenerationMode, strs models.Strings) string {
	prompt := text
	switch mode {
	case ModeSlides:
		if prompt != "" {
			prompt = strs.SlidesPrompt(prompt)
		}
	case ModeCode:
		if prompt != "" {
			prompt = fmt.Sprintf("Please write %s code with proper explanation and best practices.", prompt)
		}
	}
	if prompt == "" && file != nil {
		prompt = strs.ImageAnalysisPrompt
	}
	return prompt
}

// sync upserts the session through the persistence bridge and, on first
// insert, migrates every reference from the client-generated id to the
// store-assigned one. It returns the session's current id so in-flight
// callers can follow the rekey.
func (s *Service) sync(ctx context.Context, sessionID string) string {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return sessionID
	}

	s.mu.Lock()
	owner := s.owner
	s.mu.Unlock()
	if owner == "" {
		return sessionID
	}
	sess.OwnerID = owner

	newID, inserted := s.bridge.Upsert(ctx, sess)
	if !inserted {
		return sessionID
	}
	if s.store.ReplaceID(sessionID, newID) {
		s.store.MarkPersisted(newID)
		s.events.sessionsChanged()
		return newID
	}
	return sessionID
}

// recomputePreview rebuilds preview state from the session's most recent
// assistant message. Switching sessions never reuses the previous session's
// leftover preview.
func (s *Service) recomputePreview(sess models.ChatSession) {
	if last, ok := sess.LastAIMessage(); ok {
		if doc, found := ExtractHTML(last.Text); found {
			s.setPreview(doc, true)
			return
		}
	}
	s.setPreview("", false)
}

func (s *Service) setPreview(doc string, ok bool) {
	s.mu.Lock()
	changed := s.preview != doc || s.hasPreview != ok
	s.preview = doc
	s.hasPreview = ok
	s.mu.Unlock()
	if changed {
		s.events.previewChanged(doc, ok)
	}
}

// setComposing records the owning session's composing flag. The change is
// always recorded so switching back to the session later reads the right
// state, but it is only published while the session is active: a stream
// filling a background session must not flip the visible indicator.
func (s *Service) setComposing(composing bool, sessionID string) {
	prev := s.store.SetComposing(sessionID, composing)
	if prev == composing {
		return
	}
	if s.store.ActiveID() == sessionID {
		s.events.composingChanged(composing)
	}
}
