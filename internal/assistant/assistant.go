// Package assistant implements the capture-then-review flow shared by
// every text entry surface: dictate a voice memo into the draft, or
// request an AI-structured preview and apply or dismiss it. Sessions
// hold draft state only; persistence stays with the owning surface.
package assistant

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"planner/pkg/trace"
)

var (
	ErrNotFound = errors.New("assistant session not found")
	ErrNoDraft  = errors.New("draft is empty")
)

// Transcriber turns one encoded audio clip into text.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, audio []byte, filename, language string) (string, error)
}

// Structurer turns free text into a bullet rendition.
type Structurer interface {
	StructureText(ctx context.Context, raw string) (string, error)
}

// Session is one capture-and-preview surface. All methods are safe for
// concurrent use; a session owns at most one active capture at a time.
type Session struct {
	ID     string
	UserID int

	mu           sync.Mutex
	draft        string
	structured   string
	preview      string
	hasPreview   bool
	capturing    bool
	captureTimer *time.Timer
	lastError    string
	touchedAt    time.Time

	captureMax  time.Duration
	transcriber Transcriber
	structurer  Structurer
}

// Snapshot is a consistent read of session state for rendering.
type Snapshot struct {
	ID         string `json:"id"`
	Draft      string `json:"draft"`
	Structured string `json:"structured,omitempty"`
	Preview    string `json:"preview,omitempty"`
	HasPreview bool   `json:"has_preview"`
	Capturing  bool   `json:"capturing"`
	Error      string `json:"error,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:         s.ID,
		Draft:      s.draft,
		Structured: s.structured,
		Preview:    s.preview,
		HasPreview: s.hasPreview,
		Capturing:  s.capturing,
		Error:      s.lastError,
	}
}

// SetDraft replaces the committed draft text.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
	s.touch()
}

// StartCapture acquires the session's capture slot. Starting while a
// capture is active is a no-op and returns false. The slot is released
// automatically after the configured maximum duration.
func (s *Session) StartCapture() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capturing {
		return false
	}
	s.capturing = true
	s.lastError = ""
	s.touch()

	s.captureTimer = time.AfterFunc(s.captureMax, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.capturing {
			s.capturing = false
			s.lastError = "capture timed out"
		}
	})
	return true
}

// FinishCapture releases the capture slot, transcribes the uploaded
// clip and appends the transcript to the draft, newline-joined. It
// never overwrites prior draft content. Finishing while not capturing
// is a no-op. A transcription failure surfaces on the session and
// leaves the draft untouched.
func (s *Session) FinishCapture(ctx context.Context, audio []byte, filename, language string) (string, error) {
	s.mu.Lock()
	if !s.capturing {
		s.mu.Unlock()
		return "", nil
	}
	s.releaseCaptureLocked()
	s.mu.Unlock()

	transcript, err := s.transcriber.TranscribeAudio(ctx, audio, filename, language)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if err != nil {
		s.lastError = err.Error()
		return "", err
	}

	if s.draft == "" {
		s.draft = transcript
	} else {
		s.draft = s.draft + "\n" + transcript
	}
	return transcript, nil
}

// CancelCapture releases the capture slot without transcribing.
// Cancelling while idle is a no-op.
func (s *Session) CancelCapture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.capturing {
		return
	}
	s.releaseCaptureLocked()
	s.touch()
}

func (s *Session) releaseCaptureLocked() {
	s.capturing = false
	if s.captureTimer != nil {
		s.captureTimer.Stop()
		s.captureTimer = nil
	}
}

// RequestPreview structures the current draft into a tentative preview.
// A new request replaces any prior unapplied preview.
func (s *Session) RequestPreview(ctx context.Context) (string, error) {
	s.mu.Lock()
	draft := s.draft
	s.mu.Unlock()

	if draft == "" {
		return "", ErrNoDraft
	}

	structured, err := s.structurer.StructureText(ctx, draft)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if err != nil {
		s.lastError = err.Error()
		return "", err
	}

	s.preview = structured
	s.hasPreview = true
	s.lastError = ""
	return structured, nil
}

// ApplyPreview commits the pending preview as the structured value the
// owning surface will persist. Returns false when nothing is pending.
func (s *Session) ApplyPreview() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasPreview {
		return "", false
	}
	s.structured = s.preview
	s.preview = ""
	s.hasPreview = false
	s.touch()
	return s.structured, true
}

// DismissPreview discards the pending preview, leaving the draft and
// any previously applied value unchanged.
func (s *Session) DismissPreview() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preview = ""
	s.hasPreview = false
	s.touch()
}

func (s *Session) touch() {
	s.touchedAt = time.Now()
}

// Store owns the in-memory assistant sessions, keyed by ID and scoped
// to their owning user. Idle sessions are evicted lazily on create.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	captureMax  time.Duration
	sessionTTL  time.Duration
	transcriber Transcriber
	structurer  Structurer
	logger      *zap.Logger
}

func NewStore(captureMax, sessionTTL time.Duration, transcriber Transcriber, structurer Structurer, logger *zap.Logger) *Store {
	return &Store{
		sessions:    make(map[string]*Session),
		captureMax:  captureMax,
		sessionTTL:  sessionTTL,
		transcriber: transcriber,
		structurer:  structurer,
		logger:      logger,
	}
}

// Create opens a new session for the user, seeded with an optional
// initial draft.
func (st *Store) Create(userID int, draft string) *Session {
	s := &Session{
		ID:          trace.GenerateTraceID(),
		UserID:      userID,
		draft:       draft,
		touchedAt:   time.Now(),
		captureMax:  st.captureMax,
		transcriber: st.transcriber,
		structurer:  st.structurer,
	}

	st.mu.Lock()
	st.evictIdleLocked()
	st.sessions[s.ID] = s
	st.mu.Unlock()

	return s
}

// Get returns the user's session or ErrNotFound. Sessions are private
// to their creator.
func (st *Store) Get(userID int, id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok || s.UserID != userID {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete drops a session.
func (st *Store) Delete(userID int, id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok && s.UserID == userID {
		delete(st.sessions, id)
	}
}

func (st *Store) evictIdleLocked() {
	cutoff := time.Now().Add(-st.sessionTTL)
	for id, s := range st.sessions {
		s.mu.Lock()
		idle := s.touchedAt.Before(cutoff) && !s.capturing
		s.mu.Unlock()
		if idle {
			delete(st.sessions, id)
			if st.logger != nil {
				st.logger.Debug("Evicted idle assistant session", zap.String("session_id", id))
			}
		}
	}
}
