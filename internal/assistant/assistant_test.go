package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubAI struct {
	transcript    string
	transcribeErr error
	structured    string
	structureErr  error
	calls         int
}

func (s *stubAI) TranscribeAudio(ctx context.Context, audio []byte, filename, language string) (string, error) {
	s.calls++
	return s.transcript, s.transcribeErr
}

func (s *stubAI) StructureText(ctx context.Context, raw string) (string, error) {
	s.calls++
	return s.structured, s.structureErr
}

func newTestStore(ai *stubAI) *Store {
	return NewStore(time.Minute, time.Hour, ai, ai, zap.NewNop())
}

func TestDictationAppendsNeverReplaces(t *testing.T) {
	ai := &stubAI{transcript: "second line"}
	st := newTestStore(ai)
	s := st.Create(1, "first line")

	if !s.StartCapture() {
		t.Fatal("StartCapture should succeed on idle session")
	}
	transcript, err := s.FinishCapture(context.Background(), []byte{1}, "a.webm", "en")
	if err != nil {
		t.Fatalf("FinishCapture: %v", err)
	}
	if transcript != "second line" {
		t.Fatalf("transcript = %q", transcript)
	}

	snap := s.Snapshot()
	if snap.Draft != "first line\nsecond line" {
		t.Fatalf("draft = %q, want newline-joined append", snap.Draft)
	}

	// Empty draft takes the transcript without a leading newline.
	s2 := st.Create(1, "")
	s2.StartCapture()
	s2.FinishCapture(context.Background(), []byte{1}, "a.webm", "en")
	if got := s2.Snapshot().Draft; got != "second line" {
		t.Fatalf("draft = %q", got)
	}
}

func TestStartCaptureWhileCapturingIsNoop(t *testing.T) {
	st := newTestStore(&stubAI{})
	s := st.Create(1, "")

	if !s.StartCapture() {
		t.Fatal("first StartCapture should succeed")
	}
	if s.StartCapture() {
		t.Fatal("second StartCapture should be a no-op")
	}
	if !s.Snapshot().Capturing {
		t.Fatal("session should still be capturing")
	}
}

func TestFinishCaptureWhileIdleIsNoop(t *testing.T) {
	ai := &stubAI{transcript: "ignored"}
	st := newTestStore(ai)
	s := st.Create(1, "keep me")

	transcript, err := s.FinishCapture(context.Background(), []byte{1}, "a.webm", "en")
	if err != nil {
		t.Fatalf("FinishCapture: %v", err)
	}
	if transcript != "" {
		t.Fatalf("transcript = %q, want empty", transcript)
	}
	if ai.calls != 0 {
		t.Fatalf("transcriber called %d times on idle finish", ai.calls)
	}
	if got := s.Snapshot().Draft; got != "keep me" {
		t.Fatalf("draft = %q", got)
	}
}

func TestTranscriptionFailurePreservesDraft(t *testing.T) {
	ai := &stubAI{transcribeErr: errors.New("mic exploded")}
	st := newTestStore(ai)
	s := st.Create(1, "typed already")

	s.StartCapture()
	if _, err := s.FinishCapture(context.Background(), []byte{1}, "a.webm", "en"); err == nil {
		t.Fatal("expected transcription error")
	}

	snap := s.Snapshot()
	if snap.Draft != "typed already" {
		t.Fatalf("draft = %q, want preserved", snap.Draft)
	}
	if snap.Error == "" {
		t.Fatal("error state should surface on the session")
	}
	if snap.Capturing {
		t.Fatal("capture slot should be released after failure")
	}
}

func TestCaptureSlotAutoReleases(t *testing.T) {
	ai := &stubAI{transcript: "late"}
	st := NewStore(10*time.Millisecond, time.Hour, ai, ai, zap.NewNop())
	s := st.Create(1, "")

	s.StartCapture()
	time.Sleep(50 * time.Millisecond)

	snap := s.Snapshot()
	if snap.Capturing {
		t.Fatal("capture slot should auto-release after the max duration")
	}

	// A finish arriving after release is treated as idle.
	transcript, err := s.FinishCapture(context.Background(), []byte{1}, "a.webm", "en")
	if err != nil || transcript != "" {
		t.Fatalf("late finish: %q, %v", transcript, err)
	}
}

func TestPreviewReplaceApplyDismiss(t *testing.T) {
	ai := &stubAI{structured: "- v1"}
	st := newTestStore(ai)
	s := st.Create(1, "raw draft")

	if _, err := s.RequestPreview(context.Background()); err != nil {
		t.Fatalf("RequestPreview: %v", err)
	}

	// A new request replaces the prior unapplied preview.
	ai.structured = "- v2"
	if _, err := s.RequestPreview(context.Background()); err != nil {
		t.Fatalf("RequestPreview: %v", err)
	}
	if snap := s.Snapshot(); snap.Preview != "- v2" || !snap.HasPreview {
		t.Fatalf("preview = %+v", snap)
	}

	applied, ok := s.ApplyPreview()
	if !ok || applied != "- v2" {
		t.Fatalf("ApplyPreview = %q, %v", applied, ok)
	}
	snap := s.Snapshot()
	if snap.Structured != "- v2" || snap.HasPreview {
		t.Fatalf("after apply: %+v", snap)
	}

	// Applying again with nothing pending is refused.
	if _, ok := s.ApplyPreview(); ok {
		t.Fatal("second apply should report nothing pending")
	}
}

func TestDismissLeavesDraftAndAppliedValue(t *testing.T) {
	ai := &stubAI{structured: "- applied"}
	st := newTestStore(ai)
	s := st.Create(1, "the draft")

	s.RequestPreview(context.Background())
	s.ApplyPreview()

	ai.structured = "- discarded"
	s.RequestPreview(context.Background())
	s.DismissPreview()

	snap := s.Snapshot()
	if snap.HasPreview || snap.Preview != "" {
		t.Fatalf("preview should be gone: %+v", snap)
	}
	if snap.Draft != "the draft" || snap.Structured != "- applied" {
		t.Fatalf("dismiss must not touch draft or applied value: %+v", snap)
	}
}

func TestPreviewRequiresDraft(t *testing.T) {
	st := newTestStore(&stubAI{})
	s := st.Create(1, "")
	if _, err := s.RequestPreview(context.Background()); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("expected ErrNoDraft, got %v", err)
	}
}

func TestSessionsAreScopedToUser(t *testing.T) {
	st := newTestStore(&stubAI{})
	s := st.Create(7, "mine")

	if _, err := st.Get(7, s.ID); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
	if _, err := st.Get(8, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign lookup should fail, got %v", err)
	}
	if _, err := st.Get(7, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing lookup should fail, got %v", err)
	}
}
