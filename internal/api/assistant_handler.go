package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"planner/internal/assistant"
)

// maxClipBytes caps one uploaded voice memo at 15 MiB.
const maxClipBytes = 15 << 20

type AssistantHandler struct {
	store  *assistant.Store
	logger *zap.Logger
}

func NewAssistantHandler(store *assistant.Store, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{store: store, logger: logger}
}

type createSessionRequest struct {
	Draft string `json:"draft"`
}

func (h *AssistantHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	s := h.store.Create(currentUserID(c), req.Draft)
	c.JSON(http.StatusCreated, gin.H{"session": s.Snapshot()})
}

func (h *AssistantHandler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s.Snapshot()})
}

func (h *AssistantHandler) DeleteSession(c *gin.Context) {
	h.store.Delete(currentUserID(c), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type setDraftRequest struct {
	Draft string `json:"draft"`
}

func (h *AssistantHandler) SetDraft(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req setDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	s.SetDraft(req.Draft)
	c.JSON(http.StatusOK, gin.H{"session": s.Snapshot()})
}

// StartCapture acquires the session's single capture slot. Starting
// while already capturing is reported, not an error.
func (h *AssistantHandler) StartCapture(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	started := s.StartCapture()
	c.JSON(http.StatusOK, gin.H{"started": started, "session": s.Snapshot()})
}

// FinishCapture uploads the recorded clip, transcribes it and appends
// the transcript to the draft. Finishing while idle is a no-op.
func (h *AssistantHandler) FinishCapture(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	audio, filename, ok := readClip(c)
	if !ok {
		return
	}

	transcript, err := s.FinishCapture(c.Request.Context(), audio, filename, c.PostForm("language"))
	if err != nil {
		h.logger.Warn("Transcription failed",
			zap.String("session_id", s.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "transcription failed", "session": s.Snapshot()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transcript": transcript, "session": s.Snapshot()})
}

func (h *AssistantHandler) CancelCapture(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	s.CancelCapture()
	c.JSON(http.StatusOK, gin.H{"session": s.Snapshot()})
}

// RequestPreview asks for an AI-structured rendition of the draft. The
// draft itself is never touched.
func (h *AssistantHandler) RequestPreview(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	preview, err := s.RequestPreview(c.Request.Context())
	if err != nil {
		if errors.Is(err, assistant.ErrNoDraft) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "draft is empty"})
			return
		}
		h.logger.Warn("Preview request failed", zap.String("session_id", s.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to structure draft", "session": s.Snapshot()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"preview": preview, "session": s.Snapshot()})
}

func (h *AssistantHandler) ApplyPreview(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	structured, applied := s.ApplyPreview()
	if !applied {
		c.JSON(http.StatusConflict, gin.H{"error": "no pending preview"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"structured": structured, "session": s.Snapshot()})
}

func (h *AssistantHandler) DismissPreview(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	s.DismissPreview()
	c.JSON(http.StatusOK, gin.H{"session": s.Snapshot()})
}

func (h *AssistantHandler) session(c *gin.Context) (*assistant.Session, bool) {
	s, err := h.store.Get(currentUserID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return s, true
}

// readClip pulls the uploaded audio file out of the multipart form.
func readClip(c *gin.Context) ([]byte, string, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is required"})
		return nil, "", false
	}
	if fileHeader.Size > maxClipBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio clip too large"})
		return nil, "", false
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read audio file"})
		return nil, "", false
	}
	defer f.Close()

	audio, err := io.ReadAll(io.LimitReader(f, maxClipBytes+1))
	if err != nil || len(audio) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read audio file"})
		return nil, "", false
	}

	return audio, fileHeader.Filename, true
}
