package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"planner/internal/service"
)

// TranscribeHandler is the standalone transcription endpoint for
// surfaces that do not run an assistant session.
type TranscribeHandler struct {
	ai     service.AIResolver
	logger *zap.Logger
}

func NewTranscribeHandler(ai service.AIResolver, logger *zap.Logger) *TranscribeHandler {
	return &TranscribeHandler{ai: ai, logger: logger}
}

func (h *TranscribeHandler) Transcribe(c *gin.Context) {
	audio, filename, ok := readClip(c)
	if !ok {
		return
	}

	client, err := h.ai.ForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.logger.Error("Failed to resolve AI client", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transcription unavailable"})
		return
	}

	transcript, err := client.TranscribeAudio(c.Request.Context(), audio, filename, c.PostForm("language"))
	if err != nil {
		h.logger.Warn("Transcription failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "transcription failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"text": transcript})
}
