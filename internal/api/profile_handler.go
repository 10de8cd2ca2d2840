package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"planner/internal/service"
)

// ProfileHandler exposes the per-user LLM API key. The key is stored
// encrypted and only ever returned masked.
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *zap.Logger
}

func NewProfileHandler(profiles *service.ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	masked, err := h.profiles.MaskedKey(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.logger.Error("Failed to load profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"llm_api_key": masked, "has_key": masked != ""})
}

type updateProfileRequest struct {
	LLMAPIKey string `json:"llm_api_key"`
}

// Update stores a new key; an empty key clears the override and falls
// back to the server-wide default.
func (h *ProfileHandler) Update(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.profiles.SaveKey(c.Request.Context(), currentUserID(c), req.LLMAPIKey); err != nil {
		h.logger.Error("Failed to save profile key", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save key"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}
