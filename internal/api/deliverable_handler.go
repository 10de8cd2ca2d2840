package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"planner/internal/model"
	"planner/internal/service"
)

type DeliverableHandler struct {
	deliverables *service.DeliverableService
	logger       *zap.Logger
}

func NewDeliverableHandler(deliverables *service.DeliverableService, logger *zap.Logger) *DeliverableHandler {
	return &DeliverableHandler{deliverables: deliverables, logger: logger}
}

type createDeliverableRequest struct {
	ProjectID      int    `json:"project_id" binding:"required"`
	Date           string `json:"date" binding:"required"`
	RawText        string `json:"raw_text" binding:"required"`
	StructuredText string `json:"structured_text"`
	Title          string `json:"title"`
	Tag            string `json:"tag"`
	ColorOverride  string `json:"color_override"`
}

// Create handles a placement proposal. Proposals onto past dates are
// dropped silently: the response says so and nothing is stored.
func (h *DeliverableHandler) Create(c *gin.Context) {
	var req createDeliverableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	date, err := time.Parse(model.DateLayout, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want yyyy-mm-dd"})
		return
	}

	d, err := h.deliverables.Create(c.Request.Context(), currentUserID(c), service.CreateDeliverableInput{
		ProjectID:      req.ProjectID,
		Date:           date,
		RawText:        req.RawText,
		StructuredText: req.StructuredText,
		Title:          req.Title,
		Tag:            req.Tag,
		ColorOverride:  req.ColorOverride,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPastDate):
			h.logger.Info("Dropped placement on past date",
				zap.Int("project_id", req.ProjectID),
				zap.String("date", req.Date),
			)
			c.JSON(http.StatusOK, gin.H{"status": "dropped"})
		case errors.Is(err, service.ErrEmptyText):
			c.JSON(http.StatusBadRequest, gin.H{"error": "raw_text is required"})
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		default:
			h.logger.Error("Failed to create deliverable", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create deliverable"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "created", "deliverable": d})
}

// List returns the user's full deliverable collection. Clients refresh
// with this after every mutation instead of patching local state.
func (h *DeliverableHandler) List(c *gin.Context) {
	all, err := h.deliverables.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.logger.Error("Failed to list deliverables", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch deliverables"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliverables": all})
}

type editDeliverableRequest struct {
	RawText        *string `json:"raw_text"`
	StructuredText *string `json:"structured_text"`
	Notes          *string `json:"notes"`
	Tag            *string `json:"tag"`
	ColorOverride  *string `json:"color_override"`
	Title          *string `json:"title"`
}

func (h *DeliverableHandler) Edit(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deliverable id"})
		return
	}

	var req editDeliverableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	d, err := h.deliverables.Edit(c.Request.Context(), currentUserID(c), id, service.EditDeliverableInput{
		RawText:        req.RawText,
		StructuredText: req.StructuredText,
		Notes:          req.Notes,
		Tag:            req.Tag,
		ColorOverride:  req.ColorOverride,
		Title:          req.Title,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "deliverable not found"})
		case errors.Is(err, service.ErrEmptyText):
			c.JSON(http.StatusBadRequest, gin.H{"error": "raw_text cannot be emptied"})
		default:
			h.logger.Error("Failed to edit deliverable", zap.Int("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update deliverable"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"deliverable": d})
}

type reportRequest struct {
	RawText        string `json:"raw_text" binding:"required"`
	StructuredText string `json:"structured_text"`
}

// Complete marks a deliverable done with its mandatory report.
func (h *DeliverableHandler) Complete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deliverable id"})
		return
	}

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "report raw_text is required"})
		return
	}

	rep, err := h.deliverables.Complete(c.Request.Context(), currentUserID(c), id, req.RawText, req.StructuredText)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "deliverable not found"})
		case errors.Is(err, service.ErrAlreadyDone):
			c.JSON(http.StatusConflict, gin.H{"error": "deliverable is already done"})
		case errors.Is(err, service.ErrReportRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "report raw_text is required"})
		default:
			h.logger.Error("Failed to complete deliverable", zap.Int("id", id), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to complete deliverable"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "done", "report": rep})
}

func (h *DeliverableHandler) Reopen(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deliverable id"})
		return
	}

	if err := h.deliverables.Reopen(c.Request.Context(), currentUserID(c), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "deliverable not found"})
			return
		}
		h.logger.Error("Failed to reopen deliverable", zap.Int("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reopen deliverable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "pending"})
}

// Toggle is the compact-view checkbox. Reopening is allowed; marking
// done without a report is refused so the report flow stays mandatory.
func (h *DeliverableHandler) Toggle(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deliverable id"})
		return
	}

	d, err := h.deliverables.Toggle(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "deliverable not found"})
		case errors.Is(err, service.ErrReportRequired):
			c.JSON(http.StatusConflict, gin.H{"error": "completion requires a report, use the complete endpoint"})
		default:
			h.logger.Error("Failed to toggle deliverable", zap.Int("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to toggle deliverable"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"deliverable": d})
}

// AddReport appends a report without completing the deliverable.
func (h *DeliverableHandler) AddReport(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deliverable id"})
		return
	}

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "report raw_text is required"})
		return
	}

	rep, err := h.deliverables.AddReport(c.Request.Context(), currentUserID(c), id, req.RawText, req.StructuredText)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "deliverable not found"})
		case errors.Is(err, service.ErrReportRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "report raw_text is required"})
		default:
			h.logger.Error("Failed to add report", zap.Int("id", id), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to add report"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"report": rep})
}

func (h *DeliverableHandler) Reports(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deliverable id"})
		return
	}

	reports, err := h.deliverables.Reports(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "deliverable not found"})
			return
		}
		h.logger.Error("Failed to list reports", zap.Int("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch reports"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports})
}
