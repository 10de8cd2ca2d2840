package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"planner/internal/model"
	"planner/internal/schedule"
	"planner/internal/service"
)

type BoardHandler struct {
	deliverables *service.DeliverableService
	logger       *zap.Logger
}

func NewBoardHandler(deliverables *service.DeliverableService, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{deliverables: deliverables, logger: logger}
}

// Get serves the visible planning week. The anchor defaults to today;
// shift=prev|next with unit=week|month moves the window before
// rendering, so navigation stays a pure server-side computation.
func (h *BoardHandler) Get(c *gin.Context) {
	anchor := time.Now()
	if raw := c.Query("anchor"); raw != "" {
		parsed, err := time.Parse(model.DateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid anchor date, want yyyy-mm-dd"})
			return
		}
		anchor = parsed
	}

	window := schedule.NewWindow(anchor)

	if shift := c.Query("shift"); shift != "" {
		dir := schedule.Direction(shift)
		if dir != schedule.DirectionPrev && dir != schedule.DirectionNext {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid shift, want prev or next"})
			return
		}
		unit := schedule.Unit(c.DefaultQuery("unit", string(schedule.UnitWeek)))
		if unit != schedule.UnitWeek && unit != schedule.UnitMonth {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unit, want week or month"})
			return
		}
		window = window.Shift(unit, dir)
	}

	days, err := h.deliverables.Board(c.Request.Context(), currentUserID(c), window)
	if err != nil {
		h.logger.Error("Failed to build board", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch board"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"anchor": window.Anchor.Format(model.DateLayout),
		"start":  window.Start().Format(model.DateLayout),
		"days":   days,
	})
}
