// Package mqhandler holds the consumers for domain events.
package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"planner/internal/service"
)

// Deduper spares redundant work on redelivery. Implemented by
// util.Deduper.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler string, id int) bool
}

// SummaryCacheHandler invalidates cached project summaries whenever a
// deliverable or report under the project changes. Invalidation is
// idempotent; the deduper only spares redundant work on redelivery.
// One handler instance serves one routing key, so dedupe keys never
// cross event kinds.
type SummaryCacheHandler struct {
	cache   service.SummaryCache
	deduper Deduper
	kind    string
	logger  *zap.Logger
}

func NewSummaryCacheHandler(cache service.SummaryCache, deduper Deduper, kind string, logger *zap.Logger) *SummaryCacheHandler {
	return &SummaryCacheHandler{cache: cache, deduper: deduper, kind: kind, logger: logger}
}

// projectRef is the slice of every event payload the handler needs.
type projectRef struct {
	ProjectID     int `json:"project_id"`
	DeliverableID int `json:"deliverable_id"`
	ReportID      int `json:"report_id"`
}

func (h *SummaryCacheHandler) Handle(ctx context.Context, data json.RawMessage) error {
	var ref projectRef
	if err := json.Unmarshal(data, &ref); err != nil {
		// Malformed payloads are dropped, not requeued.
		h.logger.Error("Failed to decode event payload", zap.String("kind", h.kind), zap.Error(err))
		return nil
	}
	if ref.ProjectID == 0 {
		h.logger.Warn("Event payload without project id, skipping", zap.String("kind", h.kind))
		return nil
	}

	dedupID := ref.DeliverableID
	if ref.ReportID != 0 {
		dedupID = ref.ReportID
	}
	dedupScope := fmt.Sprintf("summary_invalidate:%s:%d", h.kind, ref.ProjectID)
	if h.deduper != nil && !h.deduper.AcquireOnce(ctx, dedupScope, dedupID) {
		return nil
	}

	key := service.SummaryCacheKey(ref.ProjectID)
	if err := h.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to invalidate summary cache %s: %w", key, err)
	}

	h.logger.Info("Summary cache invalidated",
		zap.String("kind", h.kind),
		zap.Int("project_id", ref.ProjectID),
		zap.String("key", key),
	)
	return nil
}
