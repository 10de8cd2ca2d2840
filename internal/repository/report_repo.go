package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"planner/internal/model"
)

// ReportRepository writes and reads the append-only report history.
// Reports are immutable: there is no update or delete.
type ReportRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewReportRepository(db *pgxpool.Pool, logger *zap.Logger) *ReportRepository {
	return &ReportRepository{db: db, logger: logger}
}

func (r *ReportRepository) Insert(ctx context.Context, rep *model.Report) (int, error) {
	query := `
        INSERT INTO reports (deliverable_id, raw_text, structured_text, created_at)
        VALUES ($1, $2, $3, now())
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query,
		rep.DeliverableID,
		rep.RawText,
		rep.StructuredText,
	).Scan(&rep.ID, &rep.CreatedAt)

	if err != nil {
		r.logger.Error("Failed to insert report",
			zap.Int("deliverable_id", rep.DeliverableID),
			zap.Error(err),
		)
		return 0, err
	}

	r.logger.Info("Report inserted",
		zap.Int("id", rep.ID),
		zap.Int("deliverable_id", rep.DeliverableID),
	)
	return rep.ID, nil
}

// ListByDeliverable returns a deliverable's reports, newest first.
func (r *ReportRepository) ListByDeliverable(ctx context.Context, deliverableID int) ([]model.Report, error) {
	query := `
        SELECT id, deliverable_id, raw_text, structured_text, created_at
        FROM reports
        WHERE deliverable_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query, deliverableID)
	if err != nil {
		r.logger.Error("Failed to list reports", zap.Int("deliverable_id", deliverableID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []model.Report
	for rows.Next() {
		var rep model.Report
		if err := rows.Scan(&rep.ID, &rep.DeliverableID, &rep.RawText, &rep.StructuredText, &rep.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// ListByProject returns all reports under a project's deliverables,
// newest first, grouped client-side by deliverable.
func (r *ReportRepository) ListByProject(ctx context.Context, projectID int) ([]model.Report, error) {
	query := `
        SELECT r.id, r.deliverable_id, r.raw_text, r.structured_text, r.created_at
        FROM reports r
        JOIN deliverables d ON d.id = r.deliverable_id
        WHERE d.project_id = $1
        ORDER BY r.created_at DESC
    `
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to list project reports", zap.Int("project_id", projectID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []model.Report
	for rows.Next() {
		var rep model.Report
		if err := rows.Scan(&rep.ID, &rep.DeliverableID, &rep.RawText, &rep.StructuredText, &rep.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}
