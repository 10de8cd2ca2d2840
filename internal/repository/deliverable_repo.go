package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"planner/internal/model"
)

type DeliverableRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewDeliverableRepository(db *pgxpool.Pool, logger *zap.Logger) *DeliverableRepository {
	return &DeliverableRepository{db: db, logger: logger}
}

func (r *DeliverableRepository) Insert(ctx context.Context, d *model.Deliverable) (int, error) {
	r.logger.Debug("Inserting deliverable",
		zap.Int("project_id", d.ProjectID),
		zap.String("date", d.Date.Format(model.DateLayout)),
	)

	query := `
        INSERT INTO deliverables
            (project_id, date, title, raw_text, structured_text, notes, tag, color_override, is_done, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, now(), now())
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		d.ProjectID,
		d.Date,
		d.Title,
		d.RawText,
		d.StructuredText,
		d.Notes,
		d.Tag,
		d.ColorOverride,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)

	if err != nil {
		r.logger.Error("Failed to insert deliverable", zap.Error(err))
		return 0, err
	}

	d.DateStr = d.Date.Format(model.DateLayout)
	r.logger.Info("Deliverable inserted",
		zap.Int("id", d.ID),
		zap.Int("project_id", d.ProjectID),
	)
	return d.ID, nil
}

const deliverableColumns = `
        d.id, d.project_id, d.date, d.title, d.raw_text, d.structured_text,
        d.notes, d.tag, d.color_override, d.is_done, d.created_at, d.updated_at`

func scanDeliverable(row interface{ Scan(...any) error }, d *model.Deliverable) error {
	err := row.Scan(
		&d.ID, &d.ProjectID, &d.Date, &d.Title, &d.RawText, &d.StructuredText,
		&d.Notes, &d.Tag, &d.ColorOverride, &d.IsDone, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return err
	}
	d.DateStr = d.Date.Format(model.DateLayout)
	return nil
}

// ListByUser returns every deliverable of the user's projects with the
// owning project attached, ordered by date.
func (r *DeliverableRepository) ListByUser(ctx context.Context, userID int) ([]model.Deliverable, error) {
	query := `
        SELECT ` + deliverableColumns + `,
               p.id, p.user_id, p.name, p.description, p.color, p.created_at, p.updated_at
        FROM deliverables d
        JOIN projects p ON p.id = d.project_id
        WHERE p.user_id = $1
        ORDER BY d.date ASC, d.id ASC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list deliverables", zap.Int("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []model.Deliverable
	for rows.Next() {
		var d model.Deliverable
		var p model.Project
		err := rows.Scan(
			&d.ID, &d.ProjectID, &d.Date, &d.Title, &d.RawText, &d.StructuredText,
			&d.Notes, &d.Tag, &d.ColorOverride, &d.IsDone, &d.CreatedAt, &d.UpdatedAt,
			&p.ID, &p.UserID, &p.Name, &p.Description, &p.Color, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		d.DateStr = d.Date.Format(model.DateLayout)
		d.Project = &p
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListByProject returns a project's deliverables, most recent date
// first, for history and summary views.
func (r *DeliverableRepository) ListByProject(ctx context.Context, projectID int) ([]model.Deliverable, error) {
	query := `
        SELECT ` + deliverableColumns + `
        FROM deliverables d
        WHERE d.project_id = $1
        ORDER BY d.date DESC, d.id DESC
    `
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to list project deliverables", zap.Int("project_id", projectID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []model.Deliverable
	for rows.Next() {
		var d model.Deliverable
		if err := scanDeliverable(rows, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetByID returns a deliverable reachable by the user (through project
// ownership); pgx.ErrNoRows otherwise.
func (r *DeliverableRepository) GetByID(ctx context.Context, userID, id int) (*model.Deliverable, error) {
	query := `
        SELECT ` + deliverableColumns + `
        FROM deliverables d
        JOIN projects p ON p.id = d.project_id
        WHERE d.id = $1 AND p.user_id = $2
    `
	var d model.Deliverable
	if err := scanDeliverable(r.db.QueryRow(ctx, query, id, userID), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Update persists the editable fields of a deliverable.
func (r *DeliverableRepository) Update(ctx context.Context, d *model.Deliverable) error {
	query := `
        UPDATE deliverables
        SET raw_text = $2, structured_text = $3, notes = $4, tag = $5,
            color_override = $6, title = $7, updated_at = now()
        WHERE id = $1
    `
	_, err := r.db.Exec(ctx, query,
		d.ID, d.RawText, d.StructuredText, d.Notes, d.Tag, d.ColorOverride, d.Title,
	)
	if err != nil {
		r.logger.Error("Failed to update deliverable", zap.Int("id", d.ID), zap.Error(err))
		return err
	}
	return nil
}

// SetDone flips the completion flag.
func (r *DeliverableRepository) SetDone(ctx context.Context, id int, done bool) error {
	query := `
        UPDATE deliverables
        SET is_done = $2, updated_at = now()
        WHERE id = $1
    `
	if _, err := r.db.Exec(ctx, query, id, done); err != nil {
		r.logger.Error("Failed to set deliverable done flag",
			zap.Int("id", id),
			zap.Bool("done", done),
			zap.Error(err),
		)
		return err
	}
	return nil
}
