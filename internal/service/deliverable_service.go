package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"planner/internal/event"
	"planner/internal/model"
	"planner/internal/schedule"
	"planner/pkg/metrics"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrEmptyText      = errors.New("raw text is required")
	ErrPastDate       = errors.New("placement on a past date")
	ErrReportRequired = errors.New("completion report is required")
	ErrAlreadyDone    = errors.New("deliverable is already done")
)

// DeliverableStore is the persistence surface the lifecycle controller
// needs. Implemented by repository.DeliverableRepository.
type DeliverableStore interface {
	Insert(ctx context.Context, d *model.Deliverable) (int, error)
	ListByUser(ctx context.Context, userID int) ([]model.Deliverable, error)
	ListByProject(ctx context.Context, projectID int) ([]model.Deliverable, error)
	GetByID(ctx context.Context, userID, id int) (*model.Deliverable, error)
	Update(ctx context.Context, d *model.Deliverable) error
	SetDone(ctx context.Context, id int, done bool) error
}

// ReportStore is implemented by repository.ReportRepository.
type ReportStore interface {
	Insert(ctx context.Context, rep *model.Report) (int, error)
	ListByDeliverable(ctx context.Context, deliverableID int) ([]model.Report, error)
	ListByProject(ctx context.Context, projectID int) ([]model.Report, error)
}

// ProjectStore is implemented by repository.ProjectRepository.
type ProjectStore interface {
	Insert(ctx context.Context, p *model.Project) (int, error)
	ListByUser(ctx context.Context, userID int) ([]model.Project, error)
	GetByID(ctx context.Context, userID, id int) (*model.Project, error)
}

// EventPublisher is the fire-and-forget MQ surface; implemented by
// pkg/mq.Publisher.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// DeliverableService is the lifecycle controller for deliverables:
// Draft -> Pending (persisted, is_done=false) -> Done, with reopen back
// to Pending. Every operation is scoped to an authenticated user id.
type DeliverableService struct {
	deliverables DeliverableStore
	reports      ReportStore
	projects     ProjectStore
	ai           AIResolver
	publisher    EventPublisher
	logger       *zap.Logger

	now func() time.Time
}

func NewDeliverableService(
	deliverables DeliverableStore,
	reports ReportStore,
	projects ProjectStore,
	ai AIResolver,
	publisher EventPublisher,
	logger *zap.Logger,
) *DeliverableService {
	return &DeliverableService{
		deliverables: deliverables,
		reports:      reports,
		projects:     projects,
		ai:           ai,
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
	}
}

type CreateDeliverableInput struct {
	ProjectID int
	Date      time.Time
	RawText   string
	// StructuredText carries an applied AI preview. When empty the raw
	// text is persisted verbatim as the structured rendition.
	StructuredText string
	Title          string
	Tag            string
	ColorOverride  string
}

// Create persists a new pending deliverable from a placement proposal.
// Proposals onto past dates return ErrPastDate; callers drop them
// silently, per product policy.
func (s *DeliverableService) Create(ctx context.Context, userID int, in CreateDeliverableInput) (*model.Deliverable, error) {
	if in.RawText == "" {
		return nil, ErrEmptyText
	}

	if !schedule.AllowPlacement(in.Date, s.now()) {
		metrics.RecordTransition("create", "past_date_dropped")
		return nil, ErrPastDate
	}

	project, err := s.projects.GetByID(ctx, userID, in.ProjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	structured := in.StructuredText
	if structured == "" {
		structured = in.RawText
	}

	d := &model.Deliverable{
		ProjectID:      project.ID,
		Date:           in.Date,
		Title:          in.Title,
		RawText:        in.RawText,
		StructuredText: structured,
		Tag:            in.Tag,
		ColorOverride:  in.ColorOverride,
	}
	if d.ColorOverride == "" {
		d.ColorOverride = project.Color
	}

	if _, err := s.deliverables.Insert(ctx, d); err != nil {
		metrics.RecordTransition("create", "error")
		return nil, err
	}
	metrics.RecordTransition("create", "ok")

	s.publish(event.RoutingKeyDeliverableCreated, event.DeliverableCreated{
		DeliverableID: d.ID,
		ProjectID:     d.ProjectID,
		UserID:        userID,
		Date:          d.Date.Format(model.DateLayout),
		CreatedAt:     s.now(),
	})

	return d, nil
}

// List re-reads the user's full deliverable collection. Callers refresh
// with this after every mutation rather than patching in place.
func (s *DeliverableService) List(ctx context.Context, userID int) ([]model.Deliverable, error) {
	return s.deliverables.ListByUser(ctx, userID)
}

// BoardDay is one date cell of the scheduling board.
type BoardDay struct {
	Date         string              `json:"date"`
	Deliverables []model.Deliverable `json:"deliverables"`
}

// Board buckets the user's deliverables into the window's visible days.
func (s *DeliverableService) Board(ctx context.Context, userID int, window schedule.Window) ([]BoardDay, error) {
	all, err := s.deliverables.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	buckets := schedule.Bucket(all)
	days := window.Days()
	out := make([]BoardDay, len(days))
	for i, day := range days {
		key := day.Format(model.DateLayout)
		out[i] = BoardDay{Date: key, Deliverables: buckets[key]}
	}
	return out, nil
}

type EditDeliverableInput struct {
	RawText       *string
	Notes         *string
	Tag           *string
	ColorOverride *string
	Title         *string
	// StructuredText carries an applied preview for the revised text.
	StructuredText *string
}

// Edit diffs the provided fields against the persisted record and
// writes only when something actually changed. Plain edits never
// re-run AI structuring: a revised raw text without an applied preview
// becomes the structured text verbatim.
func (s *DeliverableService) Edit(ctx context.Context, userID, id int, in EditDeliverableInput) (*model.Deliverable, error) {
	d, err := s.deliverables.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	changed := false
	apply := func(dst *string, src *string) {
		if src != nil && *src != *dst {
			*dst = *src
			changed = true
		}
	}

	rawBefore := d.RawText
	apply(&d.RawText, in.RawText)
	apply(&d.Notes, in.Notes)
	apply(&d.Tag, in.Tag)
	apply(&d.ColorOverride, in.ColorOverride)
	apply(&d.Title, in.Title)

	if d.RawText == "" {
		return nil, ErrEmptyText
	}

	// An empty applied-preview value counts as no preview at all, so
	// structured text can never go empty while raw text is set.
	switch {
	case in.StructuredText != nil && *in.StructuredText != "" && *in.StructuredText != d.StructuredText:
		d.StructuredText = *in.StructuredText
		changed = true
	case d.RawText != rawBefore:
		// Keep the fallback invariant: no preview means verbatim raw.
		d.StructuredText = d.RawText
	}

	if !changed {
		return d, nil
	}

	if err := s.deliverables.Update(ctx, d); err != nil {
		metrics.RecordTransition("edit", "error")
		return nil, err
	}
	metrics.RecordTransition("edit", "ok")
	return d, nil
}

// Complete marks a deliverable done. The completion report is
// mandatory; its text is structured through the AI gateway unless the
// caller already applied a preview. The report insert and the flag
// update run strictly in that order with no transaction: a failure in
// between leaves an orphaned report and a pending deliverable, which
// is surfaced only as a failed completion.
func (s *DeliverableService) Complete(ctx context.Context, userID, id int, reportRaw, reportStructured string) (*model.Report, error) {
	if reportRaw == "" {
		return nil, ErrReportRequired
	}

	d, err := s.deliverables.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if d.IsDone {
		return nil, ErrAlreadyDone
	}

	rep, err := s.writeReport(ctx, userID, d, reportRaw, reportStructured)
	if err != nil {
		metrics.RecordTransition("complete", "error")
		return nil, err
	}

	if err := s.deliverables.SetDone(ctx, d.ID, true); err != nil {
		metrics.RecordTransition("complete", "partial_failure")
		s.logger.Error("Report written but completion flag update failed",
			zap.Int("deliverable_id", d.ID),
			zap.Int("report_id", rep.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to complete deliverable: %w", err)
	}
	metrics.RecordTransition("complete", "ok")

	s.publish(event.RoutingKeyDeliverableCompleted, event.DeliverableCompleted{
		DeliverableID: d.ID,
		ProjectID:     d.ProjectID,
		UserID:        userID,
		ReportID:      rep.ID,
		CompletedAt:   s.now(),
	})

	return rep, nil
}

// Reopen transitions Done back to Pending. Existing reports stay.
func (s *DeliverableService) Reopen(ctx context.Context, userID, id int) error {
	d, err := s.deliverables.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if !d.IsDone {
		return nil
	}
	if err := s.deliverables.SetDone(ctx, d.ID, false); err != nil {
		metrics.RecordTransition("reopen", "error")
		return err
	}
	metrics.RecordTransition("reopen", "ok")
	return nil
}

// Toggle is the compact-view shortcut. Done deliverables reopen;
// pending ones are refused with ErrReportRequired so the mandatory
// completion report cannot be bypassed.
func (s *DeliverableService) Toggle(ctx context.Context, userID, id int) (*model.Deliverable, error) {
	d, err := s.deliverables.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if !d.IsDone {
		return nil, ErrReportRequired
	}

	if err := s.deliverables.SetDone(ctx, d.ID, false); err != nil {
		return nil, err
	}
	d.IsDone = false
	metrics.RecordTransition("reopen", "ok")
	return d, nil
}

// AddReport appends a post-hoc report without changing the completion
// flag.
func (s *DeliverableService) AddReport(ctx context.Context, userID, id int, reportRaw, reportStructured string) (*model.Report, error) {
	if reportRaw == "" {
		return nil, ErrReportRequired
	}

	d, err := s.deliverables.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return s.writeReport(ctx, userID, d, reportRaw, reportStructured)
}

// Reports returns the report history of a deliverable the user owns.
func (s *DeliverableService) Reports(ctx context.Context, userID, id int) ([]model.Report, error) {
	if _, err := s.deliverables.GetByID(ctx, userID, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.reports.ListByDeliverable(ctx, id)
}

// ProjectHistory returns a project's deliverables newest first with
// their reports grouped per deliverable.
type ProjectHistory struct {
	Project      model.Project          `json:"project"`
	Deliverables []model.Deliverable    `json:"deliverables"`
	Reports      map[int][]model.Report `json:"reports"`
}

func (s *DeliverableService) History(ctx context.Context, userID, projectID int) (*ProjectHistory, error) {
	project, err := s.projects.GetByID(ctx, userID, projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	deliverables, err := s.deliverables.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	reports, err := s.reports.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	grouped := make(map[int][]model.Report)
	for _, rep := range reports {
		grouped[rep.DeliverableID] = append(grouped[rep.DeliverableID], rep)
	}

	return &ProjectHistory{
		Project:      *project,
		Deliverables: deliverables,
		Reports:      grouped,
	}, nil
}

// writeReport structures the report text and inserts the immutable
// record. An applied preview wins; otherwise the text goes through the
// gateway, and a gateway failure aborts the operation. The structured
// text never ends up empty while the raw text is set.
func (s *DeliverableService) writeReport(ctx context.Context, userID int, d *model.Deliverable, raw, structured string) (*model.Report, error) {
	if structured == "" {
		client, err := s.ai.ForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		structured, err = client.StructureText(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to structure report: %w", err)
		}
	}
	if structured == "" {
		structured = raw
	}

	rep := &model.Report{
		DeliverableID:  d.ID,
		RawText:        raw,
		StructuredText: structured,
	}
	if _, err := s.reports.Insert(ctx, rep); err != nil {
		return nil, err
	}

	s.publish(event.RoutingKeyReportCreated, event.ReportCreated{
		ReportID:      rep.ID,
		DeliverableID: d.ID,
		ProjectID:     d.ProjectID,
		UserID:        userID,
		CreatedAt:     s.now(),
	})

	return rep, nil
}

// publish sends a domain event; failures are logged and never bubble
// into the user operation.
func (s *DeliverableService) publish(routingKey string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(routingKey, payload); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}
