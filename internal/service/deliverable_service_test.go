package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"planner/internal/ai"
	"planner/internal/model"
)

type fakeDeliverableStore struct {
	items   map[int]*model.Deliverable
	nextID  int
	inserts int
}

func newFakeDeliverableStore() *fakeDeliverableStore {
	return &fakeDeliverableStore{items: make(map[int]*model.Deliverable), nextID: 1}
}

func (f *fakeDeliverableStore) Insert(_ context.Context, d *model.Deliverable) (int, error) {
	d.ID = f.nextID
	f.nextID++
	f.inserts++
	cp := *d
	f.items[d.ID] = &cp
	return d.ID, nil
}

func (f *fakeDeliverableStore) ListByUser(_ context.Context, _ int) ([]model.Deliverable, error) {
	var out []model.Deliverable
	for _, d := range f.items {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeDeliverableStore) ListByProject(_ context.Context, projectID int) ([]model.Deliverable, error) {
	var out []model.Deliverable
	for _, d := range f.items {
		if d.ProjectID == projectID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDeliverableStore) GetByID(_ context.Context, _ int, id int) (*model.Deliverable, error) {
	d, ok := f.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDeliverableStore) Update(_ context.Context, d *model.Deliverable) error {
	if _, ok := f.items[d.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *d
	f.items[d.ID] = &cp
	return nil
}

func (f *fakeDeliverableStore) SetDone(_ context.Context, id int, done bool) error {
	d, ok := f.items[id]
	if !ok {
		return pgx.ErrNoRows
	}
	d.IsDone = done
	return nil
}

type fakeReportStore struct {
	reports []model.Report
	nextID  int
	failing bool
}

func (f *fakeReportStore) Insert(_ context.Context, rep *model.Report) (int, error) {
	if f.failing {
		return 0, errors.New("insert failed")
	}
	f.nextID++
	rep.ID = f.nextID
	rep.CreatedAt = time.Now()
	f.reports = append(f.reports, *rep)
	return rep.ID, nil
}

func (f *fakeReportStore) ListByDeliverable(_ context.Context, deliverableID int) ([]model.Report, error) {
	var out []model.Report
	for _, rep := range f.reports {
		if rep.DeliverableID == deliverableID {
			out = append(out, rep)
		}
	}
	return out, nil
}

func (f *fakeReportStore) ListByProject(_ context.Context, _ int) ([]model.Report, error) {
	return f.reports, nil
}

type fakeProjectStore struct {
	projects map[int]*model.Project
}

func (f *fakeProjectStore) Insert(_ context.Context, p *model.Project) (int, error) {
	f.projects[p.ID] = p
	return p.ID, nil
}

func (f *fakeProjectStore) ListByUser(_ context.Context, _ int) ([]model.Project, error) {
	var out []model.Project
	for _, p := range f.projects {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProjectStore) GetByID(_ context.Context, _ int, id int) (*model.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

type fakeAIClient struct {
	structured string
	err        error
	calls      int
}

func (f *fakeAIClient) StructureText(_ context.Context, raw string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.structured != "" {
		return f.structured, nil
	}
	return raw, nil
}

func (f *fakeAIClient) SummarizeProject(_ context.Context, _ string, _ []ai.TaskContext) (string, error) {
	return "", nil
}

func (f *fakeAIClient) TranscribeAudio(_ context.Context, _ []byte, _, _ string) (string, error) {
	return "", nil
}

type fakeResolver struct {
	client AIClient
}

func (f *fakeResolver) ForUser(_ context.Context, _ int) (AIClient, error) {
	return f.client, nil
}

type fakePublisher struct {
	events []string
}

func (f *fakePublisher) Publish(routingKey string, _ any) error {
	f.events = append(f.events, routingKey)
	return nil
}

func fixedClock() time.Time {
	return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T) (*DeliverableService, *fakeDeliverableStore, *fakeReportStore, *fakeAIClient, *fakePublisher) {
	t.Helper()
	deliverables := newFakeDeliverableStore()
	reports := &fakeReportStore{}
	projects := &fakeProjectStore{projects: map[int]*model.Project{
		1: {ID: 1, UserID: 7, Name: "Thesis", Color: "#4caf50"},
	}}
	aiClient := &fakeAIClient{}
	publisher := &fakePublisher{}

	svc := NewDeliverableService(
		deliverables, reports, projects,
		&fakeResolver{client: aiClient}, publisher,
		zap.NewNop(),
	)
	svc.now = fixedClock
	return svc, deliverables, reports, aiClient, publisher
}

func TestCreateRejectsPastDate(t *testing.T) {
	svc, store, _, _, publisher := newTestService(t)

	_, err := svc.Create(context.Background(), 7, CreateDeliverableInput{
		ProjectID: 1,
		Date:      time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
		RawText:   "write chapter 2",
	})
	if !errors.Is(err, ErrPastDate) {
		t.Fatalf("expected ErrPastDate, got %v", err)
	}
	if store.inserts != 0 {
		t.Fatalf("expected no insert, got %d", store.inserts)
	}
	if len(publisher.events) != 0 {
		t.Fatalf("expected no events, got %v", publisher.events)
	}
}

func TestCreateAllowsToday(t *testing.T) {
	svc, _, _, _, publisher := newTestService(t)

	d, err := svc.Create(context.Background(), 7, CreateDeliverableInput{
		ProjectID: 1,
		Date:      time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		RawText:   "write chapter 2",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.IsDone {
		t.Fatal("new deliverable must be pending")
	}
	if d.StructuredText != "write chapter 2" {
		t.Fatalf("structured text should fall back to raw, got %q", d.StructuredText)
	}
	if d.ColorOverride != "#4caf50" {
		t.Fatalf("expected inherited project color, got %q", d.ColorOverride)
	}
	if len(publisher.events) != 1 || publisher.events[0] != "deliverable.created" {
		t.Fatalf("expected deliverable.created event, got %v", publisher.events)
	}
}

func TestCreateUsesAppliedPreview(t *testing.T) {
	svc, _, _, aiClient, _ := newTestService(t)

	d, err := svc.Create(context.Background(), 7, CreateDeliverableInput{
		ProjectID:      1,
		Date:           time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		RawText:        "write chapter 2 and fix figures",
		StructuredText: "- Write chapter 2\n- Fix figures",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.StructuredText != "- Write chapter 2\n- Fix figures" {
		t.Fatalf("expected applied preview, got %q", d.StructuredText)
	}
	if aiClient.calls != 0 {
		t.Fatalf("save must not call the AI gateway, got %d calls", aiClient.calls)
	}
}

func TestCreateRequiresText(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), 7, CreateDeliverableInput{
		ProjectID: 1,
		Date:      time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestEditRawWithoutPreviewResetsStructured(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	d, err := svc.Create(context.Background(), 7, CreateDeliverableInput{
		ProjectID:      1,
		Date:           time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		RawText:        "old text",
		StructuredText: "- Old bullet",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	raw := "new text"
	updated, err := svc.Edit(context.Background(), 7, d.ID, EditDeliverableInput{RawText: &raw})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if updated.StructuredText != "new text" {
		t.Fatalf("revised raw without preview must become structured verbatim, got %q", updated.StructuredText)
	}
}

func TestEditEmptyPreviewKeepsStructuredNonEmpty(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	d, err := svc.Create(context.Background(), 7, CreateDeliverableInput{
		ProjectID: 1,
		Date:      time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		RawText:   "fix bug",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	empty := ""
	updated, err := svc.Edit(context.Background(), 7, d.ID, EditDeliverableInput{StructuredText: &empty})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if updated.StructuredText != "fix bug" {
		t.Fatalf("empty preview value must not empty the structured text, got %q", updated.StructuredText)
	}

	// Same with a raw-text change in the same request.
	raw := "fix the other bug"
	updated, err = svc.Edit(context.Background(), 7, d.ID, EditDeliverableInput{RawText: &raw, StructuredText: &empty})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if updated.StructuredText != "fix the other bug" {
		t.Fatalf("structured text should fall back to the revised raw text, got %q", updated.StructuredText)
	}
}

func TestEditNoChangeSkipsWrite(t *testing.T) {
	svc, store, _, _, _ := newTestService(t)

	d, err := svc.Create(context.Background(), 7, CreateDeliverableInput{
		ProjectID: 1,
		Date:      time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		RawText:   "same text",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	before := *store.items[d.ID]
	raw := "same text"
	if _, err := svc.Edit(context.Background(), 7, d.ID, EditDeliverableInput{RawText: &raw}); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	after := *store.items[d.ID]
	if before != after {
		t.Fatal("no-op edit must not change the stored record")
	}
}

func TestCompleteWritesReportThenFlag(t *testing.T) {
	svc, store, reports, aiClient, publisher := newTestService(t)
	aiClient.structured = "- Finished the draft"

	d, err := svc.Create(context.Background(), 7, CreateDeliverableInput{
		ProjectID: 1,
		Date:      time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		RawText:   "write draft",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rep, err := svc.Complete(context.Background(), 7, d.ID, "finished the draft today", "")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if rep.RawText != "finished the draft today" {
		t.Fatalf("report raw text mismatch: %q", rep.RawText)
	}
	if rep.StructuredText != "- Finished the draft" {
		t.Fatalf("report should be AI structured, got %q", rep.StructuredText)
	}
	if aiClient.calls != 1 {
		t.Fatalf("expected one AI call, got %d", aiClient.calls)
	}
	if !store.items[d.ID].IsDone {
		t.Fatal("deliverable should be done after completion")
	}
	if len(reports.reports) != 1 {
		t.Fatalf("expected one stored report, got %d", len(reports.reports))
	}

	want := []string{"deliverable.created", "report.created", "deliverable.completed"}
	if len(publisher.events) != len(want) {
		t.Fatalf("events: got %v, want %v", publisher.events, want)
	}
	for i, key := range want {
		if publisher.events[i] != key {
			t.Fatalf("event %d: got %q, want %q", i, publisher.events[i], key)
		}
	}
}

func TestCompleteWithAppliedPreviewSkipsAI(t *testing.T) {
	svc, _, _, aiClient, _ := newTestService(t)

	d, err := svc.Create(context.Background(), 7, CreateDeliverableInput{
		ProjectID: 1,
		Date:      time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		RawText:   "write draft",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rep, err := svc.Complete(context.Background(), 7, d.ID, "done", "- Done")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if rep.StructuredText != "- Done" {
		t.Fatalf("expected applied preview, got %q", rep.StructuredText)
	}
	if aiClient.calls != 0 {
		t.Fatalf("applied preview must skip the gateway, got %d calls", aiClient.calls)
	}
}

func TestCompleteAbortsWhenAIFails(t *testing.T) {
	svc, store, reports, aiClient, _ := newTestService(t)
	aiClient.err = errors.New("gateway down")

	d, err := svc.Create(context.Background(), 7, CreateDeliverableInput{
		ProjectID: 1,
		Date:      time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		RawText:   "write draft",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Complete(context.Background(), 7, d.ID, "done", ""); err == nil {
		t.Fatal("expected completion to fail when structuring fails")
	}
	if store.items[d.ID].IsDone {
		t.Fatal("deliverable must stay pending when completion fails")
	}
	if len(reports.reports) != 0 {
		t.Fatal("no report may be stored when structuring fails")
	}
}

func TestCompleteRequiresReport(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	d, err := svc.Create(context.Background(), 7, CreateDeliverableInput{
		ProjectID: 1,
		Date:      time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		RawText:   "write draft",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Complete(context.Background(), 7, d.ID, "", ""); !errors.Is(err, ErrReportRequired) {
		t.Fatalf("expected ErrReportRequired, got %v", err)
	}
}

func TestCompleteTwiceRefused(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	d, err := svc.Create(context.Background(), 7, CreateDeliverableInput{
		ProjectID: 1,
		Date:      time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		RawText:   "write draft",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Complete(context.Background(), 7, d.ID, "done", "- Done"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := svc.Complete(context.Background(), 7, d.ID, "again", "- Again"); !errors.Is(err, ErrAlreadyDone) {
		t.Fatalf("expected ErrAlreadyDone, got %v", err)
	}
}

func TestToggleRefusesPendingToDone(t *testing.T) {
	svc, store, _, _, _ := newTestService(t)

	d, err := svc.Create(context.Background(), 7, CreateDeliverableInput{
		ProjectID: 1,
		Date:      time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		RawText:   "write draft",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Toggle(context.Background(), 7, d.ID); !errors.Is(err, ErrReportRequired) {
		t.Fatalf("expected ErrReportRequired, got %v", err)
	}
	if store.items[d.ID].IsDone {
		t.Fatal("toggle must not flip a pending deliverable")
	}
}

func TestToggleReopensDone(t *testing.T) {
	svc, store, _, _, _ := newTestService(t)

	d, err := svc.Create(context.Background(), 7, CreateDeliverableInput{
		ProjectID: 1,
		Date:      time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		RawText:   "write draft",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Complete(context.Background(), 7, d.ID, "done", "- Done"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	toggled, err := svc.Toggle(context.Background(), 7, d.ID)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if toggled.IsDone {
		t.Fatal("toggle on a done deliverable should reopen it")
	}
	if store.items[d.ID].IsDone {
		t.Fatal("store should show pending after reopen")
	}
}

func TestReopenKeepsReports(t *testing.T) {
	svc, _, reports, _, _ := newTestService(t)

	d, err := svc.Create(context.Background(), 7, CreateDeliverableInput{
		ProjectID: 1,
		Date:      time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		RawText:   "write draft",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Complete(context.Background(), 7, d.ID, "done", "- Done"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := svc.Reopen(context.Background(), 7, d.ID); err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if len(reports.reports) != 1 {
		t.Fatalf("reopen must keep the report history, got %d reports", len(reports.reports))
	}

	got, err := svc.Reports(context.Background(), 7, d.ID)
	if err != nil {
		t.Fatalf("Reports: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the report to survive, got %d", len(got))
	}
}

func TestAddReportDoesNotChangeFlag(t *testing.T) {
	svc, store, reports, _, _ := newTestService(t)

	d, err := svc.Create(context.Background(), 7, CreateDeliverableInput{
		ProjectID: 1,
		Date:      time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		RawText:   "write draft",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.AddReport(context.Background(), 7, d.ID, "progress so far", "- Progress"); err != nil {
		t.Fatalf("AddReport: %v", err)
	}
	if store.items[d.ID].IsDone {
		t.Fatal("AddReport must not complete the deliverable")
	}
	if len(reports.reports) != 1 {
		t.Fatalf("expected one report, got %d", len(reports.reports))
	}
}

func TestOperationsOnMissingDeliverable(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	if _, err := svc.Complete(context.Background(), 7, 99, "done", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Complete: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Toggle(context.Background(), 7, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Toggle: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Edit(context.Background(), 7, 99, EditDeliverableInput{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Edit: expected ErrNotFound, got %v", err)
	}
}
