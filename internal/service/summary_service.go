package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"planner/internal/ai"
	"planner/internal/model"
	"planner/pkg/metrics"
)

const maxSummaryContext = 10

// SummaryCache caches rendered project summaries. A miss returns
// ("", nil).
type SummaryCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SummaryCacheKey is the cache key for one project's summary. The MQ
// invalidation handler derives the same key from event payloads.
func SummaryCacheKey(projectID int) string {
	return fmt.Sprintf("summary:project:%d", projectID)
}

type redisSummaryCache struct {
	client *redis.Client
}

func NewRedisSummaryCache(client *redis.Client) SummaryCache {
	return &redisSummaryCache{client: client}
}

func (c *redisSummaryCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (c *redisSummaryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisSummaryCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// SummaryService produces AI catch-up summaries for a project from its
// most recent deliverables and their reports.
type SummaryService struct {
	projects     ProjectStore
	deliverables DeliverableStore
	reports      ReportStore
	ai           AIResolver
	cache        SummaryCache
	cacheTTL     time.Duration
	logger       *zap.Logger
}

func NewSummaryService(
	projects ProjectStore,
	deliverables DeliverableStore,
	reports ReportStore,
	aiResolver AIResolver,
	cache SummaryCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *SummaryService {
	return &SummaryService{
		projects:     projects,
		deliverables: deliverables,
		reports:      reports,
		ai:           aiResolver,
		cache:        cache,
		cacheTTL:     cacheTTL,
		logger:       logger,
	}
}

// Summarize returns the project's catch-up summary, serving from cache
// when a fresh one exists. Cache failures degrade to a direct AI call.
func (s *SummaryService) Summarize(ctx context.Context, userID, projectID int) (string, error) {
	project, err := s.projects.GetByID(ctx, userID, projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}

	key := SummaryCacheKey(projectID)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Summary cache read failed", zap.String("key", key), zap.Error(err))
		} else if cached != "" {
			metrics.RecordSummaryCache("hit")
			return cached, nil
		}
	}
	metrics.RecordSummaryCache("miss")

	tasks, err := s.buildContext(ctx, projectID)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "", fmt.Errorf("project has no deliverables to summarize")
	}

	client, err := s.ai.ForUser(ctx, userID)
	if err != nil {
		return "", err
	}
	summary, err := client.SummarizeProject(ctx, project.Name, tasks)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.cacheTTL); err != nil {
			s.logger.Warn("Summary cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return summary, nil
}

// buildContext assembles the most recent deliverables (newest first,
// capped) with their reports concatenated per deliverable.
func (s *SummaryService) buildContext(ctx context.Context, projectID int) ([]ai.TaskContext, error) {
	deliverables, err := s.deliverables.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(deliverables) > maxSummaryContext {
		deliverables = deliverables[:maxSummaryContext]
	}

	reports, err := s.reports.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	grouped := make(map[int][]string)
	for _, rep := range reports {
		grouped[rep.DeliverableID] = append(grouped[rep.DeliverableID], rep.StructuredText)
	}

	tasks := make([]ai.TaskContext, 0, len(deliverables))
	for _, d := range deliverables {
		tasks = append(tasks, ai.TaskContext{
			Title:        taskTitle(d),
			Deliverables: d.StructuredText,
			Reports:      strings.Join(grouped[d.ID], "\n"),
		})
	}
	return tasks, nil
}

// taskTitle falls back to the date and first structured line when the
// deliverable carries no explicit title.
func taskTitle(d model.Deliverable) string {
	if d.Title != "" {
		return d.Title
	}
	line := d.StructuredText
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(strings.TrimLeft(line, "-* "))
	if line == "" {
		return d.Date.Format(model.DateLayout)
	}
	return fmt.Sprintf("%s (%s)", line, d.Date.Format(model.DateLayout))
}
