package service

import (
	"context"

	"go.uber.org/zap"

	"planner/internal/ai"
)

// AIClient is the slice of the LLM gateway the domain services use.
type AIClient interface {
	StructureText(ctx context.Context, raw string) (string, error)
	SummarizeProject(ctx context.Context, projectName string, tasks []ai.TaskContext) (string, error)
	TranscribeAudio(ctx context.Context, audio []byte, filename, language string) (string, error)
}

// AIResolver hands out an AI client for a specific user, honoring the
// user's own API key when one is stored on their profile.
type AIResolver interface {
	ForUser(ctx context.Context, userID int) (AIClient, error)
}

type aiResolver struct {
	base     *ai.Client
	profiles *ProfileService
	logger   *zap.Logger
}

func NewAIResolver(base *ai.Client, profiles *ProfileService, logger *zap.Logger) AIResolver {
	return &aiResolver{base: base, profiles: profiles, logger: logger}
}

func (r *aiResolver) ForUser(ctx context.Context, userID int) (AIClient, error) {
	key, err := r.profiles.KeyForUser(ctx, userID)
	if err != nil {
		// A broken profile must not block AI features; fall back to the
		// server-wide key.
		r.logger.Warn("Failed to resolve profile API key, using default",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		return r.base, nil
	}
	return r.base.Keyed(key), nil
}
