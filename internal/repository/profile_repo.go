package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"planner/internal/model"
)

type ProfileRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProfileRepository(db *pgxpool.Pool, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{db: db, logger: logger}
}

// Get returns the user's profile, or an empty profile when none has
// been saved yet.
func (r *ProfileRepository) Get(ctx context.Context, userID int) (*model.Profile, error) {
	query := `
        SELECT user_id, llm_api_key_enc, created_at, updated_at
        FROM profiles
        WHERE user_id = $1
    `
	var p model.Profile
	err := r.db.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.APIKeyEnc, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.Profile{UserID: userID}, nil
	}
	if err != nil {
		r.logger.Error("Failed to fetch profile", zap.Int("user_id", userID), zap.Error(err))
		return nil, err
	}
	return &p, nil
}

// Upsert stores the encrypted LLM API key for the user.
func (r *ProfileRepository) Upsert(ctx context.Context, userID int, apiKeyEnc string) error {
	query := `
        INSERT INTO profiles (user_id, llm_api_key_enc, created_at, updated_at)
        VALUES ($1, $2, now(), now())
        ON CONFLICT (user_id)
        DO UPDATE SET llm_api_key_enc = EXCLUDED.llm_api_key_enc, updated_at = now()
    `
	if _, err := r.db.Exec(ctx, query, userID, apiKeyEnc); err != nil {
		r.logger.Error("Failed to upsert profile", zap.Int("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}
