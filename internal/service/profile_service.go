package service

import (
	"context"
	"strings"

	"planner/internal/repository"
	"planner/pkg/crypto"
)

// ProfileService manages the per-user LLM API key, encrypted at rest.
type ProfileService struct {
	profiles  *repository.ProfileRepository
	encryptor *crypto.KeyEncryptor
}

func NewProfileService(profiles *repository.ProfileRepository, encryptor *crypto.KeyEncryptor) *ProfileService {
	return &ProfileService{profiles: profiles, encryptor: encryptor}
}

// MaskedKey returns a display form of the stored key: empty when none,
// otherwise the last four characters behind a fixed prefix.
func (s *ProfileService) MaskedKey(ctx context.Context, userID int) (string, error) {
	key, err := s.KeyForUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", nil
	}
	if len(key) <= 4 {
		return "****", nil
	}
	return "****" + key[len(key)-4:], nil
}

// SaveKey stores the key encrypted; an empty key clears the override.
func (s *ProfileService) SaveKey(ctx context.Context, userID int, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	enc, err := s.encryptor.Encrypt(apiKey)
	if err != nil {
		return err
	}
	return s.profiles.Upsert(ctx, userID, enc)
}

// KeyForUser returns the decrypted key, or "" when the user has not
// supplied one.
func (s *ProfileService) KeyForUser(ctx context.Context, userID int) (string, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if p.APIKeyEnc == "" {
		return "", nil
	}
	return s.encryptor.Decrypt(p.APIKeyEnc)
}
