package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"planner/internal/model"
)

const defaultProjectColor = "#2d6cdf"

// ProjectService manages the project catalog from which deliverables
// are placed onto the calendar.
type ProjectService struct {
	projects ProjectStore
}

func NewProjectService(projects ProjectStore) *ProjectService {
	return &ProjectService{projects: projects}
}

func (s *ProjectService) Create(ctx context.Context, userID int, name, description, color string) (*model.Project, error) {
	if name == "" {
		return nil, errors.New("project name is required")
	}
	if color == "" {
		color = defaultProjectColor
	}

	p := &model.Project{
		UserID:      userID,
		Name:        name,
		Description: description,
		Color:       color,
	}
	if _, err := s.projects.Insert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProjectService) List(ctx context.Context, userID int) ([]model.Project, error) {
	return s.projects.ListByUser(ctx, userID)
}

func (s *ProjectService) Get(ctx context.Context, userID, id int) (*model.Project, error) {
	p, err := s.projects.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}
