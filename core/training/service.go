package training

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/vigilsat/vigil/core"
)

var ErrNotFound = core.NewNotFoundError("training module not found")

type (
	Repository interface {
		Filter(ctx context.Context, filter QueryFilter) ([]Module, error)
		// GetByID fills the Module progress fields for userID when it is not 0.
		GetByID(ctx context.Context, id, userID int64) (Module, error)
		Create(ctx context.Context, m Module) (Module, error)
		Update(ctx context.Context, m Module) (Module, error)
		Delete(ctx context.Context, id int64) error

		// UpsertProgress creates or updates the (module, user) progress row in one transaction.
		// An existing started_at is kept.
		UpsertProgress(ctx context.Context, p Progress) (Progress, error)
		ListProgress(ctx context.Context, userID int64) ([]Progress, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) ListActive(ctx context.Context, userID int64, filter QueryFilter) ([]Module, error) {
	filter.Category = core.CleanString(filter.Category, true /* lower */)
	filter.Difficulty = core.CleanString(filter.Difficulty, true /* lower */)
	filter.ActiveOnly = true
	filter.UserID = userID
	return svc.repo.Filter(ctx, filter)
}

func (svc *Service) Get(ctx context.Context, id, userID int64) (Module, error) {
	return svc.repo.GetByID(ctx, id, userID)
}

func (svc *Service) Create(ctx context.Context, nm NewModule) (Module, error) {
	if err := svc.validate.StructCtx(ctx, nm); err != nil {
		return Module{}, err
	}

	now := time.Now().UTC()
	m := Module{
		Title:       core.CleanString(nm.Title),
		Description: nm.Description,
		Content:     nm.Content,
		Category:    core.CleanString(nm.Category, true /* lower */),
		Duration:    nm.Duration,
		Difficulty:  nm.Difficulty,
		IsActive:    true,
		Position:    nm.Position,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      StatusNotStarted,
	}
	if m.Category == "" {
		m.Category = "general"
	}
	if m.Difficulty == "" {
		m.Difficulty = "beginner"
	}
	return svc.repo.Create(ctx, m)
}

func (svc *Service) Update(ctx context.Context, id int64, um UpdateModule) (Module, error) {
	if err := svc.validate.StructCtx(ctx, um); err != nil {
		return Module{}, err
	}
	m, err := svc.repo.GetByID(ctx, id, 0)
	if err != nil {
		return Module{}, err
	}

	if um.Title != nil {
		m.Title = core.CleanString(*um.Title)
	}
	if um.Description != nil {
		m.Description = *um.Description
	}
	if um.Content != nil {
		m.Content = *um.Content
	}
	if um.Category != nil {
		m.Category = core.CleanString(*um.Category, true /* lower */)
	}
	if um.Duration != nil {
		m.Duration = *um.Duration
	}
	if um.Difficulty != nil {
		m.Difficulty = *um.Difficulty
	}
	if um.Position != nil {
		m.Position = *um.Position
	}
	if um.IsActive != nil {
		m.IsActive = *um.IsActive
	}
	m.UpdatedAt = time.Now().UTC()
	return svc.repo.Update(ctx, m)
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	return svc.repo.Delete(ctx, id)
}

// UpdateProgress records the user's completion percentage for a module and derives its status.
func (svc *Service) UpdateProgress(ctx context.Context, moduleID, userID int64, up UpdateProgress) (Progress, error) {
	if err := svc.validate.StructCtx(ctx, up); err != nil {
		return Progress{}, err
	}
	m, err := svc.repo.GetByID(ctx, moduleID, 0)
	if err != nil {
		return Progress{}, err
	}
	if !m.IsActive {
		return Progress{}, ErrNotFound
	}

	now := time.Now().UTC()
	p := Progress{
		ModuleID:    moduleID,
		UserID:      userID,
		Progress:    *up.Progress,
		Status:      DeriveStatus(*up.Progress),
		ModuleTitle: m.Title,
	}
	if p.Status != StatusNotStarted {
		p.StartedAt = null.TimeFrom(now)
	}
	if p.Status == StatusCompleted {
		p.CompletedAt = null.TimeFrom(now)
	}
	return svc.repo.UpsertProgress(ctx, p)
}

func (svc *Service) ListProgress(ctx context.Context, userID int64) ([]Progress, error) {
	return svc.repo.ListProgress(ctx, userID)
}
