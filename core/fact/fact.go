package fact

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vigilsat/vigil/core"
)

var ErrNotFound = core.NewNotFoundError("security fact not found")

// Fact is a short security tip shown on the dashboard.
type Fact struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	Category  string    `json:"category" db:"category"`
	Source    string    `json:"source" db:"source"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type NewFact struct {
	Title    string `json:"title" validate:"required,notblank,max=255"`
	Content  string `json:"content" validate:"required,notblank"`
	Category string `json:"category" validate:"max=100"`
	Source   string `json:"source" validate:"max=255"`
}

type (
	Repository interface {
		// Filter lists active facts, optionally restricted to a category.
		Filter(ctx context.Context, category string) ([]Fact, error)
		// Random picks one active fact, optionally restricted to a category.
		Random(ctx context.Context, category string) (Fact, error)
		GetByID(ctx context.Context, id int64) (Fact, error)
		Create(ctx context.Context, f Fact) (Fact, error)
		Delete(ctx context.Context, id int64) error
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) List(ctx context.Context, category string) ([]Fact, error) {
	return svc.repo.Filter(ctx, core.CleanString(category, true /* lower */))
}

func (svc *Service) Random(ctx context.Context, category string) (Fact, error) {
	return svc.repo.Random(ctx, core.CleanString(category, true /* lower */))
}

func (svc *Service) Get(ctx context.Context, id int64) (Fact, error) {
	return svc.repo.GetByID(ctx, id)
}

func (svc *Service) Create(ctx context.Context, nf NewFact) (Fact, error) {
	if err := svc.validate.StructCtx(ctx, nf); err != nil {
		return Fact{}, err
	}
	f := Fact{
		Title:     core.CleanString(nf.Title),
		Content:   core.CleanString(nf.Content),
		Category:  core.CleanString(nf.Category, true /* lower */),
		Source:    core.CleanString(nf.Source),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if f.Category == "" {
		f.Category = "general"
	}
	return svc.repo.Create(ctx, f)
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	return svc.repo.Delete(ctx, id)
}
