package game

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/vigilsat/vigil/core"
)

const (
	defaultMaxScore         = 100
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

var (
	ErrNotFound        = core.NewNotFoundError("game not found")
	ErrScoreAboveLimit = errors.New("score cannot exceed the game max score")
)

type Game struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	GameType    string    `json:"game_type" db:"game_type"`
	Difficulty  string    `json:"difficulty" db:"difficulty"`
	MaxScore    int       `json:"max_score" db:"max_score"`
	Config      null.JSON `json:"config" db:"config"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Attempt struct {
	ID        int64     `json:"id" db:"id"`
	GameID    int64     `json:"game_id" db:"game_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Score     int       `json:"score" db:"score"`
	MaxScore  int       `json:"max_score" db:"max_score"`
	TimeTaken int       `json:"time_taken" db:"time_taken"` // seconds
	Completed bool      `json:"completed" db:"completed"`
	PlayedAt  time.Time `json:"played_at" db:"played_at"`
	GameTitle string    `json:"game_title,omitempty" db:"game_title"`
}

type LeaderboardEntry struct {
	UserID     int64  `json:"user_id" db:"user_id"`
	Username   string `json:"username" db:"username"`
	Department string `json:"department" db:"department"`
	BestScore  int    `json:"best_score" db:"best_score"`
	Attempts   int    `json:"attempts" db:"attempts"`
}

type NewGame struct {
	Title       string          `json:"title" validate:"required,notblank,max=255"`
	Description string          `json:"description"`
	GameType    string          `json:"game_type" validate:"required,notblank,max=50"`
	Difficulty  string          `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	MaxScore    int             `json:"max_score" validate:"gte=0"`
	Config      json.RawMessage `json:"config"`
}

type UpdateGame struct {
	Title       *string         `json:"title" validate:"omitempty,notblank,max=255"`
	Description *string         `json:"description"`
	GameType    *string         `json:"game_type" validate:"omitempty,notblank,max=50"`
	Difficulty  *string         `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	MaxScore    *int            `json:"max_score" validate:"omitempty,gte=0"`
	Config      json.RawMessage `json:"config"`
	IsActive    *bool           `json:"is_active"`
}

type NewAttempt struct {
	Score     int  `json:"score" validate:"gte=0"`
	TimeTaken int  `json:"time_taken" validate:"gte=0"`
	Completed bool `json:"completed"`
}

type QueryFilter struct {
	GameType   string `query:"game_type"`
	Difficulty string `query:"difficulty"`

	ActiveOnly bool `query:"-"`
}

type (
	Repository interface {
		Filter(ctx context.Context, filter QueryFilter) ([]Game, error)
		GetByID(ctx context.Context, id int64) (Game, error)
		Create(ctx context.Context, g Game) (Game, error)
		Update(ctx context.Context, g Game) (Game, error)
		Delete(ctx context.Context, id int64) error

		CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
		ListAttempts(ctx context.Context, userID int64) ([]Attempt, error)
		// Leaderboard ranks users by their best score on the game.
		Leaderboard(ctx context.Context, gameID int64, limit int) ([]LeaderboardEntry, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) ListActive(ctx context.Context, filter QueryFilter) ([]Game, error) {
	filter.GameType = core.CleanString(filter.GameType, true /* lower */)
	filter.Difficulty = core.CleanString(filter.Difficulty, true /* lower */)
	filter.ActiveOnly = true
	return svc.repo.Filter(ctx, filter)
}

func (svc *Service) Get(ctx context.Context, id int64) (Game, error) {
	return svc.repo.GetByID(ctx, id)
}

func (svc *Service) Create(ctx context.Context, ng NewGame) (Game, error) {
	if err := svc.validate.StructCtx(ctx, ng); err != nil {
		return Game{}, err
	}

	now := time.Now().UTC()
	g := Game{
		Title:       core.CleanString(ng.Title),
		Description: ng.Description,
		GameType:    core.CleanString(ng.GameType, true /* lower */),
		Difficulty:  ng.Difficulty,
		MaxScore:    ng.MaxScore,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if g.Difficulty == "" {
		g.Difficulty = "beginner"
	}
	if g.MaxScore == 0 {
		g.MaxScore = defaultMaxScore
	}
	if len(ng.Config) > 0 {
		g.Config = null.JSONFrom(ng.Config)
	}
	return svc.repo.Create(ctx, g)
}

func (svc *Service) Update(ctx context.Context, id int64, ug UpdateGame) (Game, error) {
	if err := svc.validate.StructCtx(ctx, ug); err != nil {
		return Game{}, err
	}
	g, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		return Game{}, err
	}

	if ug.Title != nil {
		g.Title = core.CleanString(*ug.Title)
	}
	if ug.Description != nil {
		g.Description = *ug.Description
	}
	if ug.GameType != nil {
		g.GameType = core.CleanString(*ug.GameType, true /* lower */)
	}
	if ug.Difficulty != nil {
		g.Difficulty = *ug.Difficulty
	}
	if ug.MaxScore != nil {
		g.MaxScore = *ug.MaxScore
	}
	if len(ug.Config) > 0 {
		g.Config = null.JSONFrom(ug.Config)
	}
	if ug.IsActive != nil {
		g.IsActive = *ug.IsActive
	}
	g.UpdatedAt = time.Now().UTC()
	return svc.repo.Update(ctx, g)
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	return svc.repo.Delete(ctx, id)
}

func (svc *Service) SubmitAttempt(ctx context.Context, gameID, userID int64, na NewAttempt) (Attempt, error) {
	if err := svc.validate.StructCtx(ctx, na); err != nil {
		return Attempt{}, err
	}
	g, err := svc.repo.GetByID(ctx, gameID)
	if err != nil {
		return Attempt{}, err
	}
	if !g.IsActive {
		return Attempt{}, ErrNotFound
	}
	if g.MaxScore > 0 && na.Score > g.MaxScore {
		return Attempt{}, core.NewValidationError(ErrScoreAboveLimit, core.FieldError{Field: "score", Error: ErrScoreAboveLimit.Error()})
	}

	return svc.repo.CreateAttempt(ctx, Attempt{
		GameID:    gameID,
		UserID:    userID,
		Score:     na.Score,
		MaxScore:  g.MaxScore,
		TimeTaken: na.TimeTaken,
		Completed: na.Completed,
		PlayedAt:  time.Now().UTC(),
		GameTitle: g.Title,
	})
}

func (svc *Service) ListAttempts(ctx context.Context, userID int64) ([]Attempt, error) {
	return svc.repo.ListAttempts(ctx, userID)
}

// Leaderboard returns the top players of a game. limit defaults to 10 and is capped at 100.
func (svc *Service) Leaderboard(ctx context.Context, gameID int64, limit int) ([]LeaderboardEntry, error) {
	if _, err := svc.repo.GetByID(ctx, gameID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	} else if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	return svc.repo.Leaderboard(ctx, gameID, limit)
}
