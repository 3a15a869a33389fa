package training

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Progress statuses
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// DeriveStatus maps a completion percentage to a status: 0 is not started, 100 completed.
func DeriveStatus(progress int) string {
	switch {
	case progress <= 0:
		return StatusNotStarted
	case progress >= 100:
		return StatusCompleted
	default:
		return StatusInProgress
	}
}

type Module struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Content     string    `json:"content,omitempty" db:"content"`
	Category    string    `json:"category" db:"category"`
	Duration    int       `json:"duration" db:"duration"` // minutes
	Difficulty  string    `json:"difficulty" db:"difficulty"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	Position    int       `json:"position" db:"position"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	// progress of the requesting user
	Status      string    `json:"status" db:"status"`
	Progress    int       `json:"progress" db:"progress"`
	CompletedAt null.Time `json:"completed_at" db:"completed_at"`
}

type Progress struct {
	ID          int64     `json:"id" db:"id"`
	ModuleID    int64     `json:"module_id" db:"module_id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	Status      string    `json:"status" db:"status"`
	Progress    int       `json:"progress" db:"progress"`
	StartedAt   null.Time `json:"started_at" db:"started_at"`
	CompletedAt null.Time `json:"completed_at" db:"completed_at"`
	ModuleTitle string    `json:"module_title,omitempty" db:"module_title"`
}

type NewModule struct {
	Title       string `json:"title" validate:"required,notblank,max=255"`
	Description string `json:"description"`
	Content     string `json:"content" validate:"required"`
	Category    string `json:"category" validate:"max=100"`
	Duration    int    `json:"duration" validate:"gte=0"`
	Difficulty  string `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Position    int    `json:"position" validate:"gte=0"`
}

type UpdateModule struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=255"`
	Description *string `json:"description"`
	Content     *string `json:"content"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
	Duration    *int    `json:"duration" validate:"omitempty,gte=0"`
	Difficulty  *string `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Position    *int    `json:"position" validate:"omitempty,gte=0"`
	IsActive    *bool   `json:"is_active"`
}

type UpdateProgress struct {
	Progress *int `json:"progress" validate:"required,gte=0,lte=100"`
}

type QueryFilter struct {
	Category   string `query:"category"`
	Difficulty string `query:"difficulty"`

	ActiveOnly bool  `query:"-"`
	UserID     int64 `query:"-"` // fills the Module progress fields when set
}
