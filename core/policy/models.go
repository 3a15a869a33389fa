package policy

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/vigilsat/vigil/core"
)

type Policy struct {
	ID                     int64      `json:"id" db:"id"`
	Title                  string     `json:"title" db:"title"`
	Content                string     `json:"content" db:"content"`
	Category               string     `json:"category" db:"category"`
	Version                string     `json:"version" db:"version"`
	IsActive               bool       `json:"is_active" db:"is_active"`
	RequiresAcknowledgment bool       `json:"requires_acknowledgment" db:"requires_acknowledgment"`
	CreatedBy              null.Int64 `json:"created_by" db:"created_by"`
	CreatedAt              time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at" db:"updated_at"`

	// state for the requesting user
	Acknowledged   bool      `json:"acknowledged" db:"acknowledged"`
	AcknowledgedAt null.Time `json:"acknowledged_at" db:"acknowledged_at"`
}

type Acknowledgment struct {
	ID             int64     `json:"id" db:"id"`
	PolicyID       int64     `json:"policy_id" db:"policy_id"`
	UserID         int64     `json:"user_id" db:"user_id"`
	AcknowledgedAt time.Time `json:"acknowledged_at" db:"acknowledged_at"`
	IPAddress      string    `json:"ip_address" db:"ip_address"`
	PolicyTitle    string    `json:"policy_title,omitempty" db:"policy_title"`
	PolicyVersion  string    `json:"policy_version,omitempty" db:"policy_version"`
}

type NewPolicy struct {
	Title                  string `json:"title" validate:"required,notblank,max=255"`
	Content                string `json:"content" validate:"required,notblank"`
	Category               string `json:"category" validate:"max=100"`
	Version                string `json:"version" validate:"max=20"`
	RequiresAcknowledgment *bool  `json:"requires_acknowledgment"`
}

type UpdatePolicy struct {
	Title                  *string `json:"title" validate:"omitempty,notblank,max=255"`
	Content                *string `json:"content" validate:"omitempty,notblank"`
	Category               *string `json:"category" validate:"omitempty,max=100"`
	Version                *string `json:"version" validate:"omitempty,max=20"`
	IsActive               *bool   `json:"is_active"`
	RequiresAcknowledgment *bool   `json:"requires_acknowledgment"`
}

func (up UpdatePolicy) apply(p *Policy) {
	if up.Title != nil {
		p.Title = core.CleanString(*up.Title)
	}
	if up.Content != nil {
		p.Content = *up.Content
	}
	if up.Category != nil {
		p.Category = core.CleanString(*up.Category, true /* lower */)
	}
	if up.Version != nil {
		p.Version = core.CleanString(*up.Version)
	}
	if up.IsActive != nil {
		p.IsActive = *up.IsActive
	}
	if up.RequiresAcknowledgment != nil {
		p.RequiresAcknowledgment = *up.RequiresAcknowledgment
	}
}

type QueryFilter struct {
	Category string `query:"category"`
	Search   string `query:"search"`

	ActiveOnly bool  `query:"-"`
	UserID     int64 `query:"-"` // fills Policy.Acknowledged when set
}

func (qf *QueryFilter) Clean() {
	qf.Category = core.CleanString(qf.Category, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}
