package policy

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/vigilsat/vigil/core"
)

const (
	defaultCategory = "general"
	defaultVersion  = "1.0"
)

var ErrNotFound = core.NewNotFoundError("policy not found")

type (
	Repository interface {
		Filter(ctx context.Context, filter QueryFilter) ([]Policy, error)
		// GetByID fills Policy.Acknowledged for userID when it is not 0.
		GetByID(ctx context.Context, id, userID int64) (Policy, error)
		Create(ctx context.Context, p Policy) (Policy, error)
		Update(ctx context.Context, p Policy) (Policy, error)
		Delete(ctx context.Context, id int64) error
		// Acknowledge inserts ack unless the user already acknowledged the policy, in which case created is false.
		Acknowledge(ctx context.Context, ack Acknowledgment) (created bool, err error)
		GetAcknowledgment(ctx context.Context, policyID, userID int64) (Acknowledgment, error)
		ListAcknowledgments(ctx context.Context, userID int64) ([]Acknowledgment, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

// ListActive returns the active policies, flagged with the acknowledgment state of userID.
func (svc *Service) ListActive(ctx context.Context, userID int64, filter QueryFilter) ([]Policy, error) {
	filter.Clean()
	filter.ActiveOnly = true
	filter.UserID = userID
	return svc.repo.Filter(ctx, filter)
}

func (svc *Service) Get(ctx context.Context, id, userID int64) (Policy, error) {
	return svc.repo.GetByID(ctx, id, userID)
}

func (svc *Service) Create(ctx context.Context, createdBy int64, np NewPolicy) (Policy, error) {
	if err := svc.validate.StructCtx(ctx, np); err != nil {
		return Policy{}, err
	}

	now := time.Now().UTC()
	p := Policy{
		Title:                  core.CleanString(np.Title),
		Content:                np.Content,
		Category:               core.CleanString(np.Category, true /* lower */),
		Version:                core.CleanString(np.Version),
		IsActive:               true,
		RequiresAcknowledgment: true,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if createdBy > 0 {
		p.CreatedBy = null.Int64From(createdBy)
	}
	if p.Category == "" {
		p.Category = defaultCategory
	}
	if p.Version == "" {
		p.Version = defaultVersion
	}
	if np.RequiresAcknowledgment != nil {
		p.RequiresAcknowledgment = *np.RequiresAcknowledgment
	}
	return svc.repo.Create(ctx, p)
}

func (svc *Service) Update(ctx context.Context, id int64, up UpdatePolicy) (Policy, error) {
	if err := svc.validate.StructCtx(ctx, up); err != nil {
		return Policy{}, err
	}
	p, err := svc.repo.GetByID(ctx, id, 0)
	if err != nil {
		return Policy{}, err
	}
	up.apply(&p)
	p.UpdatedAt = time.Now().UTC()
	return svc.repo.Update(ctx, p)
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	return svc.repo.Delete(ctx, id)
}

// Acknowledge records that userID read the policy. Acknowledging twice is not an error:
// the existing acknowledgment is returned with already set.
func (svc *Service) Acknowledge(ctx context.Context, policyID, userID int64, ip string) (ack Acknowledgment, already bool, err error) {
	p, err := svc.repo.GetByID(ctx, policyID, 0)
	if err != nil {
		return Acknowledgment{}, false, err
	}
	if !p.IsActive {
		return Acknowledgment{}, false, ErrNotFound
	}

	created, err := svc.repo.Acknowledge(ctx, Acknowledgment{
		PolicyID:       policyID,
		UserID:         userID,
		AcknowledgedAt: time.Now().UTC(),
		IPAddress:      ip,
	})
	if err != nil {
		return Acknowledgment{}, false, err
	}
	ack, err = svc.repo.GetAcknowledgment(ctx, policyID, userID)
	if err != nil {
		return Acknowledgment{}, false, err
	}
	ack.PolicyTitle = p.Title
	ack.PolicyVersion = p.Version
	return ack, !created, nil
}

func (svc *Service) ListAcknowledgments(ctx context.Context, userID int64) ([]Acknowledgment, error) {
	return svc.repo.ListAcknowledgments(ctx, userID)
}
