package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/policy"
)

var policyColumns = []string{
	"p.id", "p.title", "p.content", "p.category", "p.version", "p.is_active",
	"p.requires_acknowledgment", "p.created_by", "p.created_at", "p.updated_at",
}

type policyRepository struct {
	repository
}

var _ policy.Repository = (*policyRepository)(nil) // interface compliance check

func NewPolicyRepository(db core.DB) *policyRepository {
	return &policyRepository{repository{db: db}}
}

// selectPolicies joins the acknowledgment of userID, if any.
func (repo policyRepository) selectPolicies(userID int64) sq.SelectBuilder {
	if userID == 0 {
		return builder.Select(policyColumns...).
			Columns("FALSE AS acknowledged", "NULL AS acknowledged_at").
			From("policies p")
	}
	return builder.Select(policyColumns...).
		Columns("pa.id IS NOT NULL AS acknowledged", "pa.acknowledged_at").
		From("policies p").
		LeftJoin("policy_acknowledgments pa ON pa.policy_id = p.id AND pa.user_id = ?", userID)
}

func (repo policyRepository) Filter(ctx context.Context, filter policy.QueryFilter) ([]policy.Policy, error) {
	b := repo.selectPolicies(filter.UserID).OrderBy("p.created_at DESC", "p.id DESC")
	if filter.ActiveOnly {
		b = b.Where(sq.Eq{"p.is_active": true})
	}
	if filter.Category != "" {
		b = b.Where(sq.Eq{"p.category": filter.Category})
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		b = b.Where(sq.Or{sq.Like{"p.title": pattern}, sq.Like{"p.content": pattern}})
	}

	policies := make([]policy.Policy, 0)
	if err := selectAll(ctx, repo.db, &policies, b); err != nil {
		return nil, errors.Wrap(err, "filtering policies")
	}
	return policies, nil
}

func (repo policyRepository) GetByID(ctx context.Context, id, userID int64) (policy.Policy, error) {
	var p policy.Policy
	if err := get(ctx, repo.db, &p, repo.selectPolicies(userID).Where(sq.Eq{"p.id": id})); err != nil {
		return policy.Policy{}, trapNoRowsErr(err, policy.ErrNotFound)
	}
	return p, nil
}

func (repo policyRepository) Create(ctx context.Context, p policy.Policy) (policy.Policy, error) {
	id, err := insert(ctx, repo.db, builder.Insert("policies").
		Columns("title", "content", "category", "version", "is_active", "requires_acknowledgment",
			"created_by", "created_at", "updated_at").
		Values(p.Title, p.Content, p.Category, p.Version, p.IsActive, p.RequiresAcknowledgment,
			p.CreatedBy, p.CreatedAt, p.UpdatedAt))
	if err != nil {
		return policy.Policy{}, errors.Wrap(err, "inserting policy")
	}
	p.ID = id
	return p, nil
}

func (repo policyRepository) Update(ctx context.Context, p policy.Policy) (policy.Policy, error) {
	res, err := execute(ctx, repo.db, builder.Update("policies").
		SetMap(map[string]interface{}{
			"title":                   p.Title,
			"content":                 p.Content,
			"category":                p.Category,
			"version":                 p.Version,
			"is_active":               p.IsActive,
			"requires_acknowledgment": p.RequiresAcknowledgment,
			"updated_at":              p.UpdatedAt,
		}).
		Where(sq.Eq{"id": p.ID}))
	if err != nil {
		return policy.Policy{}, errors.Wrap(err, "updating policy")
	}
	if err = mustAffect(res, policy.ErrNotFound); err != nil {
		return policy.Policy{}, err
	}
	return p, nil
}

func (repo policyRepository) Delete(ctx context.Context, id int64) error {
	res, err := execute(ctx, repo.db, builder.Delete("policies").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting policy")
	}
	return mustAffect(res, policy.ErrNotFound)
}

func (repo policyRepository) Acknowledge(ctx context.Context, ack policy.Acknowledgment) (bool, error) {
	res, err := execute(ctx, repo.db, builder.Insert("policy_acknowledgments").
		Options("IGNORE").
		Columns("policy_id", "user_id", "acknowledged_at", "ip_address").
		Values(ack.PolicyID, ack.UserID, ack.AcknowledgedAt, ack.IPAddress))
	if err != nil {
		return false, errors.Wrap(err, "inserting acknowledgment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (repo policyRepository) selectAcknowledgments() sq.SelectBuilder {
	return builder.
		Select("pa.id", "pa.policy_id", "pa.user_id", "pa.acknowledged_at", "pa.ip_address",
			"p.title AS policy_title", "p.version AS policy_version").
		From("policy_acknowledgments pa").
		Join("policies p ON p.id = pa.policy_id")
}

func (repo policyRepository) GetAcknowledgment(ctx context.Context, policyID, userID int64) (policy.Acknowledgment, error) {
	var ack policy.Acknowledgment
	b := repo.selectAcknowledgments().Where(sq.Eq{"pa.policy_id": policyID, "pa.user_id": userID})
	if err := get(ctx, repo.db, &ack, b); err != nil {
		return policy.Acknowledgment{}, trapNoRowsErr(err, core.NewNotFoundError("acknowledgment not found"))
	}
	return ack, nil
}

func (repo policyRepository) ListAcknowledgments(ctx context.Context, userID int64) ([]policy.Acknowledgment, error) {
	acks := make([]policy.Acknowledgment, 0)
	b := repo.selectAcknowledgments().Where(sq.Eq{"pa.user_id": userID}).OrderBy("pa.acknowledged_at DESC")
	if err := selectAll(ctx, repo.db, &acks, b); err != nil {
		return nil, errors.Wrap(err, "listing acknowledgments")
	}
	return acks, nil
}
