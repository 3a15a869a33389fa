package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/audit"
)

type auditRepository struct {
	repository
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db core.DB) *auditRepository {
	return &auditRepository{repository{db: db}}
}

func (repo auditRepository) Insert(ctx context.Context, l audit.Log) error {
	_, err := execute(ctx, repo.db, builder.Insert("audit_logs").
		Columns("user_id", "action", "resource", "resource_id", "method", "path", "status_code",
			"ip_address", "user_agent", "details", "created_at").
		Values(l.UserID, l.Action, l.Resource, l.ResourceID, l.Method, l.Path, l.StatusCode,
			l.IPAddress, l.UserAgent, l.Details, l.CreatedAt))
	return errors.Wrap(err, "inserting audit log")
}

func (repo auditRepository) Filter(ctx context.Context, filter audit.QueryFilter) ([]audit.Log, error) {
	b := builder.
		Select("l.id", "l.user_id", "l.action", "l.resource", "l.resource_id", "l.method", "l.path",
			"l.status_code", "l.ip_address", "l.user_agent", "l.details", "l.created_at", "u.username").
		From("audit_logs l").
		LeftJoin("users u ON u.id = l.user_id").
		OrderBy("l.created_at DESC", "l.id DESC").
		Limit(uint64(filter.Limit))
	if filter.UserID > 0 {
		b = b.Where(sq.Eq{"l.user_id": filter.UserID})
	}
	if filter.Action != "" {
		b = b.Where(sq.Like{"l.action": likePattern(filter.Action)})
	}
	if !filter.From.IsZero() {
		b = b.Where(sq.GtOrEq{"l.created_at": filter.From.UTC()})
	}
	if !filter.To.IsZero() {
		b = b.Where(sq.LtOrEq{"l.created_at": filter.To.UTC()})
	}

	logs := make([]audit.Log, 0)
	if err := selectAll(ctx, repo.db, &logs, b); err != nil {
		return nil, errors.Wrap(err, "filtering audit logs")
	}
	return logs, nil
}
