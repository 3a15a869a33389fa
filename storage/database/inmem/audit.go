package inmemdb

import (
	"context"

	"github.com/volatiletech/null/v8"

	"github.com/vigilsat/vigil/core/audit"
)

type auditRepository struct {
	db *DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func (repo *auditRepository) Insert(_ context.Context, l audit.Log) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.db.InsertAuditErr != nil {
		return repo.db.InsertAuditErr
	}
	l.ID = repo.db.nextID()
	repo.db.auditLogs = append(repo.db.auditLogs, l)
	return nil
}

func (repo *auditRepository) Filter(_ context.Context, filter audit.QueryFilter) ([]audit.Log, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	logs := make([]audit.Log, 0)
	for i := len(repo.db.auditLogs) - 1; i >= 0; i-- {
		l := repo.db.auditLogs[i]
		if filter.UserID > 0 && l.UserID.Int64 != filter.UserID {
			continue
		}
		if filter.Action != "" && !containsFold(l.Action, filter.Action) {
			continue
		}
		if !filter.From.IsZero() && l.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && l.CreatedAt.After(filter.To) {
			continue
		}
		if usr, ok := repo.db.users[l.UserID.Int64]; ok && l.UserID.Valid {
			l.Username = null.StringFrom(usr.Username)
		}
		logs = append(logs, l)
		if filter.Limit > 0 && len(logs) == filter.Limit {
			break
		}
	}
	return logs, nil
}

// Logs returns a copy of every stored log, oldest first.
func (repo *auditRepository) Logs() []audit.Log {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return append([]audit.Log(nil), repo.db.auditLogs...)
}
