package inmemdb

import (
	"context"
	"sort"

	"github.com/volatiletech/null/v8"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/policy"
)

type policyRepository struct {
	db *DB
}

var _ policy.Repository = (*policyRepository)(nil) // interface compliance check

// withAck must be called with the lock held.
func (repo *policyRepository) withAck(p policy.Policy, userID int64) policy.Policy {
	p.Acknowledged, p.AcknowledgedAt = false, null.Time{}
	if userID == 0 {
		return p
	}
	for _, ack := range repo.db.acks {
		if ack.PolicyID == p.ID && ack.UserID == userID {
			p.Acknowledged = true
			p.AcknowledgedAt = null.TimeFrom(ack.AcknowledgedAt)
			break
		}
	}
	return p
}

func (repo *policyRepository) Filter(_ context.Context, filter policy.QueryFilter) ([]policy.Policy, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	policies := make([]policy.Policy, 0)
	for _, p := range repo.db.policies {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Search != "" && !(containsFold(p.Title, filter.Search) || containsFold(p.Content, filter.Search)) {
			continue
		}
		policies = append(policies, repo.withAck(p, filter.UserID))
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].ID > policies[j].ID })
	return policies, nil
}

func (repo *policyRepository) GetByID(_ context.Context, id, userID int64) (policy.Policy, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	p, ok := repo.db.policies[id]
	if !ok {
		return policy.Policy{}, policy.ErrNotFound
	}
	return repo.withAck(p, userID), nil
}

func (repo *policyRepository) Create(_ context.Context, p policy.Policy) (policy.Policy, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	p.ID = repo.db.nextID()
	repo.db.policies[p.ID] = p
	return p, nil
}

func (repo *policyRepository) Update(_ context.Context, p policy.Policy) (policy.Policy, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.policies[p.ID]; !ok {
		return policy.Policy{}, policy.ErrNotFound
	}
	repo.db.policies[p.ID] = p
	return p, nil
}

func (repo *policyRepository) Delete(_ context.Context, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.policies[id]; !ok {
		return policy.ErrNotFound
	}
	delete(repo.db.policies, id)
	acks := repo.db.acks[:0]
	for _, ack := range repo.db.acks {
		if ack.PolicyID != id {
			acks = append(acks, ack)
		}
	}
	repo.db.acks = acks
	return nil
}

func (repo *policyRepository) Acknowledge(_ context.Context, ack policy.Acknowledgment) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, a := range repo.db.acks {
		if a.PolicyID == ack.PolicyID && a.UserID == ack.UserID {
			return false, nil
		}
	}
	ack.ID = repo.db.nextID()
	repo.db.acks = append(repo.db.acks, ack)
	return true, nil
}

func (repo *policyRepository) GetAcknowledgment(_ context.Context, policyID, userID int64) (policy.Acknowledgment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, ack := range repo.db.acks {
		if ack.PolicyID == policyID && ack.UserID == userID {
			return repo.decorate(ack), nil
		}
	}
	return policy.Acknowledgment{}, core.NewNotFoundError("acknowledgment not found")
}

func (repo *policyRepository) decorate(ack policy.Acknowledgment) policy.Acknowledgment {
	if p, ok := repo.db.policies[ack.PolicyID]; ok {
		ack.PolicyTitle = p.Title
		ack.PolicyVersion = p.Version
	}
	return ack
}

func (repo *policyRepository) ListAcknowledgments(_ context.Context, userID int64) ([]policy.Acknowledgment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	acks := make([]policy.Acknowledgment, 0)
	for i := len(repo.db.acks) - 1; i >= 0; i-- {
		if ack := repo.db.acks[i]; ack.UserID == userID {
			acks = append(acks, repo.decorate(ack))
		}
	}
	return acks, nil
}
