package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/vigilsat/vigil/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, excludeID int64) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if usr.ID == excludeID {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) Create(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, u := range repo.db.users {
		if u.Username == usr.Username {
			return user.User{}, user.ErrUsernameExists
		}
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	usr.ID = repo.db.nextID()
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetByID(_ context.Context, id int64) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) find(match func(user.User) bool) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if match(usr) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetByEmail(_ context.Context, email string) (user.User, error) {
	return repo.find(func(u user.User) bool { return u.Email == email })
}

func (repo *userRepository) GetByUsernameOrEmail(_ context.Context, login string) (user.User, error) {
	return repo.find(func(u user.User) bool { return u.Username == login || u.Email == login })
}

func (repo *userRepository) Filter(_ context.Context, filter user.QueryFilter) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0)
	for _, usr := range repo.db.users {
		if filter.Search != "" && !(containsFold(usr.Username, filter.Search) || containsFold(usr.Email, filter.Search) ||
			containsFold(usr.FirstName, filter.Search) || containsFold(usr.LastName, filter.Search)) {
			continue
		}
		if filter.Role != "" && usr.Role != filter.Role {
			continue
		}
		if filter.Department != "" && usr.Department != filter.Department {
			continue
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		users = append(users, usr)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (repo *userRepository) Update(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.Username = orig.Username
	usr.CreatedAt = orig.CreatedAt
	usr.LastLogin = orig.LastLogin
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.LastLogin = null.TimeFrom(at)
	repo.db.users[id] = usr
	return nil
}

func (repo *userRepository) Delete(_ context.Context, ids ...int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, id := range ids {
		delete(repo.db.users, id)
	}
	return nil
}
