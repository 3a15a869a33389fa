package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/user"
)

var userColumns = []string{
	"id", "username", "email", "password_hash", "first_name", "last_name", "role", "department",
	"is_active", "mfa_enabled", "mfa_secret", "last_login", "created_at", "updated_at",
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) *userRepository {
	return &userRepository{repository{db: db}}
}

func (repo userRepository) selectUsers() sq.SelectBuilder {
	return builder.Select(userColumns...).From("users")
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, excludeID int64) error {
	var or sq.Or
	if username != "" {
		or = append(or, sq.Eq{"username": username})
	}
	if email != "" {
		or = append(or, sq.Eq{"email": email})
	}
	if len(or) == 0 {
		return nil
	}

	b := builder.Select("username", "email").From("users").Where(or).Limit(1)
	if excludeID > 0 {
		b = b.Where(sq.NotEq{"id": excludeID})
	}

	var found struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	if err := get(ctx, repo.db, &found, b); err != nil {
		return trapNoRowsErr(err, nil)
	}
	if username != "" && found.Username == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo userRepository) Create(ctx context.Context, usr user.User) (user.User, error) {
	id, err := insert(ctx, repo.db, builder.Insert("users").
		Columns("username", "email", "password_hash", "first_name", "last_name", "role", "department",
			"is_active", "mfa_enabled", "mfa_secret", "created_at", "updated_at").
		Values(usr.Username, usr.Email, usr.PasswordHash, usr.FirstName, usr.LastName, usr.Role, usr.Department,
			usr.IsActive, usr.MFAEnabled, usr.MFASecret, usr.CreatedAt, usr.UpdatedAt))
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	usr.ID = id
	return usr, nil
}

func (repo userRepository) getBy(ctx context.Context, pred interface{}) (user.User, error) {
	var usr user.User
	if err := get(ctx, repo.db, &usr, repo.selectUsers().Where(pred).Limit(1)); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return usr, nil
}

func (repo userRepository) GetByID(ctx context.Context, id int64) (user.User, error) {
	return repo.getBy(ctx, sq.Eq{"id": id})
}

func (repo userRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getBy(ctx, sq.Eq{"email": email})
}

func (repo userRepository) GetByUsernameOrEmail(ctx context.Context, login string) (user.User, error) {
	return repo.getBy(ctx, sq.Or{sq.Eq{"username": login}, sq.Eq{"email": login}})
}

func (repo userRepository) Filter(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	b := repo.selectUsers().OrderBy("username ASC")
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		b = b.Where(sq.Or{
			sq.Like{"username": pattern},
			sq.Like{"email": pattern},
			sq.Like{"first_name": pattern},
			sq.Like{"last_name": pattern},
		})
	}
	if filter.Role != "" {
		b = b.Where(sq.Eq{"role": filter.Role})
	}
	if filter.Department != "" {
		b = b.Where(sq.Eq{"department": filter.Department})
	}
	if filter.IsActive != nil {
		b = b.Where(sq.Eq{"is_active": *filter.IsActive})
	}

	users := make([]user.User, 0)
	if err := selectAll(ctx, repo.db, &users, b); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return users, nil
}

func (repo userRepository) Update(ctx context.Context, usr user.User) (user.User, error) {
	res, err := execute(ctx, repo.db, builder.Update("users").
		SetMap(map[string]interface{}{
			"email":         usr.Email,
			"password_hash": usr.PasswordHash,
			"first_name":    usr.FirstName,
			"last_name":     usr.LastName,
			"role":          usr.Role,
			"department":    usr.Department,
			"is_active":     usr.IsActive,
			"mfa_enabled":   usr.MFAEnabled,
			"mfa_secret":    usr.MFASecret,
			"updated_at":    usr.UpdatedAt,
		}).
		Where(sq.Eq{"id": usr.ID}))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err = mustAffect(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo userRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := execute(ctx, repo.db, builder.Update("users").Set("last_login", at).Where(sq.Eq{"id": id}))
	return errors.Wrap(err, "updating last login")
}

func (repo userRepository) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := execute(ctx, repo.db, builder.Delete("users").Where(sq.Eq{"id": ids}))
	return errors.Wrap(err, "deleting users")
}
