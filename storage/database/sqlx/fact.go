package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/fact"
)

var factColumns = []string{"id", "title", "content", "category", "source", "is_active", "created_at"}

type factRepository struct {
	repository
}

var _ fact.Repository = (*factRepository)(nil) // interface compliance check

func NewFactRepository(db core.DB) *factRepository {
	return &factRepository{repository{db: db}}
}

func (repo factRepository) selectActive(category string) sq.SelectBuilder {
	b := builder.Select(factColumns...).From("security_facts").Where(sq.Eq{"is_active": true})
	if category != "" {
		b = b.Where(sq.Eq{"category": category})
	}
	return b
}

func (repo factRepository) Filter(ctx context.Context, category string) ([]fact.Fact, error) {
	facts := make([]fact.Fact, 0)
	if err := selectAll(ctx, repo.db, &facts, repo.selectActive(category).OrderBy("created_at DESC", "id DESC")); err != nil {
		return nil, errors.Wrap(err, "filtering facts")
	}
	return facts, nil
}

func (repo factRepository) Random(ctx context.Context, category string) (fact.Fact, error) {
	var f fact.Fact
	if err := get(ctx, repo.db, &f, repo.selectActive(category).OrderBy("RAND()").Limit(1)); err != nil {
		return fact.Fact{}, trapNoRowsErr(err, fact.ErrNotFound)
	}
	return f, nil
}

func (repo factRepository) GetByID(ctx context.Context, id int64) (fact.Fact, error) {
	var f fact.Fact
	if err := get(ctx, repo.db, &f, builder.Select(factColumns...).From("security_facts").Where(sq.Eq{"id": id})); err != nil {
		return fact.Fact{}, trapNoRowsErr(err, fact.ErrNotFound)
	}
	return f, nil
}

func (repo factRepository) Create(ctx context.Context, f fact.Fact) (fact.Fact, error) {
	id, err := insert(ctx, repo.db, builder.Insert("security_facts").
		Columns(factColumns[1:]...).
		Values(f.Title, f.Content, f.Category, f.Source, f.IsActive, f.CreatedAt))
	if err != nil {
		return fact.Fact{}, errors.Wrap(err, "inserting fact")
	}
	f.ID = id
	return f, nil
}

func (repo factRepository) Delete(ctx context.Context, id int64) error {
	res, err := execute(ctx, repo.db, builder.Delete("security_facts").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting fact")
	}
	return mustAffect(res, fact.ErrNotFound)
}
