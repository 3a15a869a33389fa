package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/training"
)

var (
	moduleColumns = []string{
		"m.id", "m.title", "m.description", "m.content", "m.category", "m.duration",
		"m.difficulty", "m.is_active", "m.position", "m.created_at", "m.updated_at",
	}
	progressColumns = []string{
		"tp.id", "tp.module_id", "tp.user_id", "tp.status", "tp.progress", "tp.started_at", "tp.completed_at",
	}
)

type trainingRepository struct {
	repository
}

var _ training.Repository = (*trainingRepository)(nil) // interface compliance check

func NewTrainingRepository(db core.DB) *trainingRepository {
	return &trainingRepository{repository{db: db}}
}

// selectModules joins the progress of userID, if any.
func (repo trainingRepository) selectModules(userID int64) sq.SelectBuilder {
	if userID == 0 {
		return builder.Select(moduleColumns...).
			Columns("'"+training.StatusNotStarted+"' AS status", "0 AS progress", "NULL AS completed_at").
			From("training_modules m")
	}
	return builder.Select(moduleColumns...).
		Columns("COALESCE(tp.status, '"+training.StatusNotStarted+"') AS status",
			"COALESCE(tp.progress, 0) AS progress", "tp.completed_at").
		From("training_modules m").
		LeftJoin("training_progress tp ON tp.module_id = m.id AND tp.user_id = ?", userID)
}

func (repo trainingRepository) Filter(ctx context.Context, filter training.QueryFilter) ([]training.Module, error) {
	b := repo.selectModules(filter.UserID).OrderBy("m.position ASC", "m.id ASC")
	if filter.ActiveOnly {
		b = b.Where(sq.Eq{"m.is_active": true})
	}
	if filter.Category != "" {
		b = b.Where(sq.Eq{"m.category": filter.Category})
	}
	if filter.Difficulty != "" {
		b = b.Where(sq.Eq{"m.difficulty": filter.Difficulty})
	}

	modules := make([]training.Module, 0)
	if err := selectAll(ctx, repo.db, &modules, b); err != nil {
		return nil, errors.Wrap(err, "filtering training modules")
	}
	return modules, nil
}

func (repo trainingRepository) GetByID(ctx context.Context, id, userID int64) (training.Module, error) {
	var m training.Module
	if err := get(ctx, repo.db, &m, repo.selectModules(userID).Where(sq.Eq{"m.id": id})); err != nil {
		return training.Module{}, trapNoRowsErr(err, training.ErrNotFound)
	}
	return m, nil
}

func (repo trainingRepository) Create(ctx context.Context, m training.Module) (training.Module, error) {
	id, err := insert(ctx, repo.db, builder.Insert("training_modules").
		Columns("title", "description", "content", "category", "duration", "difficulty",
			"is_active", "position", "created_at", "updated_at").
		Values(m.Title, m.Description, m.Content, m.Category, m.Duration, m.Difficulty,
			m.IsActive, m.Position, m.CreatedAt, m.UpdatedAt))
	if err != nil {
		return training.Module{}, errors.Wrap(err, "inserting training module")
	}
	m.ID = id
	return m, nil
}

func (repo trainingRepository) Update(ctx context.Context, m training.Module) (training.Module, error) {
	res, err := execute(ctx, repo.db, builder.Update("training_modules").
		SetMap(map[string]interface{}{
			"title":       m.Title,
			"description": m.Description,
			"content":     m.Content,
			"category":    m.Category,
			"duration":    m.Duration,
			"difficulty":  m.Difficulty,
			"is_active":   m.IsActive,
			"position":    m.Position,
			"updated_at":  m.UpdatedAt,
		}).
		Where(sq.Eq{"id": m.ID}))
	if err != nil {
		return training.Module{}, errors.Wrap(err, "updating training module")
	}
	if err = mustAffect(res, training.ErrNotFound); err != nil {
		return training.Module{}, err
	}
	return m, nil
}

func (repo trainingRepository) Delete(ctx context.Context, id int64) error {
	res, err := execute(ctx, repo.db, builder.Delete("training_modules").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting training module")
	}
	return mustAffect(res, training.ErrNotFound)
}

func (repo trainingRepository) UpsertProgress(ctx context.Context, p training.Progress) (training.Progress, error) {
	err := core.RunInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		var existing training.Progress
		err := get(ctx, tx, &existing, builder.Select(progressColumns...).
			From("training_progress tp").
			Where(sq.Eq{"tp.module_id": p.ModuleID, "tp.user_id": p.UserID}).
			Suffix("FOR UPDATE"))
		if err = trapNoRowsErr(err, nil); err != nil {
			return errors.Wrap(err, "locking training progress")
		}

		if existing.ID == 0 {
			p.ID, err = insert(ctx, tx, builder.Insert("training_progress").
				Columns("module_id", "user_id", "status", "progress", "started_at", "completed_at").
				Values(p.ModuleID, p.UserID, p.Status, p.Progress, p.StartedAt, p.CompletedAt))
			return errors.Wrap(err, "inserting training progress")
		}

		p.ID = existing.ID
		if existing.StartedAt.Valid {
			p.StartedAt = existing.StartedAt
		}
		if p.Status == training.StatusCompleted && existing.CompletedAt.Valid {
			p.CompletedAt = existing.CompletedAt
		}
		_, err = execute(ctx, tx, builder.Update("training_progress").
			SetMap(map[string]interface{}{
				"status":       p.Status,
				"progress":     p.Progress,
				"started_at":   p.StartedAt,
				"completed_at": p.CompletedAt,
			}).
			Where(sq.Eq{"id": p.ID}))
		return errors.Wrap(err, "updating training progress")
	})
	if err != nil {
		return training.Progress{}, err
	}
	return p, nil
}

func (repo trainingRepository) ListProgress(ctx context.Context, userID int64) ([]training.Progress, error) {
	progress := make([]training.Progress, 0)
	b := builder.Select(progressColumns...).
		Column("m.title AS module_title").
		From("training_progress tp").
		Join("training_modules m ON m.id = tp.module_id").
		Where(sq.Eq{"tp.user_id": userID}).
		OrderBy("m.position ASC", "m.id ASC")
	if err := selectAll(ctx, repo.db, &progress, b); err != nil {
		return nil, errors.Wrap(err, "listing training progress")
	}
	return progress, nil
}
