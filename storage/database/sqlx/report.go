package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/report"
)

type reportRepository struct {
	repository
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db core.DB) *reportRepository {
	return &reportRepository{repository{db: db}}
}

const overviewQuery = `
SELECT
    (SELECT COUNT(*) FROM users) AS total_users,
    (SELECT COUNT(*) FROM users WHERE is_active) AS active_users,
    (SELECT COUNT(*) FROM policies WHERE is_active) AS active_policies,
    (SELECT COUNT(*) FROM policies WHERE is_active AND requires_acknowledgment) AS required_policies,
    (SELECT COUNT(*) FROM policy_acknowledgments pa
        JOIN policies p ON p.id = pa.policy_id AND p.is_active AND p.requires_acknowledgment
        JOIN users u ON u.id = pa.user_id AND u.is_active) AS acknowledgments,
    (SELECT COUNT(*) FROM quiz_attempts WHERE completed_at IS NOT NULL) AS quiz_attempts,
    (SELECT COUNT(*) FROM quiz_attempts WHERE completed_at IS NOT NULL AND passed) AS passed_attempts,
    (SELECT COALESCE(ROUND(AVG(score), 2), 0) FROM quiz_attempts WHERE completed_at IS NOT NULL) AS average_score,
    (SELECT COUNT(*) FROM training_progress WHERE status = 'completed') AS completed_modules`

func (repo reportRepository) Overview(ctx context.Context) (report.Overview, error) {
	var ov report.Overview
	if err := repo.db.GetContext(ctx, &ov, overviewQuery); err != nil {
		return report.Overview{}, errors.Wrap(err, "loading overview")
	}
	return ov, nil
}

func (repo reportRepository) DepartmentCompliance(ctx context.Context) ([]report.DepartmentCompliance, error) {
	depts := make([]report.DepartmentCompliance, 0)
	b := builder.
		Select("COALESCE(NULLIF(u.department, ''), 'Unassigned') AS department",
			"COUNT(DISTINCT u.id) AS users",
			"COUNT(pa.id) AS acknowledgments").
		From("users u").
		LeftJoin("policy_acknowledgments pa ON pa.user_id = u.id AND pa.policy_id IN " +
			"(SELECT id FROM policies WHERE is_active AND requires_acknowledgment)").
		Where(sq.Eq{"u.is_active": true}).
		GroupBy("department").
		OrderBy("department ASC")
	if err := selectAll(ctx, repo.db, &depts, b); err != nil {
		return nil, errors.Wrap(err, "loading department compliance")
	}
	return depts, nil
}

func (repo reportRepository) ModuleProgress(ctx context.Context) ([]report.ModuleProgress, error) {
	mods := make([]report.ModuleProgress, 0)
	b := builder.
		Select("m.id AS module_id", "m.title",
			"COUNT(tp.id) AS enrolled",
			"COALESCE(SUM(tp.status = 'completed'), 0) AS completed",
			"COALESCE(ROUND(AVG(tp.progress), 2), 0) AS average_progress").
		From("training_modules m").
		LeftJoin("training_progress tp ON tp.module_id = m.id").
		Where(sq.Eq{"m.is_active": true}).
		GroupBy("m.id", "m.title", "m.position").
		OrderBy("m.position ASC", "m.id ASC")
	if err := selectAll(ctx, repo.db, &mods, b); err != nil {
		return nil, errors.Wrap(err, "loading module progress")
	}
	return mods, nil
}

func (repo reportRepository) QuizPerformance(ctx context.Context) ([]report.QuizPerformance, error) {
	quizzes := make([]report.QuizPerformance, 0)
	b := builder.
		Select("q.id AS quiz_id", "q.title",
			"COUNT(a.id) AS attempts",
			"COALESCE(SUM(a.passed), 0) AS passed",
			"COALESCE(ROUND(AVG(a.score), 2), 0) AS average_score").
		From("quizzes q").
		LeftJoin("quiz_attempts a ON a.quiz_id = q.id AND a.completed_at IS NOT NULL").
		GroupBy("q.id", "q.title").
		OrderBy("attempts DESC", "q.id ASC")
	if err := selectAll(ctx, repo.db, &quizzes, b); err != nil {
		return nil, errors.Wrap(err, "loading quiz performance")
	}
	return quizzes, nil
}

func (repo reportRepository) PolicyAcknowledgments(ctx context.Context) ([]report.PolicyAcknowledgment, error) {
	pols := make([]report.PolicyAcknowledgment, 0)
	b := builder.
		Select("p.id AS policy_id", "p.title", "p.version", "COUNT(u.id) AS acknowledged").
		From("policies p").
		LeftJoin("policy_acknowledgments pa ON pa.policy_id = p.id").
		LeftJoin("users u ON u.id = pa.user_id AND u.is_active").
		Where(sq.Eq{"p.is_active": true}).
		GroupBy("p.id", "p.title", "p.version").
		OrderBy("p.title ASC")
	if err := selectAll(ctx, repo.db, &pols, b); err != nil {
		return nil, errors.Wrap(err, "loading policy acknowledgments")
	}
	return pols, nil
}

const userStatsQuery = `
SELECT
    (SELECT COUNT(*) FROM quiz_attempts WHERE user_id = ? AND completed_at IS NOT NULL) AS quiz_attempts,
    (SELECT COUNT(*) FROM quiz_attempts WHERE user_id = ? AND completed_at IS NOT NULL AND passed) AS quizzes_passed,
    (SELECT COALESCE(ROUND(AVG(score), 2), 0) FROM quiz_attempts WHERE user_id = ? AND completed_at IS NOT NULL) AS average_score,
    (SELECT COUNT(*) FROM game_attempts WHERE user_id = ?) AS games_played,
    (SELECT COALESCE(MAX(score), 0) FROM game_attempts WHERE user_id = ?) AS best_game_score,
    (SELECT COUNT(*) FROM training_progress WHERE user_id = ? AND status = 'completed') AS modules_completed,
    (SELECT COUNT(*) FROM policy_acknowledgments WHERE user_id = ?) AS policies_acknowledged`

func (repo reportRepository) UserStats(ctx context.Context, userID int64) (report.UserStats, error) {
	var stats report.UserStats
	args := []interface{}{userID, userID, userID, userID, userID, userID, userID}
	if err := repo.db.GetContext(ctx, &stats, userStatsQuery, args...); err != nil {
		return report.UserStats{}, errors.Wrap(err, "loading user stats")
	}
	return stats, nil
}
