package inmemdb

import (
	"context"
	"math"
	"sort"

	"github.com/vigilsat/vigil/core/report"
	"github.com/vigilsat/vigil/core/training"
)

type reportRepository struct {
	db *DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// requiredPolicies must be called with the lock held.
func (repo *reportRepository) requiredPolicies() map[int64]bool {
	required := make(map[int64]bool)
	for _, p := range repo.db.policies {
		if p.IsActive && p.RequiresAcknowledgment {
			required[p.ID] = true
		}
	}
	return required
}

func (repo *reportRepository) Overview(_ context.Context) (report.Overview, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var ov report.Overview
	ov.TotalUsers = len(repo.db.users)
	for _, u := range repo.db.users {
		if u.IsActive {
			ov.ActiveUsers++
		}
	}
	for _, p := range repo.db.policies {
		if p.IsActive {
			ov.ActivePolicies++
		}
	}
	required := repo.requiredPolicies()
	ov.RequiredPolicies = len(required)
	for _, ack := range repo.db.acks {
		if usr, ok := repo.db.users[ack.UserID]; ok && usr.IsActive && required[ack.PolicyID] {
			ov.Acknowledgments++
		}
	}

	var total int
	for _, a := range repo.db.quizAttempts {
		if !a.CompletedAt.Valid {
			continue
		}
		ov.QuizAttempts++
		total += a.Score
		if a.Passed {
			ov.PassedAttempts++
		}
	}
	if ov.QuizAttempts > 0 {
		ov.AverageScore = round2(float64(total) / float64(ov.QuizAttempts))
	}
	for _, p := range repo.db.progress {
		if p.Status == training.StatusCompleted {
			ov.CompletedModules++
		}
	}
	return ov, nil
}

func (repo *reportRepository) DepartmentCompliance(_ context.Context) ([]report.DepartmentCompliance, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	required := repo.requiredPolicies()
	byDept := make(map[string]*report.DepartmentCompliance)
	deptOf := make(map[int64]string)
	for _, u := range repo.db.users {
		if !u.IsActive {
			continue
		}
		dept := u.Department
		if dept == "" {
			dept = "Unassigned"
		}
		deptOf[u.ID] = dept
		d, ok := byDept[dept]
		if !ok {
			d = &report.DepartmentCompliance{Department: dept}
			byDept[dept] = d
		}
		d.Users++
	}
	for _, ack := range repo.db.acks {
		if dept, ok := deptOf[ack.UserID]; ok && required[ack.PolicyID] {
			byDept[dept].Acknowledgments++
		}
	}

	depts := make([]report.DepartmentCompliance, 0, len(byDept))
	for _, d := range byDept {
		depts = append(depts, *d)
	}
	sort.Slice(depts, func(i, j int) bool { return depts[i].Department < depts[j].Department })
	return depts, nil
}

func (repo *reportRepository) ModuleProgress(_ context.Context) ([]report.ModuleProgress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	mods := make([]report.ModuleProgress, 0)
	for _, m := range repo.db.modules {
		if !m.IsActive {
			continue
		}
		mp := report.ModuleProgress{ModuleID: m.ID, Title: m.Title}
		var total int
		for _, p := range repo.db.progress {
			if p.ModuleID != m.ID {
				continue
			}
			mp.Enrolled++
			total += p.Progress
			if p.Status == training.StatusCompleted {
				mp.Completed++
			}
		}
		if mp.Enrolled > 0 {
			mp.AverageProgress = round2(float64(total) / float64(mp.Enrolled))
		}
		mods = append(mods, mp)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].ModuleID < mods[j].ModuleID })
	return mods, nil
}

func (repo *reportRepository) QuizPerformance(_ context.Context) ([]report.QuizPerformance, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	quizzes := make([]report.QuizPerformance, 0, len(repo.db.quizzes))
	for _, q := range repo.db.quizzes {
		qp := report.QuizPerformance{QuizID: q.ID, Title: q.Title}
		var total int
		for _, a := range repo.db.quizAttempts {
			if a.QuizID != q.ID || !a.CompletedAt.Valid {
				continue
			}
			qp.Attempts++
			total += a.Score
			if a.Passed {
				qp.Passed++
			}
		}
		if qp.Attempts > 0 {
			qp.AverageScore = round2(float64(total) / float64(qp.Attempts))
		}
		quizzes = append(quizzes, qp)
	}
	sort.Slice(quizzes, func(i, j int) bool {
		if quizzes[i].Attempts != quizzes[j].Attempts {
			return quizzes[i].Attempts > quizzes[j].Attempts
		}
		return quizzes[i].QuizID < quizzes[j].QuizID
	})
	return quizzes, nil
}

func (repo *reportRepository) PolicyAcknowledgments(_ context.Context) ([]report.PolicyAcknowledgment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	pols := make([]report.PolicyAcknowledgment, 0)
	for _, p := range repo.db.policies {
		if !p.IsActive {
			continue
		}
		pa := report.PolicyAcknowledgment{PolicyID: p.ID, Title: p.Title, Version: p.Version}
		for _, ack := range repo.db.acks {
			if usr, ok := repo.db.users[ack.UserID]; ok && usr.IsActive && ack.PolicyID == p.ID {
				pa.Acknowledged++
			}
		}
		pols = append(pols, pa)
	}
	sort.Slice(pols, func(i, j int) bool { return pols[i].Title < pols[j].Title })
	return pols, nil
}

func (repo *reportRepository) UserStats(_ context.Context, userID int64) (report.UserStats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var (
		stats report.UserStats
		total int
	)
	for _, a := range repo.db.quizAttempts {
		if a.UserID != userID || !a.CompletedAt.Valid {
			continue
		}
		stats.QuizAttempts++
		total += a.Score
		if a.Passed {
			stats.QuizzesPassed++
		}
	}
	if stats.QuizAttempts > 0 {
		stats.AverageScore = round2(float64(total) / float64(stats.QuizAttempts))
	}
	for _, a := range repo.db.gameAttempts {
		if a.UserID != userID {
			continue
		}
		stats.GamesPlayed++
		if a.Score > stats.BestGameScore {
			stats.BestGameScore = a.Score
		}
	}
	for _, p := range repo.db.progress {
		if p.UserID == userID && p.Status == training.StatusCompleted {
			stats.ModulesCompleted++
		}
	}
	for _, ack := range repo.db.acks {
		if ack.UserID == userID {
			stats.PoliciesAcknowledged++
		}
	}
	return stats, nil
}
