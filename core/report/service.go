package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/audit"
)

type (
	Repository interface {
		Overview(ctx context.Context) (Overview, error)
		// DepartmentCompliance counts active users and their acknowledgments of required policies, per department.
		DepartmentCompliance(ctx context.Context) ([]DepartmentCompliance, error)
		ModuleProgress(ctx context.Context) ([]ModuleProgress, error)
		QuizPerformance(ctx context.Context) ([]QuizPerformance, error)
		PolicyAcknowledgments(ctx context.Context) ([]PolicyAcknowledgment, error)
		UserStats(ctx context.Context, userID int64) (UserStats, error)
	}

	// ActivityLister lists audit logs for the dashboard.
	ActivityLister interface {
		Filter(ctx context.Context, filter audit.QueryFilter) ([]audit.Log, error)
	}

	Service struct {
		repo     Repository
		activity ActivityLister
		validate *validator.Validate
		now      func() time.Time
	}
)

func NewService(repo Repository, activity ActivityLister, validate *validator.Validate) *Service {
	return &Service{repo: repo, activity: activity, validate: validate, now: time.Now}
}

func (svc *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	ov, err := svc.repo.Overview(ctx)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "loading overview")
	}
	recent, err := svc.activity.Filter(ctx, audit.QueryFilter{Limit: recentActivityLimit})
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "loading recent activity")
	}
	if recent == nil {
		recent = []audit.Log{}
	}

	return Dashboard{
		Overview:           ov,
		AcknowledgmentRate: core.Percent(float64(ov.Acknowledgments), float64(ov.ActiveUsers*ov.RequiredPolicies)),
		PassRate:           core.Percent(float64(ov.PassedAttempts), float64(ov.QuizAttempts)),
		RecentActivity:     recent,
		GeneratedAt:        svc.now().UTC(),
	}, nil
}

func (svc *Service) Compliance(ctx context.Context) ([]DepartmentCompliance, error) {
	ov, err := svc.repo.Overview(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading overview")
	}
	depts, err := svc.repo.DepartmentCompliance(ctx)
	if err != nil {
		return nil, err
	}
	for i := range depts {
		depts[i].Required = depts[i].Users * ov.RequiredPolicies
		depts[i].ComplianceRate = core.Percent(float64(depts[i].Acknowledgments), float64(depts[i].Required))
	}
	return depts, nil
}

func (svc *Service) TrainingProgress(ctx context.Context) ([]ModuleProgress, error) {
	mods, err := svc.repo.ModuleProgress(ctx)
	if err != nil {
		return nil, err
	}
	for i := range mods {
		mods[i].CompletionRate = core.Percent(float64(mods[i].Completed), float64(mods[i].Enrolled))
	}
	return mods, nil
}

func (svc *Service) QuizPerformance(ctx context.Context) ([]QuizPerformance, error) {
	quizzes, err := svc.repo.QuizPerformance(ctx)
	if err != nil {
		return nil, err
	}
	for i := range quizzes {
		quizzes[i].PassRate = core.Percent(float64(quizzes[i].Passed), float64(quizzes[i].Attempts))
	}
	return quizzes, nil
}

func (svc *Service) PolicyAcknowledgments(ctx context.Context) ([]PolicyAcknowledgment, error) {
	ov, err := svc.repo.Overview(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading overview")
	}
	pols, err := svc.repo.PolicyAcknowledgments(ctx)
	if err != nil {
		return nil, err
	}
	for i := range pols {
		pols[i].TotalUsers = ov.ActiveUsers
		pols[i].Rate = core.Percent(float64(pols[i].Acknowledged), float64(ov.ActiveUsers))
	}
	return pols, nil
}

func (svc *Service) UserStats(ctx context.Context, userID int64) (UserStats, error) {
	return svc.repo.UserStats(ctx, userID)
}

// Export renders a report as a downloadable json or csv file.
func (svc *Service) Export(ctx context.Context, req ExportRequest) (Export, error) {
	if err := svc.validate.StructCtx(ctx, req); err != nil {
		return Export{}, err
	}
	if req.Format == "" {
		req.Format = FormatJSON
	}

	var (
		data interface{}
		rows [][]string
		err  error
	)
	switch req.ReportType {
	case TypeDashboard:
		var d Dashboard
		if d, err = svc.Dashboard(ctx); err == nil {
			data, rows = d, dashboardRows(d)
		}
	case TypeCompliance:
		var depts []DepartmentCompliance
		if depts, err = svc.Compliance(ctx); err == nil {
			data, rows = depts, complianceRows(depts)
		}
	case TypeTrainingProgress:
		var mods []ModuleProgress
		if mods, err = svc.TrainingProgress(ctx); err == nil {
			data, rows = mods, trainingRows(mods)
		}
	case TypeQuizPerformance:
		var quizzes []QuizPerformance
		if quizzes, err = svc.QuizPerformance(ctx); err == nil {
			data, rows = quizzes, quizRows(quizzes)
		}
	case TypePolicyAcknowledgments:
		var pols []PolicyAcknowledgment
		if pols, err = svc.PolicyAcknowledgments(ctx); err == nil {
			data, rows = pols, policyRows(pols)
		}
	}
	if err != nil {
		return Export{}, err
	}

	exp := Export{Filename: fmt.Sprintf("%s-report-%s.%s", req.ReportType, svc.now().UTC().Format(exportTimestampFormat), req.Format)}
	if req.Format == FormatCSV {
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err = w.WriteAll(rows); err != nil {
			return Export{}, errors.Wrap(err, "writing csv")
		}
		exp.ContentType = "text/csv; charset=utf-8"
		exp.Data = buf.Bytes()
		return exp, nil
	}

	exp.ContentType = "application/json; charset=utf-8"
	exp.Data, err = json.MarshalIndent(map[string]interface{}{
		"report_type":  req.ReportType,
		"generated_at": svc.now().UTC(),
		"data":         data,
	}, "", "  ")
	if err != nil {
		return Export{}, errors.Wrap(err, "encoding json")
	}
	return exp, nil
}

func itoa(i int) string     { return strconv.Itoa(i) }
func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }
func idtoa(id int64) string { return strconv.FormatInt(id, 10) }

func dashboardRows(d Dashboard) [][]string {
	return [][]string{
		{"metric", "value"},
		{"total_users", itoa(d.TotalUsers)},
		{"active_users", itoa(d.ActiveUsers)},
		{"active_policies", itoa(d.ActivePolicies)},
		{"acknowledgment_rate", ftoa(d.AcknowledgmentRate)},
		{"quiz_attempts", itoa(d.QuizAttempts)},
		{"average_score", ftoa(d.AverageScore)},
		{"pass_rate", ftoa(d.PassRate)},
		{"completed_modules", itoa(d.CompletedModules)},
	}
}

func complianceRows(depts []DepartmentCompliance) [][]string {
	rows := [][]string{{"department", "users", "acknowledgments", "required", "compliance_rate"}}
	for _, d := range depts {
		rows = append(rows, []string{d.Department, itoa(d.Users), itoa(d.Acknowledgments), itoa(d.Required), ftoa(d.ComplianceRate)})
	}
	return rows
}

func trainingRows(mods []ModuleProgress) [][]string {
	rows := [][]string{{"module_id", "title", "enrolled", "completed", "average_progress", "completion_rate"}}
	for _, m := range mods {
		rows = append(rows, []string{idtoa(m.ModuleID), m.Title, itoa(m.Enrolled), itoa(m.Completed), ftoa(m.AverageProgress), ftoa(m.CompletionRate)})
	}
	return rows
}

func quizRows(quizzes []QuizPerformance) [][]string {
	rows := [][]string{{"quiz_id", "title", "attempts", "passed", "average_score", "pass_rate"}}
	for _, q := range quizzes {
		rows = append(rows, []string{idtoa(q.QuizID), q.Title, itoa(q.Attempts), itoa(q.Passed), ftoa(q.AverageScore), ftoa(q.PassRate)})
	}
	return rows
}

func policyRows(pols []PolicyAcknowledgment) [][]string {
	rows := [][]string{{"policy_id", "title", "version", "acknowledged", "total_users", "rate"}}
	for _, p := range pols {
		rows = append(rows, []string{idtoa(p.PolicyID), p.Title, p.Version, itoa(p.Acknowledged), itoa(p.TotalUsers), ftoa(p.Rate)})
	}
	return rows
}
