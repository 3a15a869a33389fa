package report

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/audit"
)

type repoStub struct{}

func (repoStub) Overview(context.Context) (Overview, error) {
	return Overview{
		TotalUsers:       12,
		ActiveUsers:      10,
		ActivePolicies:   3,
		RequiredPolicies: 2,
		Acknowledgments:  15,
		QuizAttempts:     8,
		PassedAttempts:   6,
		AverageScore:     77.5,
		CompletedModules: 4,
	}, nil
}

func (repoStub) DepartmentCompliance(context.Context) ([]DepartmentCompliance, error) {
	return []DepartmentCompliance{
		{Department: "IT", Users: 4, Acknowledgments: 8},
		{Department: "Sales", Users: 3, Acknowledgments: 3},
		{Department: "Empty", Users: 0, Acknowledgments: 0},
	}, nil
}

func (repoStub) ModuleProgress(context.Context) ([]ModuleProgress, error) {
	return []ModuleProgress{{ModuleID: 1, Title: "Phishing 101", Enrolled: 4, Completed: 1, AverageProgress: 62.5}}, nil
}

func (repoStub) QuizPerformance(context.Context) ([]QuizPerformance, error) {
	return []QuizPerformance{{QuizID: 1, Title: "Passwords", Attempts: 3, Passed: 2, AverageScore: 71}}, nil
}

func (repoStub) PolicyAcknowledgments(context.Context) ([]PolicyAcknowledgment, error) {
	return []PolicyAcknowledgment{{PolicyID: 1, Title: "Acceptable Use", Version: "1.0", Acknowledged: 7}}, nil
}

func (repoStub) UserStats(context.Context, int64) (UserStats, error) {
	return UserStats{QuizAttempts: 2}, nil
}

type activityStub struct{ limit int }

func (a *activityStub) Filter(_ context.Context, filter audit.QueryFilter) ([]audit.Log, error) {
	a.limit = filter.Limit
	return nil, nil
}

func newTestService() (*Service, *activityStub) {
	validate, _ := core.NewValidator()
	act := &activityStub{}
	svc := NewService(repoStub{}, act, validate)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC) }
	return svc, act
}

func TestService_Dashboard(t *testing.T) {
	svc, act := newTestService()

	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 75.0, d.AcknowledgmentRate) // 15 / (10*2)
	assert.Equal(t, 75.0, d.PassRate)           // 6 / 8
	assert.Equal(t, recentActivityLimit, act.limit)
	assert.NotNil(t, d.RecentActivity)
}

func TestService_Compliance(t *testing.T) {
	svc, _ := newTestService()

	depts, err := svc.Compliance(context.Background())
	require.NoError(t, err)
	require.Len(t, depts, 3)
	assert.Equal(t, 8, depts[0].Required)
	assert.Equal(t, 100.0, depts[0].ComplianceRate)
	assert.Equal(t, 50.0, depts[1].ComplianceRate)
	assert.Equal(t, 0.0, depts[2].ComplianceRate)
}

func TestService_Rates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	mods, err := svc.TrainingProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25.0, mods[0].CompletionRate)

	quizzes, err := svc.QuizPerformance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 66.67, quizzes[0].PassRate)

	pols, err := svc.PolicyAcknowledgments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, pols[0].TotalUsers)
	assert.Equal(t, 70.0, pols[0].Rate)
}

func TestService_Export(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	t.Run("csv", func(t *testing.T) {
		exp, err := svc.Export(ctx, ExportRequest{ReportType: TypeCompliance, Format: FormatCSV})
		require.NoError(t, err)
		assert.Equal(t, "compliance-report-20240301-123000.csv", exp.Filename)
		assert.True(t, strings.HasPrefix(exp.ContentType, "text/csv"))
		lines := strings.Split(strings.TrimSpace(string(exp.Data)), "\n")
		require.Len(t, lines, 4)
		assert.Equal(t, "department,users,acknowledgments,required,compliance_rate", lines[0])
		assert.Equal(t, "IT,4,8,8,100.00", lines[1])
	})

	t.Run("json default", func(t *testing.T) {
		exp, err := svc.Export(ctx, ExportRequest{ReportType: TypeQuizPerformance})
		require.NoError(t, err)
		assert.Equal(t, "quiz-performance-report-20240301-123000.json", exp.Filename)

		var body struct {
			ReportType string            `json:"report_type"`
			Data       []QuizPerformance `json:"data"`
		}
		require.NoError(t, json.Unmarshal(exp.Data, &body))
		assert.Equal(t, TypeQuizPerformance, body.ReportType)
		assert.Len(t, body.Data, 1)
	})

	t.Run("invalid type", func(t *testing.T) {
		_, err := svc.Export(ctx, ExportRequest{ReportType: "salaries"})
		var vErrs validator.ValidationErrors
		assert.ErrorAs(t, err, &vErrs)
	})
}
