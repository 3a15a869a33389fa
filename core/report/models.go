package report

import (
	"time"

	"github.com/vigilsat/vigil/core/audit"
)

// Report types
const (
	TypeDashboard             = "dashboard"
	TypeCompliance            = "compliance"
	TypeTrainingProgress      = "training-progress"
	TypeQuizPerformance       = "quiz-performance"
	TypePolicyAcknowledgments = "policy-acknowledgments"
)

// Export formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

const (
	recentActivityLimit   = 10
	exportTimestampFormat = "20060102-150405"
)

// Overview holds the raw platform counters the dashboard is computed from.
type Overview struct {
	TotalUsers       int     `json:"total_users" db:"total_users"`
	ActiveUsers      int     `json:"active_users" db:"active_users"`
	ActivePolicies   int     `json:"active_policies" db:"active_policies"`
	RequiredPolicies int     `json:"required_policies" db:"required_policies"`
	Acknowledgments  int     `json:"acknowledgments" db:"acknowledgments"`
	QuizAttempts     int     `json:"quiz_attempts" db:"quiz_attempts"`
	PassedAttempts   int     `json:"passed_attempts" db:"passed_attempts"`
	AverageScore     float64 `json:"average_score" db:"average_score"`
	CompletedModules int     `json:"completed_modules" db:"completed_modules"`
}

type Dashboard struct {
	Overview
	AcknowledgmentRate float64     `json:"acknowledgment_rate"`
	PassRate           float64     `json:"pass_rate"`
	RecentActivity     []audit.Log `json:"recent_activity"`
	GeneratedAt        time.Time   `json:"generated_at"`
}

type DepartmentCompliance struct {
	Department      string  `json:"department" db:"department"`
	Users           int     `json:"users" db:"users"`
	Acknowledgments int     `json:"acknowledgments" db:"acknowledgments"`
	Required        int     `json:"required" db:"-"`
	ComplianceRate  float64 `json:"compliance_rate" db:"-"`
}

type ModuleProgress struct {
	ModuleID        int64   `json:"module_id" db:"module_id"`
	Title           string  `json:"title" db:"title"`
	Enrolled        int     `json:"enrolled" db:"enrolled"`
	Completed       int     `json:"completed" db:"completed"`
	AverageProgress float64 `json:"average_progress" db:"average_progress"`
	CompletionRate  float64 `json:"completion_rate" db:"-"`
}

type QuizPerformance struct {
	QuizID       int64   `json:"quiz_id" db:"quiz_id"`
	Title        string  `json:"title" db:"title"`
	Attempts     int     `json:"attempts" db:"attempts"`
	Passed       int     `json:"passed" db:"passed"`
	AverageScore float64 `json:"average_score" db:"average_score"`
	PassRate     float64 `json:"pass_rate" db:"-"`
}

type PolicyAcknowledgment struct {
	PolicyID     int64   `json:"policy_id" db:"policy_id"`
	Title        string  `json:"title" db:"title"`
	Version      string  `json:"version" db:"version"`
	Acknowledged int     `json:"acknowledged" db:"acknowledged"`
	TotalUsers   int     `json:"total_users" db:"-"`
	Rate         float64 `json:"rate" db:"-"`
}

// UserStats summarises the learning activity of one user.
type UserStats struct {
	QuizAttempts         int     `json:"quiz_attempts" db:"quiz_attempts"`
	QuizzesPassed        int     `json:"quizzes_passed" db:"quizzes_passed"`
	AverageScore         float64 `json:"average_score" db:"average_score"`
	GamesPlayed          int     `json:"games_played" db:"games_played"`
	BestGameScore        int     `json:"best_game_score" db:"best_game_score"`
	ModulesCompleted     int     `json:"modules_completed" db:"modules_completed"`
	PoliciesAcknowledged int     `json:"policies_acknowledged" db:"policies_acknowledged"`
}

type ExportRequest struct {
	ReportType string `json:"report_type" validate:"required,oneof=dashboard compliance training-progress quiz-performance policy-acknowledgments"`
	Format     string `json:"format" validate:"omitempty,oneof=json csv"`
}

type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}
