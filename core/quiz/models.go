package quiz

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/vigilsat/vigil/core"
)

const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"

	TypeMultipleChoice = "multiple_choice"
	TypeTrueFalse      = "true_false"

	DefaultPassingScore = 70
	DefaultTimeLimit    = 600 // seconds
)

type Quiz struct {
	ID            int64      `json:"id" db:"id"`
	Title         string     `json:"title" db:"title"`
	Description   string     `json:"description" db:"description"`
	Category      string     `json:"category" db:"category"`
	Difficulty    string     `json:"difficulty" db:"difficulty"`
	TimeLimit     int        `json:"time_limit" db:"time_limit"` // seconds
	PassingScore  int        `json:"passing_score" db:"passing_score"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	CreatedBy     null.Int64 `json:"created_by" db:"created_by"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	QuestionCount int        `json:"question_count" db:"question_count"`

	Questions []Question `json:"questions,omitempty" db:"-"`
}

type Question struct {
	ID            int64   `json:"id" db:"id"`
	QuizID        int64   `json:"quiz_id" db:"quiz_id"`
	QuestionText  string  `json:"question_text" db:"question_text"`
	QuestionType  string  `json:"question_type" db:"question_type"`
	Options       Options `json:"options" db:"options"`
	CorrectAnswer string  `json:"correct_answer" db:"correct_answer"`
	Explanation   string  `json:"explanation" db:"explanation"`
	Points        int     `json:"points" db:"points"`
	Position      int     `json:"position" db:"position"`
}

// Options is a JSON array column.
type Options []string

func (o Options) Value() (driver.Value, error) {
	if o == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o)
}

func (o *Options) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*o = Options{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("quiz.Options: unsupported type %T", src)
	}
	return json.Unmarshal(data, o)
}

type Attempt struct {
	ID             int64     `json:"id" db:"id"`
	QuizID         int64     `json:"quiz_id" db:"quiz_id"`
	UserID         int64     `json:"user_id" db:"user_id"`
	Score          int       `json:"score" db:"score"`
	TotalQuestions int       `json:"total_questions" db:"total_questions"`
	CorrectAnswers int       `json:"correct_answers" db:"correct_answers"`
	Passed         bool      `json:"passed" db:"passed"`
	TimeTaken      int       `json:"time_taken" db:"time_taken"` // seconds
	Answers        null.JSON `json:"answers" db:"answers"`
	StartedAt      time.Time `json:"started_at" db:"started_at"`
	CompletedAt    null.Time `json:"completed_at" db:"completed_at"`
	QuizTitle      string    `json:"quiz_title,omitempty" db:"quiz_title"`
}

type NewQuestion struct {
	QuestionText  string   `json:"question_text" validate:"required,notblank"`
	QuestionType  string   `json:"question_type" validate:"omitempty,oneof=multiple_choice true_false"`
	Options       []string `json:"options" validate:"required,min=2,max=10,dive,notblank"`
	CorrectAnswer string   `json:"correct_answer" validate:"required,notblank"`
	Explanation   string   `json:"explanation"`
	Points        int      `json:"points" validate:"gte=0"`
}

type NewQuiz struct {
	Title        string        `json:"title" validate:"required,notblank,max=255"`
	Description  string        `json:"description"`
	Category     string        `json:"category" validate:"max=100"`
	Difficulty   string        `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	TimeLimit    int           `json:"time_limit" validate:"gte=0"`
	PassingScore int           `json:"passing_score" validate:"gte=0,lte=100"`
	Questions    []NewQuestion `json:"questions" validate:"dive"`
}

type UpdateQuiz struct {
	Title        *string       `json:"title" validate:"omitempty,notblank,max=255"`
	Description  *string       `json:"description"`
	Category     *string       `json:"category" validate:"omitempty,max=100"`
	Difficulty   *string       `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	TimeLimit    *int          `json:"time_limit" validate:"omitempty,gte=0"`
	PassingScore *int          `json:"passing_score" validate:"omitempty,gte=0,lte=100"`
	IsActive     *bool         `json:"is_active"`
	Questions    []NewQuestion `json:"questions" validate:"omitempty,dive"` // replaces all questions when set
}

func (uq UpdateQuiz) apply(q *Quiz) {
	if uq.Title != nil {
		q.Title = core.CleanString(*uq.Title)
	}
	if uq.Description != nil {
		q.Description = *uq.Description
	}
	if uq.Category != nil {
		q.Category = core.CleanString(*uq.Category, true /* lower */)
	}
	if uq.Difficulty != nil {
		q.Difficulty = *uq.Difficulty
	}
	if uq.TimeLimit != nil {
		q.TimeLimit = *uq.TimeLimit
	}
	if uq.PassingScore != nil {
		q.PassingScore = *uq.PassingScore
	}
	if uq.IsActive != nil {
		q.IsActive = *uq.IsActive
	}
}

// NewAttempt is the result of a quiz as scored by the client.
type NewAttempt struct {
	Score          int             `json:"score" validate:"gte=0,lte=100"`
	TotalQuestions int             `json:"total_questions" validate:"gte=0"`
	CorrectAnswers int             `json:"correct_answers" validate:"gte=0,ltefield=TotalQuestions"`
	TimeTaken      int             `json:"time_taken" validate:"gte=0"`
	Answers        json.RawMessage `json:"answers"`
	StartedAt      *time.Time      `json:"started_at"`
}

type QueryFilter struct {
	Category   string `query:"category"`
	Difficulty string `query:"difficulty"`

	ActiveOnly bool `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Category = core.CleanString(qf.Category, true /* lower */)
	qf.Difficulty = core.CleanString(qf.Difficulty, true /* lower */)
}
