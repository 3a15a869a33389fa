// Package audit records user actions for compliance reporting.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/vigilsat/vigil/core"
)

const (
	defaultInsertTimeout = 5 * time.Second
	defaultListLimit     = 100
	maxListLimit         = 1000
)

// Log is one audit_logs row.
type Log struct {
	ID         int64       `json:"id" db:"id"`
	UserID     null.Int64  `json:"user_id" db:"user_id"`
	Action     string      `json:"action" db:"action"`
	Resource   string      `json:"resource" db:"resource"`
	ResourceID string      `json:"resource_id" db:"resource_id"`
	Method     string      `json:"method" db:"method"`
	Path       string      `json:"path" db:"path"`
	StatusCode int         `json:"status_code" db:"status_code"`
	IPAddress  string      `json:"ip_address" db:"ip_address"`
	UserAgent  string      `json:"user_agent" db:"user_agent"`
	Details    null.JSON   `json:"details" db:"details"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	Username   null.String `json:"username,omitempty" db:"username"`
}

type QueryFilter struct {
	UserID int64     `query:"user_id"`
	Action string    `query:"action"`
	From   time.Time `query:"from"`
	To     time.Time `query:"to"`
	Limit  int       `query:"limit"`
}

func (qf *QueryFilter) Clean() {
	qf.Action = core.CleanString(qf.Action)
	if qf.Limit <= 0 {
		qf.Limit = defaultListLimit
	} else if qf.Limit > maxListLimit {
		qf.Limit = maxListLimit
	}
}

type Repository interface {
	Insert(ctx context.Context, l Log) error
	// Filter returns the most recent logs first.
	Filter(ctx context.Context, filter QueryFilter) ([]Log, error)
}

// Recorder inserts audit logs in the background.
// Insert failures are logged and dropped; callers never see them.
type Recorder struct {
	repo    Repository
	logger  core.Logger
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewRecorder(repo Repository, logger core.Logger) *Recorder {
	return &Recorder{
		repo:    repo,
		logger:  logger,
		timeout: defaultInsertTimeout,
		now:     time.Now,
	}
}

// Record inserts l on its own goroutine with its own deadline, detached from any request context.
func (r *Recorder) Record(l Log) {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = r.now().UTC()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.repo.Insert(ctx, l); err != nil {
			r.logger.Error("audit: inserting log", err, map[string]interface{}{
				"action":  l.Action,
				"user_id": l.UserID.Int64,
			})
		}
	}()
}

// Wait blocks until in-flight inserts are done or ctx expires.
func (r *Recorder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) Filter(ctx context.Context, filter QueryFilter) ([]Log, error) {
	filter.Clean()
	return r.repo.Filter(ctx, filter)
}
