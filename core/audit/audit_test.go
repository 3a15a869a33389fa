package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

type repoStub struct {
	mu   sync.Mutex
	logs []Log
	err  error
	ctxs []context.Context
}

func (r *repoStub) Insert(ctx context.Context, l Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctxs = append(r.ctxs, ctx)
	if r.err != nil {
		return r.err
	}
	r.logs = append(r.logs, l)
	return nil
}

func (r *repoStub) Filter(_ context.Context, filter QueryFilter) ([]Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.logs) > filter.Limit {
		return r.logs[:filter.Limit], nil
	}
	return r.logs, nil
}

type loggerStub struct {
	mu     sync.Mutex
	errors []string
}

func (l *loggerStub) Debug(string, ...interface{}) {}
func (l *loggerStub) Info(string, ...interface{})  {}
func (l *loggerStub) Warn(string, ...interface{})  {}
func (l *loggerStub) Fatal(string, ...interface{}) {}
func (l *loggerStub) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func TestRecorder_Record(t *testing.T) {
	repo := &repoStub{}
	logger := &loggerStub{}
	rec := NewRecorder(repo, logger)
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	for i := 0; i < 5; i++ {
		rec.Record(Log{UserID: null.Int64From(int64(i + 1)), Action: "GET /api/policies"})
	}
	require.NoError(t, rec.Wait(context.Background()))

	assert.Len(t, repo.logs, 5)
	assert.Empty(t, logger.errors)
	for _, l := range repo.logs {
		assert.Equal(t, fixed, l.CreatedAt)
	}
	for _, ctx := range repo.ctxs {
		_, ok := ctx.Deadline()
		assert.True(t, ok, "insert should run with its own deadline")
	}
}

func TestRecorder_RecordErrorIsLogged(t *testing.T) {
	repo := &repoStub{err: errors.New("db down")}
	logger := &loggerStub{}
	rec := NewRecorder(repo, logger)

	rec.Record(Log{Action: "POST /api/quizzes/:id/attempt"})
	require.NoError(t, rec.Wait(context.Background()))

	assert.Empty(t, repo.logs)
	assert.Equal(t, []string{"audit: inserting log"}, logger.errors)
}

func TestRecorder_WaitTimeout(t *testing.T) {
	rec := NewRecorder(&repoStub{}, &loggerStub{})
	rec.wg.Add(1) // simulate a stuck insert
	defer rec.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rec.Wait(ctx), context.DeadlineExceeded)
}

func TestQueryFilter_Clean(t *testing.T) {
	qf := QueryFilter{Action: "  GET /api/x ", Limit: 0}
	qf.Clean()
	assert.Equal(t, "GET /api/x", qf.Action)
	assert.Equal(t, defaultListLimit, qf.Limit)

	qf = QueryFilter{Limit: 5000}
	qf.Clean()
	assert.Equal(t, maxListLimit, qf.Limit)
}
