package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/vigilsat/vigil/apps/api/echo"
	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/audit"
	"github.com/vigilsat/vigil/core/fact"
	"github.com/vigilsat/vigil/core/game"
	"github.com/vigilsat/vigil/core/policy"
	"github.com/vigilsat/vigil/core/quiz"
	"github.com/vigilsat/vigil/core/report"
	"github.com/vigilsat/vigil/core/training"
	"github.com/vigilsat/vigil/core/user"
	emailsvc "github.com/vigilsat/vigil/services/email"
	"github.com/vigilsat/vigil/services/ratelimit"
	"github.com/vigilsat/vigil/services/realtime"
	inmemdb "github.com/vigilsat/vigil/storage/database/inmem"
)

const testPwd = "Str0ng!Passw0rd"

type testApp struct {
	srv     *echoapi.Server
	conf    *core.Config
	db      *inmemdb.DB
	repos   inmemdb.Repositories
	usrSvc  *user.Service
	rec     *audit.Recorder
	hub     *realtime.Hub
	mailSvc *emailsvc.ServiceMock
	logs    *logRecorder
}

type logEntry struct {
	level string
	msg   string
	args  []interface{}
}

// logRecorder is a core.Logger keeping what it is given.
type logRecorder struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *logRecorder) add(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *logRecorder) Debug(msg string, args ...interface{}) { l.add("debug", msg, args) }
func (l *logRecorder) Info(msg string, args ...interface{})  { l.add("info", msg, args) }
func (l *logRecorder) Warn(msg string, args ...interface{})  { l.add("warn", msg, args) }
func (l *logRecorder) Error(msg string, args ...interface{}) { l.add("error", msg, args) }
func (l *logRecorder) Fatal(msg string, args ...interface{}) { l.add("fatal", msg, args) }

func (l *logRecorder) find(level, msg string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

func testConfig() *core.Config {
	return &core.Config{
		AppName:                   "Vigil",
		Env:                       core.EnvTest,
		TestMode:                  true,
		SecretKey:                 "test-secret",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          mail.Address{Address: "noreply@vigil.test"},
		PasswordResetTimeoutDelta: 24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 7 * 24 * time.Hour,
		},
		RateLimit: core.RateLimitConfig{Window: 15 * time.Minute, MaxRequests: 1000},
	}
}

func setup(t *testing.T, opts ...func(*core.Config)) *testApp {
	t.Helper()

	conf := testConfig()
	for _, opt := range opts {
		opt(conf)
	}
	logger := new(logRecorder)

	templates, err := core.ParseEmailTemplates(true /* strict */)
	require.NoError(t, err)
	mailSvc := emailsvc.NewServiceMock(conf, templates, logger)

	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	db := inmemdb.NewDB()
	repos := inmemdb.NewRepositories(db)

	usrSvc := user.NewService(repos.Users, mailSvc, validate, conf)
	rec := audit.NewRecorder(repos.Audit, logger)
	hub := realtime.NewHub(logger)

	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		PolicySvc:      policy.NewService(repos.Policies, validate),
		QuizSvc:        quiz.NewService(repos.Quizzes, validate),
		GameSvc:        game.NewService(repos.Games, validate),
		TrainingSvc:    training.NewService(repos.Training, validate),
		FactSvc:        fact.NewService(repos.Facts, validate),
		ReportSvc:      report.NewService(repos.Reports, repos.Audit, validate),
		Recorder:       rec,
		Hub:            hub,
		Limiter:        ratelimit.NewMemory(conf.RateLimit.Window, conf.RateLimit.MaxRequests),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return &testApp{
		srv:     srv,
		conf:    conf,
		db:      db,
		repos:   repos,
		usrSvc:  usrSvc,
		rec:     rec,
		hub:     hub,
		mailSvc: mailSvc,
		logs:    logger,
	}
}

func (app *testApp) createUser(t *testing.T, username, role string, active bool) user.User {
	t.Helper()
	ctx := context.Background()

	usr, err := app.usrSvc.Create(ctx, user.NewUser{
		Username:           username,
		Email:              username + "@vigil.test",
		Password:           testPwd,
		FirstName:          username,
		Department:         "IT",
		Role:               role,
		SkipPasswordPolicy: true,
	})
	require.NoError(t, err)

	if !active {
		usr, err = app.usrSvc.Update(ctx, usr.ID, user.UpdateUser{IsActive: &active})
		require.NoError(t, err)
	}
	return usr
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(app.conf, echoapi.NewUserClaims(app.conf, usr))
	require.NoError(t, err)
	return token
}

// do serves a request and returns the recorded response.
func (app *testApp) do(method, path, token string, body ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, body...)
	app.srv.ServeHTTP(rec, req)
	return rec
}

// auditLogs waits for the pending inserts then returns the stored logs.
func (app *testApp) auditLogs(t *testing.T) []audit.Log {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, app.rec.Wait(ctx))
	return app.repos.Audit.Logs()
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			checkCodeAndData(t, tt, app.do(method, tt.path, tt.token, tt.body))
		})
	}
}
