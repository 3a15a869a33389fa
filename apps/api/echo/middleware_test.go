package echoapi_test

import (
	"errors"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/user"
)

func TestAuditHook(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", user.RoleAdmin, true)
	token := app.token(t, admin)

	rec := app.do(http.MethodPost, "/api/facts", token, []byte(`{"title": "Lock it", "content": "Lock your screen."}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID int64 `json:"id"`
	}
	decode(t, rec, &created)

	// bodiless response
	rec = app.do(http.MethodDelete, "/api/facts/"+itoa(created.ID), token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// failed request from an identified caller
	rec = app.do(http.MethodGet, "/api/facts/999", token)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// anonymous requests are not audited
	app.do(http.MethodGet, "/api/facts", "")
	app.do(http.MethodGet, "/health", "")

	logs := app.auditLogs(t)
	require.Len(t, logs, 3)

	byAction := make(map[string]int)
	for _, l := range logs {
		assert.Equal(t, admin.ID, l.UserID.Int64)
		assert.Equal(t, "facts", l.Resource)
		byAction[l.Action] = l.StatusCode
	}
	assert.Equal(t, map[string]int{
		"POST /api/facts":       http.StatusCreated,
		"DELETE /api/facts/:id": http.StatusNoContent,
		"GET /api/facts/:id":    http.StatusNotFound,
	}, byAction)
}

func TestAuditHook_insertFailure(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "jdoe", user.RoleEmployee, true)
	app.db.InsertAuditErr = errors.New("db down")

	rec := app.do(http.MethodGet, "/api/policies", app.token(t, usr))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, app.auditLogs(t))

	entry, ok := app.logs.find("error", "audit: inserting log")
	require.True(t, ok, "insert failure not logged")
	require.NotEmpty(t, entry.args)
	assert.EqualError(t, entry.args[0].(error), "db down")
	assert.Contains(t, entry.args, map[string]interface{}{"action": "GET /api/policies", "user_id": usr.ID})
}

func TestRateLimit(t *testing.T) {
	const max = 3
	app := setup(t, func(conf *core.Config) {
		conf.RateLimit.MaxRequests = max
	})

	for i := 1; i <= max; i++ {
		rec := app.do(http.MethodGet, "/api/facts", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, strconv.Itoa(max), rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(max-i), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := app.do(http.MethodGet, "/api/facts", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error": "too many requests, please try again later"}`, rec.Body.String())
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// only /api is limited
	rec = app.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestErrorHandler(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", user.RoleAdmin, true)
	token := app.token(t, admin)

	runHTTPTests(t, app, []httpTest{
		{
			name: "not found", path: "/api/policies/999", token: token,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "policy not found"}),
		},
		{
			name: "invalid id", path: "/api/policies/abc", token: token,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "invalid id"}),
		},
		{
			name: "validation", method: http.MethodPost, path: "/api/policies", token: token, body: []byte(`{"title": "  "}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error": "validation failed", "fields": {
				"title": "this field cannot be blank", "content": "this field is required"}}`),
		},
		{
			name: "malformed", method: http.MethodPost, path: "/api/policies", token: token, body: []byte(`{"title": 1`),
			wantCode: http.StatusBadRequest,
		},
		{name: "unknown route", path: "/api/nope", token: token, wantCode: http.StatusNotFound},
	})
}
