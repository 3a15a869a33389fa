package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/vigilsat/vigil/apps/api/echo"
	"github.com/vigilsat/vigil/core/game"
	"github.com/vigilsat/vigil/core/policy"
	"github.com/vigilsat/vigil/core/quiz"
	"github.com/vigilsat/vigil/core/training"
	"github.com/vigilsat/vigil/core/user"
	"github.com/vigilsat/vigil/services/realtime"
)

// staffClient registers an admin hub client listening on the staff rooms.
func (app *testApp) staffClient(t *testing.T, admin user.User) *realtime.Client {
	t.Helper()
	c := app.hub.Register(*admin.Identity())
	require.NoError(t, app.hub.Join(c, user.RoleAdmin))
	t.Cleanup(func() { app.hub.Unregister(c) })
	return c
}

func nextEvent(t *testing.T, c *realtime.Client) realtime.Message {
	t.Helper()
	select {
	case msg := <-c.Messages():
		return msg
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return realtime.Message{}
}

func Test_policyApi(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", user.RoleAdmin, true)
	employee := app.createUser(t, "employee", user.RoleEmployee, true)
	adminToken, empToken := app.token(t, admin), app.token(t, employee)
	staff := app.staffClient(t, admin)

	body := []byte(`{"title": "Acceptable Use", "content": "Be nice.", "category": "IT"}`)
	runHTTPTests(t, app, []httpTest{
		{name: "employee cannot create", method: http.MethodPost, path: "/api/policies", token: empToken, body: body, wantCode: http.StatusForbidden},
	})

	rec := app.do(http.MethodPost, "/api/policies", adminToken, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p policy.Policy
	decode(t, rec, &p)
	assert.Equal(t, "it", p.Category)
	assert.Equal(t, "1.0", p.Version)
	path := "/api/policies/" + itoa(p.ID)

	// first acknowledgment
	rec = app.do(http.MethodPost, path+"/acknowledge", empToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ack echoapi.AcknowledgeResponse
	decode(t, rec, &ack)
	assert.False(t, ack.AlreadyAcknowledged)
	assert.Equal(t, employee.ID, ack.Acknowledgment.UserID)

	msg := nextEvent(t, staff)
	assert.Equal(t, realtime.EventPolicyUpdate, msg.Event)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.EqualValues(t, p.ID, data["policy_id"])
	assert.Equal(t, "employee", data["username"])

	// repeat
	rec = app.do(http.MethodPost, path+"/acknowledge", empToken)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &ack)
	assert.True(t, ack.AlreadyAcknowledged)
	select {
	case <-staff.Messages():
		t.Error("repeated acknowledgment must not be published")
	default:
	}

	rec = app.do(http.MethodGet, "/api/policies", empToken)
	var policies []policy.Policy
	decode(t, rec, &policies)
	require.Len(t, policies, 1)
	assert.True(t, policies[0].Acknowledged)

	rec = app.do(http.MethodGet, "/api/policies/acknowledgments/me", empToken)
	var acks []policy.Acknowledgment
	decode(t, rec, &acks)
	assert.Len(t, acks, 1)

	// retire the policy
	rec = app.do(http.MethodPut, path, adminToken, []byte(`{"is_active": false}`))
	require.Equal(t, http.StatusOK, rec.Code)

	runHTTPTests(t, app, []httpTest{
		{name: "retired hidden from employees", path: path, token: empToken, wantCode: http.StatusNotFound},
		{name: "retired visible to staff", path: path, token: adminToken, wantCode: http.StatusOK},
		{name: "employee cannot delete", method: http.MethodDelete, path: path, token: empToken, wantCode: http.StatusForbidden},
		{name: "admin deletes", method: http.MethodDelete, path: path, token: adminToken, wantCode: http.StatusNoContent},
		{name: "gone", path: path, token: adminToken, wantCode: http.StatusNotFound},
	})
}

func Test_quizApi(t *testing.T) {
	app := setup(t)
	manager := app.createUser(t, "manager", user.RoleManager, true)
	employee := app.createUser(t, "employee", user.RoleEmployee, true)
	mgrToken, empToken := app.token(t, manager), app.token(t, employee)
	staff := app.staffClient(t, app.createUser(t, "admin", user.RoleAdmin, true))

	rec := app.do(http.MethodPost, "/api/quizzes", mgrToken, []byte(`{
		"title": "Phishing 101", "category": "Email", "difficulty": "beginner", "passing_score": 80,
		"questions": [
			{"question_text": "Click unknown links?", "options": ["Yes", "No"], "correct_answer": "No"},
			{"question_text": "Report phishing?", "question_type": "true_false", "options": ["True", "False"], "correct_answer": "True"}
		]}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var q quiz.Quiz
	decode(t, rec, &q)
	path := "/api/quizzes/" + itoa(q.ID)

	rec = app.do(http.MethodGet, path, empToken)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &q)
	require.Len(t, q.Questions, 2)
	assert.Equal(t, "No", q.Questions[0].CorrectAnswer)

	rec = app.do(http.MethodGet, "/api/quizzes?category=email", empToken)
	var quizzes []quiz.Quiz
	decode(t, rec, &quizzes)
	require.Len(t, quizzes, 1)
	assert.Equal(t, 2, quizzes[0].QuestionCount)

	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantPassed bool
	}{
		{name: "passed", body: `{"score": 100, "total_questions": 2, "correct_answers": 2, "time_taken": 30}`, wantCode: http.StatusCreated, wantPassed: true},
		{name: "failed", body: `{"score": 50, "total_questions": 2, "correct_answers": 1, "time_taken": 30}`, wantCode: http.StatusCreated},
		{name: "score above 100", body: `{"score": 120, "total_questions": 2, "correct_answers": 2}`, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(http.MethodPost, path+"/attempt", empToken, []byte(tt.body))
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusCreated {
				return
			}
			var a quiz.Attempt
			decode(t, rec, &a)
			assert.Equal(t, tt.wantPassed, a.Passed)
			assert.Equal(t, realtime.EventQuizUpdate, nextEvent(t, staff).Event)
		})
	}

	rec = app.do(http.MethodGet, "/api/quizzes/attempts/me", empToken)
	var attempts []quiz.Attempt
	decode(t, rec, &attempts)
	assert.Len(t, attempts, 2)

	runHTTPTests(t, app, []httpTest{
		{
			name: "clear incomplete", method: http.MethodDelete, path: "/api/quizzes/clear-incomplete", token: empToken,
			wantCode: http.StatusOK, wantData: []byte(`{"deleted": 0}`),
		},
		{name: "unknown quiz", method: http.MethodPost, path: "/api/quizzes/999/attempt", token: empToken, body: []byte(`{"score": 10}`), wantCode: http.StatusNotFound},
		{name: "manager cannot delete", method: http.MethodDelete, path: path, token: mgrToken, wantCode: http.StatusForbidden},
	})
}

func Test_gameApi(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", user.RoleAdmin, true)
	alice := app.createUser(t, "alice", user.RoleEmployee, true)
	bob := app.createUser(t, "bob", user.RoleEmployee, true)
	adminToken := app.token(t, admin)
	staff := app.staffClient(t, admin)

	rec := app.do(http.MethodPost, "/api/games", adminToken, []byte(`{"title": "Spot the phish", "game_type": "phishing", "max_score": 50}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var g game.Game
	decode(t, rec, &g)
	path := "/api/games/" + itoa(g.ID)

	for _, play := range []struct {
		usr   user.User
		score string
	}{{alice, "30"}, {bob, "45"}, {alice, "40"}} {
		rec = app.do(http.MethodPost, path+"/attempt", app.token(t, play.usr), []byte(`{"score": `+play.score+`, "completed": true}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, realtime.EventGameUpdate, nextEvent(t, staff).Event)
	}

	rec = app.do(http.MethodPost, path+"/attempt", app.token(t, bob), []byte(`{"score": 51}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"score"`)

	rec = app.do(http.MethodGet, path+"/leaderboard?limit=5", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var board []game.LeaderboardEntry
	decode(t, rec, &board)
	require.Len(t, board, 2)
	assert.Equal(t, "bob", board[0].Username)
	assert.Equal(t, 45, board[0].BestScore)
	assert.Equal(t, "alice", board[1].Username)
	assert.Equal(t, 2, board[1].Attempts)

	rec = app.do(http.MethodGet, "/api/games/attempts/me", app.token(t, alice))
	var attempts []game.Attempt
	decode(t, rec, &attempts)
	assert.Len(t, attempts, 2)

	runHTTPTests(t, app, []httpTest{
		{name: "employee cannot create", method: http.MethodPost, path: "/api/games", token: app.token(t, bob), body: []byte(`{}`), wantCode: http.StatusForbidden},
		{name: "unknown leaderboard", path: "/api/games/999/leaderboard", token: adminToken, wantCode: http.StatusNotFound},
	})
}

func Test_trainingApi(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", user.RoleAdmin, true)
	employee := app.createUser(t, "employee", user.RoleEmployee, true)
	empToken := app.token(t, employee)

	rec := app.do(http.MethodPost, "/api/training/modules", app.token(t, admin),
		[]byte(`{"title": "Passwords", "content": "Use a manager.", "duration": 15}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var m training.Module
	decode(t, rec, &m)
	path := "/api/training/modules/" + itoa(m.ID)

	for _, tt := range []struct {
		progress   string
		wantStatus string
	}{
		{"0", training.StatusNotStarted},
		{"40", training.StatusInProgress},
		{"100", training.StatusCompleted},
	} {
		rec = app.do(http.MethodPost, path+"/progress", empToken, []byte(`{"progress": `+tt.progress+`}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var p training.Progress
		decode(t, rec, &p)
		assert.Equal(t, tt.wantStatus, p.Status, tt.progress)
	}

	rec = app.do(http.MethodGet, "/api/training/modules", empToken)
	var modules []training.Module
	decode(t, rec, &modules)
	require.Len(t, modules, 1)
	assert.Equal(t, 100, modules[0].Progress)
	assert.True(t, modules[0].CompletedAt.Valid)

	runHTTPTests(t, app, []httpTest{
		{name: "progress out of range", method: http.MethodPost, path: path + "/progress", token: empToken, body: []byte(`{"progress": 101}`), wantCode: http.StatusBadRequest},
		{name: "progress required", method: http.MethodPost, path: path + "/progress", token: empToken, body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "my progress", path: "/api/training/progress/me", token: empToken, wantCode: http.StatusOK},
	})
}

func Test_factApi(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", user.RoleAdmin, true)
	employee := app.createUser(t, "employee", user.RoleEmployee, true)
	empToken := app.token(t, employee)

	runHTTPTests(t, app, []httpTest{
		{name: "no random fact", path: "/api/facts/random", token: empToken, wantCode: http.StatusNotFound},
		{name: "employee cannot create", method: http.MethodPost, path: "/api/facts", token: empToken, body: []byte(`{}`), wantCode: http.StatusForbidden},
	})

	rec := app.do(http.MethodPost, "/api/facts", app.token(t, admin), []byte(`{"title": "MFA", "content": "Turn it on.", "category": "Accounts"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	runHTTPTests(t, app, []httpTest{
		{name: "random fact", path: "/api/facts/random?category=accounts", token: empToken, wantCode: http.StatusOK},
		{name: "filtered out", path: "/api/facts?category=email", token: empToken, wantCode: http.StatusOK, wantData: []byte(`[]`)},
	})
}

func Test_reportApi(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", user.RoleAdmin, true)
	token := app.token(t, admin)

	rec := app.do(http.MethodGet, "/api/reports/dashboard", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(http.MethodPost, "/api/reports/export", token, []byte(`{"report_type": "compliance", "format": "csv"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `attachment; filename="compliance-report-`)

	rec = app.do(http.MethodPost, "/api/reports/export", token, []byte(`{"report_type": "nope"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// earlier requests are audited
	app.auditLogs(t)
	rec = app.do(http.MethodGet, "/api/reports/audit-logs?action=export&limit=10", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []map[string]interface{}
	decode(t, rec, &logs)
	assert.Len(t, logs, 2)
}

func TestRealtimeEndpoint(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", user.RoleAdmin, true)
	employee := app.createUser(t, "employee", user.RoleEmployee, true)

	ts := httptest.NewServer(app.srv)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	conn, _, err := websocket.Dial(ctx, wsURL+"?token="+app.token(t, admin), &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://localhost:3000"}},
	})
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return app.hub.RoomSize(user.RoleAdmin) == 1 }, time.Second, 10*time.Millisecond)

	app.hub.Publish(realtime.EventQuizUpdate, map[string]int{"quiz_id": 1}, *employee.Identity(), realtime.StaffRooms...)
	var msg realtime.Message
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, realtime.EventQuizUpdate, msg.Event)
}
