package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vigilsat/vigil/core/fact"
	"github.com/vigilsat/vigil/core/game"
	"github.com/vigilsat/vigil/core/policy"
	"github.com/vigilsat/vigil/core/quiz"
	"github.com/vigilsat/vigil/core/user"
)

type LoginResponse struct {
	Token string     `json:"token"`
	User  *user.User `json:"user,omitempty"`
}

// Quiz is a quiz definition as served by the API. Questions are kept raw so that
// quizflow can normalise the shapes it meets.
type Quiz struct {
	ID           int64             `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Category     string            `json:"category"`
	Difficulty   string            `json:"difficulty"`
	TimeLimit    int               `json:"time_limit"` // seconds
	PassingScore int               `json:"passing_score"`
	Questions    []json.RawMessage `json:"questions"`
}

type AcknowledgeResponse struct {
	Acknowledgment      policy.Acknowledgment `json:"acknowledgment"`
	AlreadyAcknowledged bool                  `json:"already_acknowledged"`
}

type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
}

// Health calls GET /health, which lives outside /api.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	resp, err := c.send(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return h, err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return h, &APIError{StatusCode: resp.StatusCode}
	}
	err = json.NewDecoder(resp.Body).Decode(&h)
	return h, err
}

// Login authenticates and keeps the returned token for the next requests.
func (c *Client) Login(ctx context.Context, username, password, mfaCode string) (LoginResponse, error) {
	var lr LoginResponse
	in := map[string]string{"username": username, "password": password}
	if mfaCode != "" {
		in["mfa_code"] = mfaCode
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, in, &lr); err != nil {
		return lr, err
	}
	c.tokens.SetToken(lr.Token)
	return lr, nil
}

// Logout drops the stored token. The API keeps no session state.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
	c.tokens.Clear()
	return err
}

func (c *Client) Profile(ctx context.Context) (user.User, error) {
	var usr user.User
	err := c.do(ctx, http.MethodGet, "/auth/profile", nil, nil, &usr)
	return usr, err
}

func (c *Client) ListQuizzes(ctx context.Context, category string) ([]quiz.Quiz, error) {
	var quizzes []quiz.Quiz
	err := c.do(ctx, http.MethodGet, "/quizzes", categoryQuery(category), nil, &quizzes)
	return quizzes, err
}

func (c *Client) GetQuiz(ctx context.Context, id int64) (Quiz, error) {
	var q Quiz
	err := c.do(ctx, http.MethodGet, "/quizzes/"+strconv.FormatInt(id, 10), nil, nil, &q)
	return q, err
}

func (c *Client) SubmitQuizAttempt(ctx context.Context, id int64, na quiz.NewAttempt) (quiz.Attempt, error) {
	var a quiz.Attempt
	err := c.do(ctx, http.MethodPost, "/quizzes/"+strconv.FormatInt(id, 10)+"/attempt", nil, na, &a)
	return a, err
}

func (c *Client) MyQuizAttempts(ctx context.Context) ([]quiz.Attempt, error) {
	var attempts []quiz.Attempt
	err := c.do(ctx, http.MethodGet, "/quizzes/attempts/me", nil, nil, &attempts)
	return attempts, err
}

func (c *Client) SubmitGameAttempt(ctx context.Context, id int64, na game.NewAttempt) (game.Attempt, error) {
	var a game.Attempt
	err := c.do(ctx, http.MethodPost, "/games/"+strconv.FormatInt(id, 10)+"/attempt", nil, na, &a)
	return a, err
}

func (c *Client) ListPolicies(ctx context.Context) ([]policy.Policy, error) {
	var policies []policy.Policy
	err := c.do(ctx, http.MethodGet, "/policies", nil, nil, &policies)
	return policies, err
}

func (c *Client) AcknowledgePolicy(ctx context.Context, id int64) (AcknowledgeResponse, error) {
	var ar AcknowledgeResponse
	err := c.do(ctx, http.MethodPost, "/policies/"+strconv.FormatInt(id, 10)+"/acknowledge", nil, nil, &ar)
	return ar, err
}

func (c *Client) RandomFact(ctx context.Context, category string) (fact.Fact, error) {
	var f fact.Fact
	err := c.do(ctx, http.MethodGet, "/facts/random", categoryQuery(category), nil, &f)
	return f, err
}

func categoryQuery(category string) url.Values {
	if category == "" {
		return nil
	}
	return url.Values{"category": {category}}
}
