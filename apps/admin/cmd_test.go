package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/vigilsat/vigil/apps/api/echo"
	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/fact"
	"github.com/vigilsat/vigil/core/user"
	emailsvc "github.com/vigilsat/vigil/services/email"
	logsvc "github.com/vigilsat/vigil/services/logger"
	inmemdb "github.com/vigilsat/vigil/storage/database/inmem"
)

const testPwd = "Str0ng!Passw0rd"

func setup(t *testing.T) *commandLine {
	t.Helper()

	conf := &core.Config{Env: core.EnvTest, TestMode: true, SecretKey: "test-secret"}
	templates, err := core.ParseEmailTemplates(false /* strict */)
	require.NoError(t, err)
	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	repos := inmemdb.NewRepositories(inmemdb.NewDB())
	mailSvc := emailsvc.NewServiceMock(conf, templates, logsvc.NewNopLogger())

	return &commandLine{
		usrSvc:  user.NewService(repos.Users, mailSvc, validate, conf),
		factSvc: fact.NewService(repos.Facts, validate),
		out:     new(bytes.Buffer),
	}
}

// apiServer serves the auth API over the users the command line manages.
func apiServer(t *testing.T, cli *commandLine) *echoapi.Server {
	t.Helper()

	conf := &core.Config{
		Env:       core.EnvTest,
		TestMode:  true,
		SecretKey: "test-secret",
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour, JWTRefreshExpirationDelta: 24 * time.Hour},
	}
	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logsvc.NewNopLogger(),
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		UserSvc:        cli.usrSvc,
		FactSvc:        cli.factSvc,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest, check func(t *testing.T, tt cliTest)) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)

			err := cli.run(append([]string{"admin"}, tt.args...))
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Contains(t, err.Error(), tt.wantErrStr)
				}
			default:
				require.NoError(t, err)
				if check != nil {
					check(t, tt)
				}
			}
		})
	}
}

func Test_commandLine_root(t *testing.T) {
	cli := setup(t)

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErrStr: `unknown command "lol"`},
	}, nil)
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	var gotCommand string
	gooseRunFunc = func(ctx context.Context, db *sql.DB, command string, args ...string) error {
		gotCommand = command
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	runCLITests(t, cli, tests, func(t *testing.T, tt cliTest) {
		assert.Equal(t, tt.args[1], gotCommand)
	})
}

func Test_commandLine_seed(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, cli.run([]string{"admin", "seed"}))
	}

	admin, err := cli.usrSvc.GetByUsernameOrEmail(ctx, seedAdminEmail)
	require.NoError(t, err)
	assert.Equal(t, seedAdminUsername, admin.Username)
	assert.Equal(t, user.RoleAdmin, admin.Role)
	assert.Equal(t, seedAdminDepartment, admin.Department)
	assert.NoError(t, admin.CheckPassword(seedAdminPassword))

	facts, err := cli.factSvc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, facts, len(seedFacts))
}

func Test_commandLine_seedThenLogin(t *testing.T) {
	cli := setup(t)
	require.NoError(t, cli.run([]string{"admin", "seed"}))
	srv := apiServer(t, cli)

	login := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec
	}

	rec := login(`{"username": "admin", "password": "admin123"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp echoapi.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, seedAdminUsername, resp.User.Username)
	assert.Equal(t, user.RoleAdmin, resp.User.Role)

	rec = login(`{"username": "admin", "password": "admin1234"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error": "invalid credentials"}`, rec.Body.String())
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-u", "awe"}, pwd: testPwd, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-u", "awe", "-e", "awe@vigil.test"}, wantErr: errHelp},
		{name: "invalid role", args: []string{"adduser", "-u", "awe", "-e", "awe@vigil.test", "-r", "boss"}, pwd: testPwd, wantErrStr: `invalid role "boss"`},
		{name: "create", args: []string{"adduser", "-u", "awe", "-e", "awe@vigil.test", "-d", "Finance"}, pwd: "weak"},
		{name: "update", args: []string{"adduser", "--username", "awe", "--email", "awe@vigil.test", "--role", "Manager"}, pwd: testPwd},
	}
	runCLITests(t, cli, tests, func(t *testing.T, tt cliTest) {
		usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, "awe")
		require.NoError(t, err)
		assert.NoError(t, usr.CheckPassword(tt.pwd))
		assert.True(t, usr.IsActive)
		assert.Equal(t, "Finance", usr.Department)
	})

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, "awe")
	require.NoError(t, err)
	assert.Equal(t, user.RoleManager, usr.Role)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	usr, err := cli.usrSvc.Create(ctx, user.NewUser{
		Username:           "awe",
		Email:              "awe@vigil.test",
		Password:           testPwd,
		SkipPasswordPolicy: true,
	})
	require.NoError(t, err)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-u", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-u", "lol"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-u", usr.Username}, pwd: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "--username", usr.Email}, pwd: "lmao"},
	}
	runCLITests(t, cli, tests, func(t *testing.T, tt cliTest) {
		refreshed, err := cli.usrSvc.GetByID(ctx, usr.ID)
		require.NoError(t, err)
		assert.NoError(t, refreshed.CheckPassword(tt.pwd))
	})
}
