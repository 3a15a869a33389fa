package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/audit"
	"github.com/vigilsat/vigil/core/fact"
	"github.com/vigilsat/vigil/core/game"
	"github.com/vigilsat/vigil/core/policy"
	"github.com/vigilsat/vigil/core/quiz"
	"github.com/vigilsat/vigil/core/report"
	"github.com/vigilsat/vigil/core/training"
	"github.com/vigilsat/vigil/core/user"
	"github.com/vigilsat/vigil/services/ratelimit"
	"github.com/vigilsat/vigil/services/realtime"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		UserSvc     *user.Service
		PolicySvc   *policy.Service
		QuizSvc     *quiz.Service
		GameSvc     *game.Service
		TrainingSvc *training.Service
		FactSvc     *fact.Service
		ReportSvc   *report.Service
		Recorder    *audit.Recorder
		Hub         *realtime.Hub
		Limiter     ratelimit.Limiter
	}

	Server struct {
		ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.Conf

	s.app.HideBanner = true
	s.app.Logger.SetLevel(log.OFF)
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, conf.IsProduction(), s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if !s.DisableReqLogs {
		s.app.Use(requestLogger(s.Logger))
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.Secure())
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{conf.FrontendBaseURL},
		AllowCredentials: true,
	}))
	if conf.Server.BodyLimit != "" {
		s.app.Use(middleware.BodyLimit(conf.Server.BodyLimit))
	}

	s.app.GET("/health", s.health)

	auth := authenticator{conf: conf, usrSvc: s.UserSvc}
	if !conf.IsProduction() && !conf.TestMode {
		s.app.Use(auth.demoIdentity)
	}
	registerRealtimeAPI(s.app, auth, s.Hub, conf)

	api := s.app.Group("/api")
	if s.Limiter != nil {
		api.Use(rateLimit(s.Limiter))
	}
	if s.Recorder != nil {
		api.Use(auditHook(s.Recorder))
	}
	jwt := auth.middleware()

	registerAuthAPI(api, jwt, s.UserSvc, s.ReportSvc, s.Validate, conf)
	registerPolicyAPI(api, jwt, s.PolicySvc, s.Hub)
	registerQuizAPI(api, jwt, s.QuizSvc, s.Hub)
	registerGameAPI(api, jwt, s.GameSvc, s.Hub)
	registerTrainingAPI(api, jwt, s.TrainingSvc)
	registerFactAPI(api, jwt, s.FactSvc)
	registerReportAPI(api, jwt, s.ReportSvc, s.Recorder)
}

// Start blocks serving HTTP. A failure is reported on Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.Conf.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// Shutdown stops accepting requests, waits for in-flight ones then drains pending audit inserts.
func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	if err := s.app.Shutdown(ctx); err != nil {
		return err
	}
	if s.Recorder != nil {
		return errors.Wrap(s.Recorder.Wait(ctx), "waiting for audit logs")
	}
	return nil
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":    "OK",
		"timestamp": time.Now().UTC(),
		"service":   s.Conf.AppName,
	})
}
