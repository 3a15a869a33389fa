package dig_container

import (
	"context"
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

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
	logsvc "github.com/vigilsat/vigil/services/logger"
	"github.com/vigilsat/vigil/services/ratelimit"
	"github.com/vigilsat/vigil/services/realtime"
	"github.com/vigilsat/vigil/storage/database"
	sqlxrepos "github.com/vigilsat/vigil/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// ServerParams gathers everything the API server depends on.
type ServerParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

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

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewZapLogger(conf, "api"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewZapLogger(conf, "db"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	setUp := func(ctx context.Context) (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(ctx, db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp(context.Background())
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newEmailTemplates(conf *core.Config) (*core.EmailTemplates, error) {
	return core.ParseEmailTemplates(!conf.Debug /* strict */)
}

func newEmailService(conf *core.Config, templates *core.EmailTemplates, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(conf, templates, logger)
	}
	return emailsvc.NewSendgridService(conf, templates, logger)
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)
	return validate, translator
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		UserSvc:     p.UserSvc,
		PolicySvc:   p.PolicySvc,
		QuizSvc:     p.QuizSvc,
		GameSvc:     p.GameSvc,
		TrainingSvc: p.TrainingSvc,
		FactSvc:     p.FactSvc,
		ReportSvc:   p.ReportSvc,
		Recorder:    p.Recorder,
		Hub:         p.Hub,
		Limiter:     p.Limiter,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	return build(core.NewConfig, newDB)
}

// build wires the whole application around the given config & database constructors.
func build(newConfig interface{}, newDatabase interface{}) *dig.Container {
	c := dig.New()

	// ambient
	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDatabase))
	must(c.Provide(newEmailTemplates))
	must(c.Provide(newEmailService))
	must(c.Provide(newValidator))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewPolicyRepository, dig.As(new(policy.Repository))))
	must(c.Provide(sqlxrepos.NewQuizRepository, dig.As(new(quiz.Repository))))
	must(c.Provide(sqlxrepos.NewGameRepository, dig.As(new(game.Repository))))
	must(c.Provide(sqlxrepos.NewTrainingRepository, dig.As(new(training.Repository))))
	must(c.Provide(sqlxrepos.NewFactRepository, dig.As(new(fact.Repository))))
	must(c.Provide(sqlxrepos.NewReportRepository, dig.As(new(report.Repository))))
	must(c.Provide(sqlxrepos.NewAuditRepository, dig.As(new(audit.Repository), new(report.ActivityLister))))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(policy.NewService))
	must(c.Provide(quiz.NewService))
	must(c.Provide(game.NewService))
	must(c.Provide(training.NewService))
	must(c.Provide(fact.NewService))
	must(c.Provide(report.NewService))
	must(c.Provide(audit.NewRecorder))
	must(c.Provide(realtime.NewHub))
	must(c.Provide(ratelimit.New))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
