package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/fact"
	"github.com/vigilsat/vigil/core/user"
	emailsvc "github.com/vigilsat/vigil/services/email"
	logsvc "github.com/vigilsat/vigil/services/logger"
	"github.com/vigilsat/vigil/storage/database"
	sqlxrepos "github.com/vigilsat/vigil/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(logsvc.NewZapLogger(conf, "admin"), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	templates, err := core.ParseEmailTemplates(false /* strict */)
	if err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}
	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db: db.DB,
		usrSvc: user.NewService(
			sqlxrepos.NewUserRepository(db),
			emailsvc.NewConsoleService(conf, templates, logger),
			validate,
			conf,
		),
		factSvc: fact.NewService(sqlxrepos.NewFactRepository(db), validate),
		out:     os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
