package main

import (
	"log"
	"os"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/account"
	"github.com/MagetoJ/EduKE-sub001/core/auth"
	"github.com/MagetoJ/EduKE-sub001/core/token"
	emailsvc "github.com/MagetoJ/EduKE-sub001/services/email"
	logsvc "github.com/MagetoJ/EduKE-sub001/services/logger"
	"github.com/MagetoJ/EduKE-sub001/storage/database"
	sqlxrepos "github.com/MagetoJ/EduKE-sub001/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(database.Ping(db.DB, 5))

	// set up services
	validate, translator := core.NewValidator()
	account.RegisterValidators(validate, translator)
	accRepo := sqlxrepos.NewAccountRepository(db)
	issuer := token.NewIssuer(
		token.OptionsFromConfig(conf),
		accRepo,
		sqlxrepos.NewTokenRepository(db),
		sqlxrepos.NewSessionRepository(db),
	)
	// operator actions send no mail
	authSvc := auth.NewService(auth.Deps{
		Conf:     conf,
		Validate: validate,
		Accounts: accRepo,
		Issuer:   issuer,
		Mail:     emailsvc.NewConsoleService(conf, nil),
		Logger:   logsvc.NewRollbarLogger(logger, conf),
	})

	// start CLI
	cli := commandLine{
		db:      db.DB,
		engine:  conf.Database.Engine,
		authSvc: authSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
