package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	echoapi "github.com/MagetoJ/EduKE-sub001/apps/api/echo"
	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/account"
	"github.com/MagetoJ/EduKE-sub001/core/auth"
	"github.com/MagetoJ/EduKE-sub001/core/token"
	emailsvc "github.com/MagetoJ/EduKE-sub001/services/email"
	sendgridmail "github.com/MagetoJ/EduKE-sub001/services/email/sendgrid"
	sesmail "github.com/MagetoJ/EduKE-sub001/services/email/ses"
	logsvc "github.com/MagetoJ/EduKE-sub001/services/logger"
	"github.com/MagetoJ/EduKE-sub001/services/metrics"
	"github.com/MagetoJ/EduKE-sub001/services/ratelimit"
	"github.com/MagetoJ/EduKE-sub001/storage/database"
	sqlxrepos "github.com/MagetoJ/EduKE-sub001/storage/database/sqlx"
)

const dbPingAttempts = 20

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	mailSvc, err := newMailService(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up mail service: %v", err), err)
	}

	limiter, closeLimiter := newLimiter(conf)
	defer closeLimiter()

	mtrcs := metrics.New("eduke")

	validate, translator := core.NewValidator()
	account.RegisterValidators(validate, translator)

	accRepo := sqlxrepos.NewAccountRepository(db)
	issuer := token.NewIssuer(
		token.OptionsFromConfig(conf),
		accRepo,
		sqlxrepos.NewTokenRepository(db),
		sqlxrepos.NewSessionRepository(db),
	)
	authSvc := auth.NewService(auth.Deps{
		Conf:     conf,
		Validate: validate,
		Accounts: accRepo,
		Issuer:   issuer,
		Mail:     mailSvc,
		Logger:   logger,
		Events:   mtrcs,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			AuthSvc:    authSvc,
			Validate:   validate,
			Translator: translator,
			Limiter:    limiter,
			Metrics:    mtrcs,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(db.DB, dbPingAttempts); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = database.Migrate(db.DB, conf.Database.Engine); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newMailService(conf *core.Config, logger core.Logger) (core.EmailService, error) {
	switch conf.Mail.Provider {
	case "sendgrid":
		return sendgridmail.NewService(conf, logger), nil
	case "ses":
		return sesmail.NewService(context.Background(), conf, logger)
	case "console", "":
		return emailsvc.NewConsoleService(conf, logger), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", conf.Mail.Provider)
	}
}

// newLimiter shares counters through Redis when it is configured, so that every API
// instance sees the same attempts.
func newLimiter(conf *core.Config) (ratelimit.Limiter, func()) {
	limit, window := conf.Auth.RateLimit, conf.Auth.RateWindow
	if conf.Redis.Address == "" {
		return ratelimit.NewMemoryLimiter(limit, window), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	return ratelimit.NewRedisLimiter(client, "eduke:ratelimit:", limit, window), func() { _ = client.Close() }
}
