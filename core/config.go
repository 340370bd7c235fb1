package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail string
		RollbarToken     string
		WorkDir          string

		Server   ServerConfig
		Auth     AuthConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Mail     MailConfig
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugAddress    string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	AuthConfig struct {
		AccessTokenTTL        time.Duration
		EphemeralSessionTTL   time.Duration
		PersistentSessionTTL  time.Duration
		PasswordResetTTL      time.Duration
		EmailVerificationTTL  time.Duration
		RateLimit             int
		RateWindow            time.Duration
		ClientRequestTimeout  time.Duration
		DisableSecurityEmails bool
	}

	DatabaseConfig struct {
		Engine     string // postgres | pgx | mysql | sqlite3
		Host       string
		Port       int
		Name       string
		User       string
		Password   string
		DisableTLS bool
		Path       string // sqlite3 only
	}

	RedisConfig struct {
		Address  string
		Password string
		DB       int
	}

	MailConfig struct {
		Provider    string // console | sendgrid | ses
		SendgridKey string
		AWSRegion   string
	}
)

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewConfig loads the configuration from defaults, `config/.env.<env>` (if present) and
// the environment, in that order of precedence (lowest first).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "EduKE")
	v.SetDefault("secretKey", "8c1j$e3)x7!q2v^0rfo*b#y@l4wz_sm9u&hd5kgt6npa+")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 5*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("auth.accessTokenTTL", 15*time.Minute)
	v.SetDefault("auth.ephemeralSessionTTL", 12*time.Hour)
	v.SetDefault("auth.persistentSessionTTL", 30*24*time.Hour)
	v.SetDefault("auth.passwordResetTTL", time.Hour)
	v.SetDefault("auth.emailVerificationTTL", 24*time.Hour)
	v.SetDefault("auth.rateLimit", 10)
	v.SetDefault("auth.rateWindow", 15*time.Minute)
	v.SetDefault("auth.clientRequestTimeout", 15*time.Second)
	v.SetDefault("auth.disableSecurityEmails", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "eduke")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "eduke.db")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("mail.provider", "console")
	v.SetDefault("mail.sendgridKey", "")
	v.SetDefault("mail.awsRegion", "eu-west-1")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		RollbarToken:     v.GetString("rollbarToken"),
		WorkDir:          wd,
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugAddress:    v.GetString("server.debugAddress"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Auth: AuthConfig{
			AccessTokenTTL:        v.GetDuration("auth.accessTokenTTL"),
			EphemeralSessionTTL:   v.GetDuration("auth.ephemeralSessionTTL"),
			PersistentSessionTTL:  v.GetDuration("auth.persistentSessionTTL"),
			PasswordResetTTL:      v.GetDuration("auth.passwordResetTTL"),
			EmailVerificationTTL:  v.GetDuration("auth.emailVerificationTTL"),
			RateLimit:             v.GetInt("auth.rateLimit"),
			RateWindow:            v.GetDuration("auth.rateWindow"),
			ClientRequestTimeout:  v.GetDuration("auth.clientRequestTimeout"),
			DisableSecurityEmails: v.GetBool("auth.disableSecurityEmails"),
		},
		Database: DatabaseConfig{
			Engine:     v.GetString("database.engine"),
			Host:       v.GetString("database.host"),
			Port:       v.GetInt("database.port"),
			Name:       v.GetString("database.name"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			DisableTLS: v.GetBool("database.disableTLS"),
			Path:       v.GetString("database.path"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Mail: MailConfig{
			Provider:    v.GetString("mail.provider"),
			SendgridKey: v.GetString("mail.sendgridKey"),
			AWSRegion:   v.GetString("mail.awsRegion"),
		},
	}
}

// NewTestConfig returns a config suitable for tests: debug off, test mode on, sqlite in memory.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.Env = "TEST"
	conf.SecretKey = "test-secret"
	conf.Database.Engine = "sqlite3"
	conf.Database.Path = ":memory:"
	conf.Mail.Provider = "console"
	conf.Redis.Address = ""
	return conf
}
