package database

import (
	"database/sql"
	"embed"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/MagetoJ/EduKE-sub001/core"
)

const (
	EnginePostgres = "postgres"
	EnginePgx      = "pgx"
	EngineMySQL    = "mysql"
	EngineSQLite   = "sqlite3"
)

//go:embed migrations
var migrationsFS embed.FS

func dsn(dbName string, conf *core.Config) (string, error) {
	db := conf.Database
	switch db.Engine {
	case EnginePostgres, EnginePgx:
		sslMode := "require"
		if db.DisableTLS {
			sslMode = "disable"
		}
		q := make(url.Values)
		q.Set("sslmode", sslMode)
		q.Set("timezone", "utc")

		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(db.User, db.Password),
			Host:     db.Address(),
			Path:     dbName,
			RawQuery: q.Encode(),
		}
		return u.String(), nil
	case EngineMySQL:
		mc := mysql.NewConfig()
		mc.User = db.User
		mc.Passwd = db.Password
		mc.Net = "tcp"
		mc.Addr = db.Address()
		mc.DBName = dbName
		mc.ParseTime = true
		mc.ClientFoundRows = true // RowsAffected counts matched rows
		mc.Loc = time.UTC
		if !db.DisableTLS {
			mc.TLSConfig = "true"
		}
		return mc.FormatDSN(), nil
	case EngineSQLite:
		return "file:" + db.Path + "?_foreign_keys=on&_busy_timeout=5000", nil
	}
	return "", errors.Errorf("unsupported database engine %q", db.Engine)
}

// Open connects to the configured database. Nothing is sent to the server until the first query.
func Open(conf *core.Config) (*sqlx.DB, error) {
	src, err := dsn(conf.Database.Name, conf)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(conf.Database.Engine, src)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if conf.Database.Engine == EngineSQLite {
		// one writer; also keeps ":memory:" databases alive across queries
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// Ping waits for the database to be ready. Waits 100ms longer between each attempt.
func Ping(db *sql.DB, maxAttempts int) error {
	var err error
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func dbExists(db *sql.DB, query, name string) (bool, error) {
	var exists bool
	rows, err := db.Query(query, name)
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		exists = true
	}
	return exists, rows.Err()
}

// CreateIfNotExist creates the application database on a postgres or mysql server.
// SQLite databases are created when opened.
func CreateIfNotExist(conf *core.Config) error {
	var (
		maintenanceDB, existsQuery, createQuery string
	)
	switch conf.Database.Engine {
	case EnginePostgres, EnginePgx:
		maintenanceDB = "postgres"
		existsQuery = "SELECT 1 FROM pg_database WHERE datname = $1"
		createQuery = "CREATE DATABASE " + pq.QuoteIdentifier(conf.Database.Name)
	case EngineMySQL:
		existsQuery = "SELECT 1 FROM information_schema.schemata WHERE schema_name = ?"
		createQuery = "CREATE DATABASE `" + conf.Database.Name + "`"
	default:
		return nil
	}

	src, err := dsn(maintenanceDB, conf)
	if err != nil {
		return err
	}
	db, err := sql.Open(conf.Database.Engine, src)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = Ping(db, 30); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	exists, err := dbExists(db, existsQuery, conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !exists {
		if _, err = db.Exec(createQuery); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

func migrationsDir(engine string) (dialect, dir string, err error) {
	switch engine {
	case EnginePostgres, EnginePgx:
		return "postgres", "migrations/postgres", nil
	case EngineMySQL:
		return "mysql", "migrations/mysql", nil
	case EngineSQLite:
		return "sqlite3", "migrations/sqlite3", nil
	}
	return "", "", errors.Errorf("unsupported database engine %q", engine)
}

// RunMigrations runs a goose command (up, down, status, version, redo, reset...) against db.
func RunMigrations(db *sql.DB, engine, command string, args ...string) error {
	dialect, dir, err := migrationsDir(engine)
	if err != nil {
		return err
	}
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(dialect); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	if err := goose.Run(command, db, dir, args...); err != nil {
		return errors.Wrapf(err, "running migration command %q", command)
	}
	return nil
}

func Migrate(db *sql.DB, engine string) error {
	return RunMigrations(db, engine, "up")
}
