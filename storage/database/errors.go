package database

import (
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	pgUniqueViolation   = "23505"
	mysqlDuplicateEntry = 1062
)

// IsUniqueViolation reports whether err is a unique constraint violation, whatever the driver.
func IsUniqueViolation(err error) bool {
	var (
		pqErr     *pq.Error
		pgErr     *pgconn.PgError
		mysqlErr  *mysql.MySQLError
		sqliteErr sqlite3.Error
	)
	switch {
	case errors.As(err, &pqErr):
		return pqErr.Code == pgUniqueViolation
	case errors.As(err, &pgErr):
		return pgErr.Code == pgUniqueViolation
	case errors.As(err, &mysqlErr):
		return mysqlErr.Number == mysqlDuplicateEntry
	case errors.As(err, &sqliteErr):
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
