package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/MagetoJ/EduKE-sub001/core/account"
	"github.com/MagetoJ/EduKE-sub001/storage/database"
)

type schoolRow struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	Curriculum string    `db:"curriculum"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
}

type accountRow struct {
	ID                 string      `db:"id"`
	TenantID           null.String `db:"tenant_id"`
	Name               string      `db:"name"`
	Email              string      `db:"email"`
	Phone              string      `db:"phone"`
	Role               string      `db:"role"`
	PasswordHash       null.Bytes  `db:"password_hash"`
	MustChangePassword bool        `db:"must_change_password"`
	EmailVerified      bool        `db:"email_verified"`
	Disabled           bool        `db:"disabled"`
	CreatedAt          time.Time   `db:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at"`
	LastLogin          null.Time   `db:"last_login"`
}

const (
	schoolColumns  = "id, name, curriculum, status, created_at"
	accountColumns = "id, tenant_id, name, email, phone, role, password_hash, must_change_password, " +
		"email_verified, disabled, created_at, updated_at, last_login"
)

func toAccountRow(acc account.Account) accountRow {
	return accountRow{
		ID:                 acc.ID,
		TenantID:           null.NewString(acc.TenantID, acc.TenantID != ""),
		Name:               acc.Name,
		Email:              acc.Email,
		Phone:              acc.Phone,
		Role:               string(acc.Role),
		PasswordHash:       null.NewBytes(acc.PasswordHash, len(acc.PasswordHash) > 0),
		MustChangePassword: acc.MustChangePassword,
		EmailVerified:      acc.EmailVerified,
		Disabled:           acc.Disabled,
		CreatedAt:          acc.CreatedAt.UTC(),
		UpdatedAt:          acc.UpdatedAt.UTC(),
		LastLogin:          null.NewTime(acc.LastLogin.UTC(), !acc.LastLogin.IsZero()),
	}
}

func (r accountRow) account() account.Account {
	return account.Account{
		ID:                 r.ID,
		TenantID:           r.TenantID.String,
		Name:               r.Name,
		Email:              r.Email,
		Phone:              r.Phone,
		Role:               account.Role(r.Role),
		PasswordHash:       r.PasswordHash.Bytes,
		MustChangePassword: r.MustChangePassword,
		EmailVerified:      r.EmailVerified,
		Disabled:           r.Disabled,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
		LastLogin:          utcOrZero(r.LastLogin),
	}
}

func utcOrZero(t null.Time) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

type accountRepository struct {
	db *sqlx.DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) account.Repository {
	return &accountRepository{db: db}
}

// trapNoRowsErr maps "no rows" errors to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo *accountRepository) insertAccount(ctx context.Context, exec sqlx.ExtContext, acc account.Account) error {
	row := toAccountRow(acc)
	_, err := sqlx.NamedExecContext(ctx, exec,
		"INSERT INTO accounts ("+accountColumns+") VALUES (:id, :tenant_id, :name, :email, :phone, :role, "+
			":password_hash, :must_change_password, :email_verified, :disabled, :created_at, :updated_at, :last_login)",
		row)
	if database.IsUniqueViolation(err) {
		return account.ErrEmailExists
	}
	return errors.Wrap(err, "inserting account")
}

func (repo *accountRepository) emailTaken(ctx context.Context, q sqlx.QueryerContext, email, excludedID string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, repo.db.Rebind("SELECT COUNT(*) FROM accounts WHERE email = ? AND id <> ?"), email, excludedID)
	if err != nil {
		return false, errors.Wrap(err, "checking email uniqueness")
	}
	return n > 0, nil
}

func (repo *accountRepository) CreateSchool(ctx context.Context, school account.School, admin account.Account) (account.School, account.Account, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return account.School{}, account.Account{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	taken, err := repo.emailTaken(ctx, tx, admin.Email, "")
	if err != nil {
		return account.School{}, account.Account{}, err
	}
	if taken {
		return account.School{}, account.Account{}, account.ErrEmailExists
	}

	school.ID = uuid.New().String()
	school.CreatedAt = school.CreatedAt.UTC()
	_, err = tx.NamedExecContext(ctx,
		"INSERT INTO schools ("+schoolColumns+") VALUES (:id, :name, :curriculum, :status, :created_at)",
		schoolRow{
			ID:         school.ID,
			Name:       school.Name,
			Curriculum: school.Curriculum,
			Status:     string(school.Status),
			CreatedAt:  school.CreatedAt,
		})
	if err != nil {
		return account.School{}, account.Account{}, errors.Wrap(err, "inserting school")
	}

	admin.ID = uuid.New().String()
	admin.TenantID = school.ID
	if err = repo.insertAccount(ctx, tx, admin); err != nil {
		return account.School{}, account.Account{}, err
	}

	if err = tx.Commit(); err != nil {
		return account.School{}, account.Account{}, errors.Wrap(err, "committing transaction")
	}
	return school, admin, nil
}

func (repo *accountRepository) GetSchoolByID(ctx context.Context, id string) (account.School, error) {
	var row schoolRow
	err := repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT "+schoolColumns+" FROM schools WHERE id = ?"), id)
	if err != nil {
		return account.School{}, trapNoRowsErr(err, account.ErrSchoolNotFound, "finding school by ID")
	}
	return account.School{
		ID:         row.ID,
		Name:       row.Name,
		Curriculum: row.Curriculum,
		Status:     account.SchoolStatus(row.Status),
		CreatedAt:  row.CreatedAt.UTC(),
	}, nil
}

func (repo *accountRepository) UpdateSchoolStatus(ctx context.Context, id string, status account.SchoolStatus) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("UPDATE schools SET status = ? WHERE id = ?"), string(status), id)
	if err != nil {
		return errors.Wrap(err, "updating school status")
	}
	return checkAffected(res, account.ErrSchoolNotFound)
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	if acc.TenantID != "" {
		if _, err := repo.GetSchoolByID(ctx, acc.TenantID); err != nil {
			return account.Account{}, err
		}
	}
	taken, err := repo.emailTaken(ctx, repo.db, acc.Email, "")
	if err != nil {
		return account.Account{}, err
	}
	if taken {
		return account.Account{}, account.ErrEmailExists
	}

	acc.ID = uuid.New().String()
	if err := repo.insertAccount(ctx, repo.db, acc); err != nil {
		return account.Account{}, err
	}
	return acc, nil
}

func (repo *accountRepository) getAccount(ctx context.Context, where string, arg interface{}, msg string) (account.Account, error) {
	var row accountRow
	err := repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT "+accountColumns+" FROM accounts WHERE "+where+" = ?"), arg)
	if err != nil {
		return account.Account{}, trapNoRowsErr(err, account.ErrNotFound, msg)
	}
	return row.account(), nil
}

func (repo *accountRepository) GetAccountByID(ctx context.Context, id string) (account.Account, error) {
	return repo.getAccount(ctx, "id", id, "finding account by ID")
}

func (repo *accountRepository) GetAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	return repo.getAccount(ctx, "email", email, "finding account by email")
}

func (repo *accountRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("UPDATE accounts SET last_login = ? WHERE id = ?"), at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting lastLogin")
	}
	return checkAffected(res, account.ErrNotFound)
}

func (repo *accountRepository) UpdateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	orig, err := repo.GetAccountByID(ctx, acc.ID)
	if err != nil {
		return account.Account{}, err
	}
	if acc.Email != orig.Email {
		taken, err := repo.emailTaken(ctx, repo.db, acc.Email, acc.ID)
		if err != nil {
			return account.Account{}, err
		}
		if taken {
			return account.Account{}, account.ErrEmailExists
		}
	}
	acc.CreatedAt = orig.CreatedAt

	query, args, err := sqlx.Named(
		"UPDATE accounts SET tenant_id = :tenant_id, name = :name, email = :email, phone = :phone, role = :role, "+
			"password_hash = :password_hash, must_change_password = :must_change_password, "+
			"email_verified = :email_verified, disabled = :disabled, updated_at = :updated_at, last_login = :last_login "+
			"WHERE id = :id",
		toAccountRow(acc))
	if err != nil {
		return account.Account{}, errors.Wrap(err, "binding account")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		if database.IsUniqueViolation(err) {
			return account.Account{}, account.ErrEmailExists
		}
		return account.Account{}, errors.Wrap(err, "updating account")
	}
	return acc, nil
}

func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
