package account

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("account not found")
	ErrSchoolNotFound = errors.New("school not found")
	ErrEmailExists    = errors.New("an account with this email already exists")
)

// Repository is the credential store.
// Emails are stored lower-cased and are unique across all schools.
type Repository interface {
	// CreateSchool stores the school and its administrator atomically: either both exist afterwards or neither.
	CreateSchool(ctx context.Context, school School, admin Account) (School, Account, error)
	GetSchoolByID(ctx context.Context, id string) (School, error)
	UpdateSchoolStatus(ctx context.Context, id string, status SchoolStatus) error
	CreateAccount(ctx context.Context, acc Account) (Account, error)
	GetAccountByID(ctx context.Context, id string) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	SetLastLogin(ctx context.Context, id string, at time.Time) error
	// UpdateAccount overwrites every mutable field of the stored account with acc's.
	UpdateAccount(ctx context.Context, acc Account) (Account, error)
}
