package testutil

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MagetoJ/EduKE-sub001/core/account"
)

func init() {
	account.HashCost = bcrypt.MinCost
}

// AccountOpts customizes accounts built by CreateAccount.
type AccountOpts struct {
	Name               string
	Password           string
	MustChangePassword bool
	EmailVerified      bool
	Disabled           bool
}

func CreateSchool(t *testing.T, repo account.Repository, name, adminEmail, adminPwd string) (account.School, account.Account) {
	t.Helper()
	tstamp := time.Now().UTC()
	school := account.School{
		Name:       name,
		Curriculum: account.DefaultCurriculum,
		Status:     account.SchoolActive,
		CreatedAt:  tstamp,
	}
	admin := account.Account{
		Name:          name + " Admin",
		Email:         adminEmail,
		Role:          account.RoleAdmin,
		EmailVerified: true,
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
	}
	if err := admin.SetPassword(adminPwd); err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	school, admin, err := repo.CreateSchool(context.Background(), school, admin)
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return school, admin
}

func CreateAccount(t *testing.T, repo account.Repository, tenantID, email string, role account.Role, opts ...AccountOpts) account.Account {
	t.Helper()
	var opt AccountOpts
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Name == "" {
		opt.Name = "Test " + string(role)
	}
	tstamp := time.Now().UTC()
	acc := account.Account{
		TenantID:           tenantID,
		Name:               opt.Name,
		Email:              email,
		Role:               role,
		MustChangePassword: opt.MustChangePassword,
		EmailVerified:      opt.EmailVerified,
		Disabled:           opt.Disabled,
		CreatedAt:          tstamp,
		UpdatedAt:          tstamp,
	}
	if opt.Password != "" {
		if err := acc.SetPassword(opt.Password); err != nil {
			t.Fatalf("CreateAccount() failed: %v", err)
		}
	}
	acc, err := repo.CreateAccount(context.Background(), acc)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return acc
}

// MockNow replaces *nowFunc with a clock frozen at `at` until the test ends.
// The returned function moves the clock.
func MockNow(t *testing.T, nowFunc *func() time.Time, at time.Time) func(time.Time) {
	t.Helper()
	orig := *nowFunc
	current := at
	*nowFunc = func() time.Time { return current }
	t.Cleanup(func() { *nowFunc = orig })
	return func(to time.Time) { current = to }
}
