package auth

import (
	"context"

	"github.com/pkg/errors"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/account"
	"github.com/MagetoJ/EduKE-sub001/core/authz"
	"github.com/MagetoJ/EduKE-sub001/core/token"
)

// target loads the account actor wants to manage. Missing accounts and accounts of
// another school are both reported as a denial.
func (svc *Service) target(ctx context.Context, actor account.Principal, id string) (account.Account, error) {
	if !authz.Allows(&actor, authz.ManageSchool) {
		return account.Account{}, core.ErrAuthorizationDenied
	}
	acc, err := svc.accounts.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return account.Account{}, core.ErrAuthorizationDenied
		}
		return account.Account{}, errors.Wrap(err, "finding account by ID")
	}
	if acc.IsSuperAdmin() {
		if actor.Role != account.RoleSuperAdmin {
			return account.Account{}, core.ErrAuthorizationDenied
		}
	} else if !actor.CanActInTenant(acc.TenantID) {
		return account.Account{}, core.ErrAuthorizationDenied
	}
	return acc, nil
}

// CreateAccount adds an account to a school with a temporary password. The new account
// must change it at first login. Admins create accounts in their own school only.
func (svc *Service) CreateAccount(ctx context.Context, actor account.Principal, na account.NewAccount) (acc account.Account, err error) {
	defer func() {
		svc.record("create_account", err, map[string]interface{}{"by": actor.AccountID, "account": acc.ID, "role": na.Role})
	}()

	if !authz.Allows(&actor, authz.ManageSchool) {
		return account.Account{}, core.ErrAuthorizationDenied
	}
	if err := na.Validate(svc.validate); err != nil {
		return account.Account{}, err
	}
	if na.TenantID == "" {
		na.TenantID = actor.TenantID
	}
	if na.Role == account.RoleSuperAdmin {
		if actor.Role != account.RoleSuperAdmin {
			return account.Account{}, core.ErrAuthorizationDenied
		}
		na.TenantID = ""
	} else if na.TenantID == "" || !actor.CanActInTenant(na.TenantID) {
		return account.Account{}, core.ErrAuthorizationDenied
	}

	ts := now()
	acc = account.Account{
		TenantID:           na.TenantID,
		Name:               na.Name,
		Email:              na.Email,
		Phone:              na.Phone,
		Role:               na.Role,
		MustChangePassword: true,
		CreatedAt:          ts,
		UpdatedAt:          ts,
	}
	if err := acc.SetPassword(na.TempPassword); err != nil {
		return account.Account{}, errors.Wrap(err, "hashing password")
	}
	acc, err = svc.accounts.CreateAccount(ctx, acc)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrEmailExists):
			return account.Account{}, core.ErrEmailExists
		case errors.Is(err, account.ErrSchoolNotFound):
			return account.Account{}, core.ErrAuthorizationDenied
		}
		return account.Account{}, errors.Wrap(err, "creating account")
	}

	tok, err := svc.issuer.Issue(ctx, acc.ID, token.KindEmailVerification, 0)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "issuing verification token")
	}
	svc.sendVerification(acc, tok)
	return acc, nil
}

// UpdateRole changes the role of an account of actor's school. Only super admins grant or
// take away the super admin role, and nobody changes their own role.
func (svc *Service) UpdateRole(ctx context.Context, actor account.Principal, id string, role account.Role) (acc account.Account, err error) {
	defer func() {
		svc.record("update_role", err, map[string]interface{}{"by": actor.AccountID, "account": id, "role": role})
	}()

	if !role.IsValid() {
		return account.Account{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: "invalid role"})
	}
	acc, err = svc.target(ctx, actor, id)
	if err != nil {
		return account.Account{}, err
	}
	if acc.ID == actor.AccountID || (role == account.RoleSuperAdmin && actor.Role != account.RoleSuperAdmin) {
		return account.Account{}, core.ErrAuthorizationDenied
	}
	if acc.Role == role {
		return acc, nil
	}
	if role == account.RoleSuperAdmin {
		acc.TenantID = ""
	} else if acc.TenantID == "" {
		// a super admin losing that role has no school to fall back to
		return account.Account{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: "account has no school"})
	}
	acc.Role = role
	acc.UpdatedAt = now()
	acc, err = svc.accounts.UpdateAccount(ctx, acc)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "updating account")
	}
	return acc, nil
}

// DisableAccount soft-disables an account and ends its sessions. Accounts are never deleted.
func (svc *Service) DisableAccount(ctx context.Context, actor account.Principal, id string) (err error) {
	defer func() { svc.record("disable_account", err, map[string]interface{}{"by": actor.AccountID, "account": id}) }()

	acc, err := svc.target(ctx, actor, id)
	if err != nil {
		return err
	}
	if acc.ID == actor.AccountID {
		return core.ErrAuthorizationDenied
	}
	return svc.disable(ctx, acc)
}

func (svc *Service) disable(ctx context.Context, acc account.Account) error {
	if !acc.Disabled {
		acc.Disabled = true
		acc.UpdatedAt = now()
		if _, err := svc.accounts.UpdateAccount(ctx, acc); err != nil {
			return errors.Wrap(err, "updating account")
		}
	}
	return svc.issuer.RevokeAll(ctx, acc.ID, "")
}

// Operator actions, run from the admin command line without a principal.

// SetTemporaryPassword gives the account a new password that must be changed at next login,
// and ends its sessions.
func (svc *Service) SetTemporaryPassword(ctx context.Context, email, pwd string) error {
	if err := account.CheckPassword(pwd, account.MinForcedChangePasswordLen); err != nil {
		return err
	}
	acc, err := svc.accounts.GetAccountByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err := acc.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	acc.MustChangePassword = true
	acc.UpdatedAt = now()
	if _, err := svc.accounts.UpdateAccount(ctx, acc); err != nil {
		return errors.Wrap(err, "updating account")
	}
	if err := svc.issuer.Invalidate(ctx, acc.ID, token.KindPasswordReset); err != nil {
		return err
	}
	return svc.issuer.RevokeAll(ctx, acc.ID, "")
}

// CreateSuperAdmin adds an account spanning every school.
func (svc *Service) CreateSuperAdmin(ctx context.Context, name, email, pwd string) (account.Account, error) {
	email = core.CleanString(email, true /* lower */)
	if err := svc.validate.Var(email, "required,email"); err != nil {
		return account.Account{}, core.NewValidationError(nil, core.FieldError{Field: "email", Error: "enter a valid email address"})
	}
	if err := account.CheckPassword(pwd, account.MinPasswordLen, name, email); err != nil {
		return account.Account{}, err
	}
	ts := now()
	acc := account.Account{
		Name:          core.CleanString(name),
		Email:         email,
		Role:          account.RoleSuperAdmin,
		EmailVerified: true,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	if err := acc.SetPassword(pwd); err != nil {
		return account.Account{}, errors.Wrap(err, "hashing password")
	}
	acc, err := svc.accounts.CreateAccount(ctx, acc)
	if errors.Is(err, account.ErrEmailExists) {
		return account.Account{}, core.ErrEmailExists
	}
	return acc, err
}

// DisableAccountByEmail soft-disables an account and ends its sessions.
func (svc *Service) DisableAccountByEmail(ctx context.Context, email string) error {
	acc, err := svc.accounts.GetAccountByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	return svc.disable(ctx, acc)
}

// SetSchoolStatus suspends or reactivates a school. Members of a suspended school cannot log in.
func (svc *Service) SetSchoolStatus(ctx context.Context, schoolID string, status account.SchoolStatus) error {
	if status != account.SchoolActive && status != account.SchoolSuspended {
		return errors.Errorf("unknown school status %q", status)
	}
	return svc.accounts.UpdateSchoolStatus(ctx, schoolID, status)
}
