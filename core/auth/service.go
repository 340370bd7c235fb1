package auth

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/account"
	"github.com/MagetoJ/EduKE-sub001/core/token"
)

var NowFunc = time.Now // mockable

// Outcome tells a client which state a successful login lands in.
type Outcome string

const (
	OutcomeActive                 Outcome = "active"
	OutcomeRequiresPasswordChange Outcome = "requires_password_change"
)

func outcomeFor(acc account.Account) Outcome {
	if acc.MustChangePassword {
		return OutcomeRequiresPasswordChange
	}
	return OutcomeActive
}

type LoginResult struct {
	Outcome   Outcome
	Grant     token.Grant
	Principal account.Principal
}

// EventRecorder counts auth events by name and result ("ok" or an error code).
type EventRecorder interface {
	Record(event, result string)
}

type nopRecorder struct{}

func (nopRecorder) Record(string, string) {}

type Deps struct {
	Conf     *core.Config
	Validate *validator.Validate
	Accounts account.Repository
	Issuer   *token.Issuer
	Mail     core.EmailService
	Logger   core.Logger
	Events   EventRecorder
}

// Service is the server side session manager: it authenticates accounts, manages their
// sessions and credentials, and runs the out-of-band token flows.
type Service struct {
	conf     *core.Config
	validate *validator.Validate
	accounts account.Repository
	issuer   *token.Issuer
	mail     core.EmailService
	logger   core.Logger
	events   EventRecorder
}

func NewService(deps Deps) *Service {
	account.PrepareDummyHash()

	events := deps.Events
	if events == nil {
		events = nopRecorder{}
	}
	return &Service{
		conf:     deps.Conf,
		validate: deps.Validate,
		accounts: deps.Accounts,
		issuer:   deps.Issuer,
		mail:     deps.Mail,
		logger:   deps.Logger,
		events:   events,
	}
}

func now() time.Time { return NowFunc().UTC() }

// record counts the event and writes an audit line. Never pass secrets in fields.
func (svc *Service) record(event string, err error, fields map[string]interface{}) {
	result := "ok"
	if err != nil {
		result = "error"
		if ae, ok := core.AsAuthError(err); ok {
			result = string(ae.Code)
		}
	}
	svc.events.Record(event, result)
	if svc.logger != nil {
		if fields == nil {
			fields = make(map[string]interface{}, 1)
		}
		fields["result"] = result
		svc.logger.Info("auth."+event, fields)
	}
}

// Login checks credentials and starts a session. Unknown emails and wrong passwords are
// indistinguishable to the caller, in result and in timing. Account and school state are only
// revealed once the password is proven.
func (svc *Service) Login(ctx context.Context, email, password string, remember bool) (res LoginResult, err error) {
	email = core.CleanString(email, true /* lower */)
	defer func() { svc.record("login", err, map[string]interface{}{"email": email}) }()

	acc, err := svc.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, account.ErrNotFound) {
			return LoginResult{}, errors.Wrap(err, "finding account by email")
		}
		account.CompareDummyPassword(password)
		return LoginResult{}, core.ErrInvalidCredentials
	}
	if err := acc.CheckPassword(password); err != nil {
		return LoginResult{}, core.ErrInvalidCredentials
	}
	if acc.Disabled {
		return LoginResult{}, core.ErrAccountDisabled
	}
	if err := svc.checkTenant(ctx, acc); err != nil {
		return LoginResult{}, err
	}

	if err := svc.accounts.SetLastLogin(ctx, acc.ID, now()); err != nil {
		return LoginResult{}, errors.Wrap(err, "setting lastLogin")
	}
	grant, err := svc.issuer.StartSession(ctx, acc, remember)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "starting session")
	}
	return LoginResult{
		Outcome:   outcomeFor(acc),
		Grant:     grant,
		Principal: acc.Principal(grant.SessionID),
	}, nil
}

func (svc *Service) checkTenant(ctx context.Context, acc account.Account) error {
	if acc.IsSuperAdmin() {
		return nil
	}
	school, err := svc.accounts.GetSchoolByID(ctx, acc.TenantID)
	if err != nil {
		if errors.Is(err, account.ErrSchoolNotFound) {
			return core.ErrTenantInactive
		}
		return errors.Wrap(err, "finding school by ID")
	}
	if !school.IsActive() {
		return core.ErrTenantInactive
	}
	return nil
}

// Authenticate resolves an access token into a principal. The account is re-read on every
// call so role and password-change state are never stale.
func (svc *Service) Authenticate(ctx context.Context, accessToken string) (account.Principal, error) {
	sess, err := svc.issuer.ValidateOnly(ctx, accessToken)
	if err != nil {
		return account.Principal{}, err
	}
	acc, err := svc.accounts.GetAccountByID(ctx, sess.AccountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return account.Principal{}, core.ErrTokenInvalid
		}
		return account.Principal{}, errors.Wrap(err, "finding account by ID")
	}
	if acc.Disabled {
		return account.Principal{}, core.ErrAccountDisabled
	}
	if err := svc.checkTenant(ctx, acc); err != nil {
		return account.Principal{}, err
	}
	return acc.Principal(sess.ID), nil
}

// Refresh exchanges a refresh token for a new grant on the same session.
func (svc *Service) Refresh(ctx context.Context, refreshToken string) (res LoginResult, err error) {
	defer func() { svc.record("refresh", err, nil) }()

	grant, acc, err := svc.issuer.Refresh(ctx, refreshToken)
	if err != nil {
		return LoginResult{}, err
	}
	if err := svc.checkTenant(ctx, acc); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		Outcome:   outcomeFor(acc),
		Grant:     grant,
		Principal: acc.Principal(grant.SessionID),
	}, nil
}

// Logout ends the session. It never fails for an unknown or already ended session.
func (svc *Service) Logout(ctx context.Context, sessionID string) (err error) {
	defer func() { svc.record("logout", err, nil) }()
	return svc.issuer.Revoke(ctx, sessionID)
}

// ChangePassword sets a new password for the authenticated principal. It is the only
// operation open to a principal that must change its password, and it lifts that restriction.
// The principal's other sessions and outstanding reset links stop working.
func (svc *Service) ChangePassword(ctx context.Context, p account.Principal, newPassword string) (err error) {
	defer func() { svc.record("change_password", err, map[string]interface{}{"account": p.AccountID}) }()

	acc, err := svc.accounts.GetAccountByID(ctx, p.AccountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return core.ErrTokenInvalid
		}
		return errors.Wrap(err, "finding account by ID")
	}
	if acc.Disabled {
		return core.ErrAccountDisabled
	}
	if err := account.CheckPassword(newPassword, account.MinForcedChangePasswordLen); err != nil {
		return err
	}

	if err := svc.setPassword(ctx, &acc, newPassword); err != nil {
		return err
	}
	if err := svc.issuer.RevokeAll(ctx, acc.ID, p.SessionID); err != nil {
		return err
	}
	svc.sendPasswordChanged(acc)
	return nil
}

func (svc *Service) setPassword(ctx context.Context, acc *account.Account, pwd string) error {
	if err := acc.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	acc.MustChangePassword = false
	acc.UpdatedAt = now()
	if _, err := svc.accounts.UpdateAccount(ctx, *acc); err != nil {
		return errors.Wrap(err, "updating account")
	}
	return svc.issuer.Invalidate(ctx, acc.ID, token.KindPasswordReset)
}

// RequestPasswordReset emails a reset link if email belongs to an enabled account.
// The caller learns nothing about whether it does: the only errors returned are
// infrastructure failures, which must not be shown to the requester either.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) (err error) {
	email = core.CleanString(email, true /* lower */)
	defer func() { svc.record("request_password_reset", err, nil) }()

	acc, err := svc.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "finding account by email")
	}
	if acc.Disabled {
		return nil
	}
	tok, err := svc.issuer.Issue(ctx, acc.ID, token.KindPasswordReset, 0)
	if err != nil {
		return errors.Wrap(err, "issuing password reset token")
	}
	svc.sendPasswordReset(acc, tok)
	return nil
}

// ResetPassword sets a new password using a reset link. A weak password is refused before
// the token is spent so the link can be used again with a better one. Every session of the
// account ends.
func (svc *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) (err error) {
	defer func() { svc.record("reset_password", err, nil) }()

	if err := account.CheckPassword(newPassword, account.MinPasswordLen); err != nil {
		return err
	}
	accID, err := svc.issuer.ValidateAndConsume(ctx, resetToken, token.KindPasswordReset)
	if err != nil {
		return err
	}
	acc, err := svc.accounts.GetAccountByID(ctx, accID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return core.ErrTokenInvalid
		}
		return errors.Wrap(err, "finding account by ID")
	}
	if acc.Disabled {
		return core.ErrAccountDisabled
	}

	if err := svc.setPassword(ctx, &acc, newPassword); err != nil {
		return err
	}
	if err := svc.issuer.RevokeAll(ctx, acc.ID, ""); err != nil {
		return err
	}
	svc.sendPasswordChanged(acc)
	return nil
}

// VerifyEmail marks the account's email verified using a verification link.
func (svc *Service) VerifyEmail(ctx context.Context, verificationToken string) (err error) {
	defer func() { svc.record("verify_email", err, nil) }()

	accID, err := svc.issuer.ValidateAndConsume(ctx, verificationToken, token.KindEmailVerification)
	if err != nil {
		return err
	}
	acc, err := svc.accounts.GetAccountByID(ctx, accID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return core.ErrTokenInvalid
		}
		return errors.Wrap(err, "finding account by ID")
	}
	if acc.EmailVerified {
		return nil
	}
	acc.EmailVerified = true
	acc.UpdatedAt = now()
	if _, err := svc.accounts.UpdateAccount(ctx, acc); err != nil {
		return errors.Wrap(err, "updating account")
	}
	return nil
}

// RegisterSchool creates a school and its administrator, then emails a verification link.
func (svc *Service) RegisterSchool(ctx context.Context, ns account.NewSchool) (school account.School, admin account.Account, err error) {
	defer func() {
		svc.record("register_school", err, map[string]interface{}{"school": school.ID, "email": ns.Email})
	}()

	if err := ns.Validate(svc.validate); err != nil {
		return account.School{}, account.Account{}, err
	}

	ts := now()
	school = account.School{
		Name:       ns.SchoolName,
		Curriculum: ns.Curriculum,
		Status:     account.SchoolActive,
		CreatedAt:  ts,
	}
	admin = account.Account{
		Name:      ns.AdminName,
		Email:     ns.Email,
		Phone:     ns.Phone,
		Role:      account.RoleAdmin,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := admin.SetPassword(ns.Password); err != nil {
		return account.School{}, account.Account{}, errors.Wrap(err, "hashing password")
	}

	school, admin, err = svc.accounts.CreateSchool(ctx, school, admin)
	if err != nil {
		if errors.Is(err, account.ErrEmailExists) {
			return account.School{}, account.Account{}, core.ErrEmailExists
		}
		return account.School{}, account.Account{}, errors.Wrap(err, "creating school")
	}

	tok, err := svc.issuer.Issue(ctx, admin.ID, token.KindEmailVerification, 0)
	if err != nil {
		return account.School{}, account.Account{}, errors.Wrap(err, "issuing verification token")
	}
	svc.sendVerification(admin, tok)
	return school, admin, nil
}
