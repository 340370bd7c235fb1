package auth_test

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/account"
	"github.com/MagetoJ/EduKE-sub001/core/auth"
	"github.com/MagetoJ/EduKE-sub001/core/authz"
	"github.com/MagetoJ/EduKE-sub001/core/token"
	"github.com/MagetoJ/EduKE-sub001/services/email"
	"github.com/MagetoJ/EduKE-sub001/storage/database/inmem"
	"github.com/MagetoJ/EduKE-sub001/tests"
)

type eventsMock struct {
	mu     sync.Mutex
	counts map[string]int
}

func (e *eventsMock) Record(event, result string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.counts == nil {
		e.counts = make(map[string]int)
	}
	e.counts[event+":"+result]++
}

func (e *eventsMock) count(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[key]
}

type testEnv struct {
	svc    *auth.Service
	repo   account.Repository
	iss    *token.Issuer
	mail   *emailsvc.ConsoleServiceMock
	events *eventsMock
	school account.School
	admin  account.Account
}

func newValidator() *validator.Validate {
	validate, translator := core.NewValidator()
	account.RegisterValidators(validate, translator)
	return validate
}

func setup(t *testing.T) *testEnv {
	conf := core.NewTestConfig()
	db := inmemdb.Open()
	repo := inmemdb.NewAccountRepository(db)
	iss := token.NewIssuer(token.OptionsFromConfig(conf), repo, inmemdb.NewTokenRepository(db), inmemdb.NewSessionRepository(db))
	mail := emailsvc.NewConsoleServiceMock(conf)
	events := &eventsMock{}

	svc := auth.NewService(auth.Deps{
		Conf:     conf,
		Validate: newValidator(),
		Accounts: repo,
		Issuer:   iss,
		Mail:     mail,
		Events:   events,
	})
	school, admin := testutil.CreateSchool(t, repo, "Green Hills Academy", "admin@greenhills.ac.ke", "admin-pass-2024")
	return &testEnv{svc: svc, repo: repo, iss: iss, mail: mail, events: events, school: school, admin: admin}
}

var tokenRegexp = regexp.MustCompile(`token=([0-9a-f]{64})`)

func tokenFromMail(t *testing.T, mail *emailsvc.ConsoleServiceMock, to string) string {
	t.Helper()
	msg, ok := mail.LastMessageTo(to)
	require.True(t, ok, "no email sent to %s", to)
	m := tokenRegexp.FindStringSubmatch(msg.TextContent)
	require.Len(t, m, 2, "no token in email to %s", to)
	return m[1]
}

func TestService_Login(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateAccount(t, env.repo, env.school.ID, "t@x.com", account.RoleTeacher, testutil.AccountOpts{Password: "teacher-pwd"})
	testutil.CreateAccount(t, env.repo, env.school.ID, "off@x.com", account.RoleStudent, testutil.AccountOpts{Password: "student-pwd", Disabled: true})

	t.Run("ok", func(t *testing.T) {
		res, err := env.svc.Login(ctx, "  T@X.com ", "teacher-pwd", false)
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeActive, res.Outcome)
		assert.Equal(t, teacher.ID, res.Principal.AccountID)
		assert.Equal(t, env.school.ID, res.Principal.TenantID)
		assert.Equal(t, account.RoleTeacher, res.Principal.Role)
		assert.NotEmpty(t, res.Grant.AccessToken)
		assert.NotEmpty(t, res.Grant.RefreshToken)
		assert.False(t, res.Grant.Persistent)

		acc, err := env.repo.GetAccountByID(ctx, teacher.ID)
		require.NoError(t, err)
		assert.False(t, acc.LastLogin.IsZero())
	})

	t.Run("remember me", func(t *testing.T) {
		res, err := env.svc.Login(ctx, "t@x.com", "teacher-pwd", true)
		require.NoError(t, err)
		assert.True(t, res.Grant.Persistent)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		_, err1 := env.svc.Login(ctx, "t@x.com", "nope-nope", false)
		_, err2 := env.svc.Login(ctx, "ghost@x.com", "nope-nope", false)
		assert.ErrorIs(t, err1, core.ErrInvalidCredentials)
		assert.Equal(t, err1, err2)
	})

	t.Run("disabled", func(t *testing.T) {
		_, err := env.svc.Login(ctx, "off@x.com", "student-pwd", false)
		assert.ErrorIs(t, err, core.ErrAccountDisabled)

		// state is not revealed without the password
		_, err = env.svc.Login(ctx, "off@x.com", "wrong-pwd", false)
		assert.ErrorIs(t, err, core.ErrInvalidCredentials)
	})

	t.Run("suspended school", func(t *testing.T) {
		require.NoError(t, env.svc.SetSchoolStatus(ctx, env.school.ID, account.SchoolSuspended))
		defer func() { _ = env.svc.SetSchoolStatus(ctx, env.school.ID, account.SchoolActive) }()

		_, err := env.svc.Login(ctx, "t@x.com", "teacher-pwd", false)
		assert.ErrorIs(t, err, core.ErrTenantInactive)
	})

	assert.Equal(t, 2, env.events.count("login:ok"))
	assert.Equal(t, 3, env.events.count("login:invalid_credentials"))
}

func TestService_ForcedPasswordChange(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	acc := testutil.CreateAccount(t, env.repo, env.school.ID, "a@x.com", account.RoleTeacher, testutil.AccountOpts{
		Password:           "temp-123",
		MustChangePassword: true,
	})

	res, err := env.svc.Login(ctx, "a@x.com", "temp-123", false)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeRequiresPasswordChange, res.Outcome)

	p, err := env.svc.Authenticate(ctx, res.Grant.AccessToken)
	require.NoError(t, err)
	assert.True(t, p.MustChangePassword)
	assert.Equal(t, []authz.Capability{authz.ChangePassword}, authz.Effective(&p).Slice())
	assert.False(t, authz.Allows(&p, authz.ViewPerformanceReport))

	err = env.svc.ChangePassword(ctx, p, "short")
	assert.ErrorIs(t, err, core.ErrWeakPassword)
	err = env.svc.ChangePassword(ctx, p, strings.Repeat("newpw123", 10))
	assert.ErrorIs(t, err, core.ErrWeakPassword)

	require.NoError(t, env.svc.ChangePassword(ctx, p, "newpw123"))

	// the same session is now unrestricted
	p, err = env.svc.Authenticate(ctx, res.Grant.AccessToken)
	require.NoError(t, err)
	assert.False(t, p.MustChangePassword)
	assert.True(t, authz.Allows(&p, authz.ViewPerformanceReport))

	_, err = env.svc.Login(ctx, "a@x.com", "temp-123", false)
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
	res, err = env.svc.Login(ctx, "a@x.com", "newpw123", false)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeActive, res.Outcome)

	_, ok := env.mail.LastMessageTo(acc.Email)
	assert.True(t, ok, "password changed notice")
}

func TestService_ChangePassword_RevokesOtherSessions(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	testutil.CreateAccount(t, env.repo, env.school.ID, "p@x.com", account.RoleParent, testutil.AccountOpts{Password: "parent-pwd"})

	first, err := env.svc.Login(ctx, "p@x.com", "parent-pwd", false)
	require.NoError(t, err)
	second, err := env.svc.Login(ctx, "p@x.com", "parent-pwd", true)
	require.NoError(t, err)

	p, err := env.svc.Authenticate(ctx, second.Grant.AccessToken)
	require.NoError(t, err)
	require.NoError(t, env.svc.ChangePassword(ctx, p, "another-pwd"))

	_, err = env.svc.Authenticate(ctx, first.Grant.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
	_, err = env.svc.Authenticate(ctx, second.Grant.AccessToken)
	assert.NoError(t, err)
}

func TestService_PasswordReset(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	setTokenNow := testutil.MockNow(t, &token.NowFunc, t0)
	testutil.MockNow(t, &auth.NowFunc, t0)

	testutil.CreateAccount(t, env.repo, env.school.ID, "s@x.com", account.RoleStudent, testutil.AccountOpts{Password: "student-pwd"})

	t.Run("unknown and known emails look the same", func(t *testing.T) {
		env.mail.Reset()
		errGhost := env.svc.RequestPasswordReset(ctx, "ghost@x.com")
		errReal := env.svc.RequestPasswordReset(ctx, "s@x.com")
		assert.NoError(t, errGhost)
		assert.NoError(t, errReal)

		sent := env.mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "s@x.com", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "/reset-password?token=")
		assert.Contains(t, sent[0].TextContent, "1 hour")
	})

	t.Run("reset", func(t *testing.T) {
		require.NoError(t, env.svc.RequestPasswordReset(ctx, "s@x.com"))
		tok := tokenFromMail(t, env.mail, "s@x.com")

		sess, err := env.svc.Login(ctx, "s@x.com", "student-pwd", true)
		require.NoError(t, err)

		// a weak password does not spend the token
		err = env.svc.ResetPassword(ctx, tok, "short12")
		assert.ErrorIs(t, err, core.ErrWeakPassword)
		err = env.svc.ResetPassword(ctx, tok, strings.Repeat("brand-new-pwd", 7))
		assert.ErrorIs(t, err, core.ErrWeakPassword, "longer than bcrypt accepts")

		require.NoError(t, env.svc.ResetPassword(ctx, tok, "brand-new-pwd"))

		err = env.svc.ResetPassword(ctx, tok, "brand-new-pwd-2")
		assert.ErrorIs(t, err, core.ErrTokenAlreadyUsed)

		_, err = env.svc.Authenticate(ctx, sess.Grant.AccessToken)
		assert.ErrorIs(t, err, core.ErrTokenInvalid, "sessions end on reset")

		_, err = env.svc.Login(ctx, "s@x.com", "brand-new-pwd", false)
		assert.NoError(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		require.NoError(t, env.svc.RequestPasswordReset(ctx, "s@x.com"))
		tok := tokenFromMail(t, env.mail, "s@x.com")

		setTokenNow(t0.Add(2 * time.Hour))
		defer setTokenNow(t0)

		err := env.svc.ResetPassword(ctx, tok, "brand-new-pwd")
		assert.ErrorIs(t, err, core.ErrTokenExpired)
	})

	t.Run("verification token cannot reset", func(t *testing.T) {
		acc, err := env.repo.GetAccountByEmail(ctx, "s@x.com")
		require.NoError(t, err)
		verif, err := env.iss.Issue(ctx, acc.ID, token.KindEmailVerification, 0)
		require.NoError(t, err)

		err = env.svc.ResetPassword(ctx, verif.Token, "brand-new-pwd")
		assert.ErrorIs(t, err, core.ErrTokenInvalid)
	})

	t.Run("disabled account gets no email", func(t *testing.T) {
		testutil.CreateAccount(t, env.repo, env.school.ID, "gone@x.com", account.RoleStudent, testutil.AccountOpts{Disabled: true})
		env.mail.Reset()
		assert.NoError(t, env.svc.RequestPasswordReset(ctx, "gone@x.com"))
		assert.Empty(t, env.mail.SentMessages())
	})
}

func TestService_RefreshAndLogout(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	res, err := env.svc.Login(ctx, env.admin.Email, "admin-pass-2024", true)
	require.NoError(t, err)

	refreshed, err := env.svc.Refresh(ctx, res.Grant.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, res.Grant.SessionID, refreshed.Grant.SessionID)
	assert.NotEqual(t, res.Grant.RefreshToken, refreshed.Grant.RefreshToken)
	assert.Equal(t, env.admin.ID, refreshed.Principal.AccountID)

	_, err = env.svc.Refresh(ctx, res.Grant.RefreshToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalid, "refresh tokens rotate")

	require.NoError(t, env.svc.Logout(ctx, refreshed.Grant.SessionID))
	require.NoError(t, env.svc.Logout(ctx, refreshed.Grant.SessionID), "logout is idempotent")
	require.NoError(t, env.svc.Logout(ctx, "unknown"))

	_, err = env.svc.Authenticate(ctx, refreshed.Grant.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
	_, err = env.svc.Refresh(ctx, refreshed.Grant.RefreshToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestService_Authenticate_ReadsCurrentState(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	acc := testutil.CreateAccount(t, env.repo, env.school.ID, "t@x.com", account.RoleTeacher, testutil.AccountOpts{Password: "teacher-pwd"})
	res, err := env.svc.Login(ctx, "t@x.com", "teacher-pwd", false)
	require.NoError(t, err)

	adminP := env.admin.Principal("")
	_, err = env.svc.UpdateRole(ctx, adminP, acc.ID, account.RoleParent)
	require.NoError(t, err)

	p, err := env.svc.Authenticate(ctx, res.Grant.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, account.RoleParent, p.Role)

	require.NoError(t, env.svc.SetSchoolStatus(ctx, env.school.ID, account.SchoolSuspended))
	_, err = env.svc.Authenticate(ctx, res.Grant.AccessToken)
	assert.ErrorIs(t, err, core.ErrTenantInactive)

	_, err = env.svc.Authenticate(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestService_RegisterSchool(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	ns := account.NewSchool{
		SchoolName: "  Lake View School ",
		AdminName:  "Jane Wanjiku",
		Email:      "Jane@LakeView.ac.ke",
		Password:   "Kilimanjaro#2024",
		Phone:      "0712 345 678",
	}
	school, admin, err := env.svc.RegisterSchool(ctx, ns)
	require.NoError(t, err)
	assert.NotEmpty(t, school.ID)
	assert.Equal(t, "Lake View School", school.Name)
	assert.Equal(t, account.DefaultCurriculum, school.Curriculum)
	assert.Equal(t, account.RoleAdmin, admin.Role)
	assert.Equal(t, school.ID, admin.TenantID)
	assert.Equal(t, "jane@lakeview.ac.ke", admin.Email)
	assert.Equal(t, "+254712345678", admin.Phone)
	assert.False(t, admin.EmailVerified)
	assert.False(t, admin.MustChangePassword)

	tok := tokenFromMail(t, env.mail, "jane@lakeview.ac.ke")
	require.NoError(t, env.svc.VerifyEmail(ctx, tok))
	acc, err := env.repo.GetAccountByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, acc.EmailVerified)

	assert.ErrorIs(t, env.svc.VerifyEmail(ctx, tok), core.ErrTokenAlreadyUsed)

	t.Run("email exists", func(t *testing.T) {
		ns.SchoolName = "Another School"
		_, _, err := env.svc.RegisterSchool(ctx, ns)
		assert.ErrorIs(t, err, core.ErrEmailExists)
	})

	t.Run("invalid", func(t *testing.T) {
		_, _, err := env.svc.RegisterSchool(ctx, account.NewSchool{
			SchoolName: "X",
			AdminName:  "Y",
			Email:      "y@x.com",
			Password:   "short",
			Curriculum: "unknown",
		})
		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		assert.ElementsMatch(t, []string{"curriculum", "password"}, fields)
	})
}

func TestService_CreateAccount(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	adminP := env.admin.Principal("")

	otherSchool, otherAdmin := testutil.CreateSchool(t, env.repo, "Other School", "admin@other.ac.ke", "other-pass-2024")
	teacher := testutil.CreateAccount(t, env.repo, env.school.ID, "t@x.com", account.RoleTeacher, testutil.AccountOpts{Password: "teacher-pwd"})

	t.Run("ok", func(t *testing.T) {
		acc, err := env.svc.CreateAccount(ctx, adminP, account.NewAccount{
			Name:         "Amani Otieno",
			Email:        "Amani@x.com",
			Role:         account.RoleStudent,
			TempPassword: "temp-1",
		})
		require.NoError(t, err)
		assert.Equal(t, env.school.ID, acc.TenantID)
		assert.Equal(t, "amani@x.com", acc.Email)
		assert.True(t, acc.MustChangePassword)

		res, err := env.svc.Login(ctx, "amani@x.com", "temp-1", false)
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeRequiresPasswordChange, res.Outcome)

		_, ok := env.mail.LastMessageTo("amani@x.com")
		assert.True(t, ok, "verification email")
	})

	t.Run("other school", func(t *testing.T) {
		_, err := env.svc.CreateAccount(ctx, adminP, account.NewAccount{
			TenantID:     otherSchool.ID,
			Name:         "Intruder",
			Email:        "intruder@x.com",
			Role:         account.RoleStudent,
			TempPassword: "temp-1",
		})
		assert.ErrorIs(t, err, core.ErrAuthorizationDenied)
	})

	t.Run("not an admin", func(t *testing.T) {
		_, err := env.svc.CreateAccount(ctx, teacher.Principal(""), account.NewAccount{
			Name:         "Kid",
			Email:        "kid@x.com",
			Role:         account.RoleStudent,
			TempPassword: "temp-1",
		})
		assert.ErrorIs(t, err, core.ErrAuthorizationDenied)
	})

	t.Run("super admin only by super admin", func(t *testing.T) {
		_, err := env.svc.CreateAccount(ctx, adminP, account.NewAccount{
			Name:         "Boss",
			Email:        "boss@x.com",
			Role:         account.RoleSuperAdmin,
			TempPassword: "temp-1",
		})
		assert.ErrorIs(t, err, core.ErrAuthorizationDenied)

		root, err := env.svc.CreateSuperAdmin(ctx, "Root", "root@eduke.co.ke", "operator-secret-1")
		require.NoError(t, err)
		acc, err := env.svc.CreateAccount(ctx, root.Principal(""), account.NewAccount{
			TenantID:     otherSchool.ID,
			Name:         "Teacher Two",
			Email:        "t2@x.com",
			Role:         account.RoleTeacher,
			TempPassword: "temp-1",
		})
		require.NoError(t, err)
		assert.Equal(t, otherSchool.ID, acc.TenantID)
	})

	t.Run("email exists", func(t *testing.T) {
		_, err := env.svc.CreateAccount(ctx, otherAdmin.Principal(""), account.NewAccount{
			Name:         "Dup",
			Email:        "t@x.com",
			Role:         account.RoleTeacher,
			TempPassword: "temp-1",
		})
		assert.ErrorIs(t, err, core.ErrEmailExists)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := env.svc.CreateAccount(ctx, adminP, account.NewAccount{
			Name:         "Bad",
			Email:        "not-an-email",
			Role:         account.Role("janitor"),
			TempPassword: "123",
		})
		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Len(t, verrs, 3)
	})
}

func TestService_UpdateRoleAndDisable(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	adminP := env.admin.Principal("")

	_, otherAdmin := testutil.CreateSchool(t, env.repo, "Other School", "admin@other.ac.ke", "other-pass-2024")
	teacher := testutil.CreateAccount(t, env.repo, env.school.ID, "t@x.com", account.RoleTeacher, testutil.AccountOpts{Password: "teacher-pwd"})

	t.Run("update role", func(t *testing.T) {
		acc, err := env.svc.UpdateRole(ctx, adminP, teacher.ID, account.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, account.RoleAdmin, acc.Role)

		_, err = env.svc.UpdateRole(ctx, adminP, teacher.ID, account.Role("janitor"))
		var verr *core.ValidationError
		assert.ErrorAs(t, err, &verr)

		_, err = env.svc.UpdateRole(ctx, adminP, env.admin.ID, account.RoleTeacher)
		assert.ErrorIs(t, err, core.ErrAuthorizationDenied, "own role")

		_, err = env.svc.UpdateRole(ctx, adminP, teacher.ID, account.RoleSuperAdmin)
		assert.ErrorIs(t, err, core.ErrAuthorizationDenied)

		_, err = env.svc.UpdateRole(ctx, otherAdmin.Principal(""), teacher.ID, account.RoleStudent)
		assert.ErrorIs(t, err, core.ErrAuthorizationDenied, "other school")

		_, err = env.svc.UpdateRole(ctx, adminP, "ghost", account.RoleStudent)
		assert.ErrorIs(t, err, core.ErrAuthorizationDenied, "missing is a denial")
	})

	t.Run("disable", func(t *testing.T) {
		res, err := env.svc.Login(ctx, "t@x.com", "teacher-pwd", true)
		require.NoError(t, err)

		assert.ErrorIs(t, env.svc.DisableAccount(ctx, otherAdmin.Principal(""), teacher.ID), core.ErrAuthorizationDenied)
		assert.ErrorIs(t, env.svc.DisableAccount(ctx, adminP, env.admin.ID), core.ErrAuthorizationDenied)

		require.NoError(t, env.svc.DisableAccount(ctx, adminP, teacher.ID))
		require.NoError(t, env.svc.DisableAccount(ctx, adminP, teacher.ID), "already disabled")

		_, err = env.svc.Authenticate(ctx, res.Grant.AccessToken)
		assert.ErrorIs(t, err, core.ErrTokenInvalid)
		_, err = env.svc.Login(ctx, "t@x.com", "teacher-pwd", false)
		assert.ErrorIs(t, err, core.ErrAccountDisabled)

		acc, err := env.repo.GetAccountByID(ctx, teacher.ID)
		require.NoError(t, err, "accounts are never deleted")
		assert.True(t, acc.Disabled)
	})
}

func TestService_OperatorActions(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	testutil.CreateAccount(t, env.repo, env.school.ID, "t@x.com", account.RoleTeacher, testutil.AccountOpts{Password: "teacher-pwd"})
	sess, err := env.svc.Login(ctx, "t@x.com", "teacher-pwd", false)
	require.NoError(t, err)

	assert.ErrorIs(t, env.svc.SetTemporaryPassword(ctx, "t@x.com", "abc"), core.ErrWeakPassword)
	assert.ErrorIs(t, env.svc.SetTemporaryPassword(ctx, "ghost@x.com", "temp-123"), account.ErrNotFound)
	require.NoError(t, env.svc.SetTemporaryPassword(ctx, " T@x.com", "temp-123"))

	_, err = env.svc.Authenticate(ctx, sess.Grant.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)

	res, err := env.svc.Login(ctx, "t@x.com", "temp-123", false)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeRequiresPasswordChange, res.Outcome)

	root, err := env.svc.CreateSuperAdmin(ctx, "Root", "root@eduke.co.ke", "operator-secret-1")
	require.NoError(t, err)
	assert.True(t, root.IsSuperAdmin())
	assert.Empty(t, root.TenantID)

	_, err = env.svc.CreateSuperAdmin(ctx, "Root", "root@eduke.co.ke", "operator-secret-1")
	assert.ErrorIs(t, err, core.ErrEmailExists)

	// super admins do not depend on a school
	require.NoError(t, env.svc.SetSchoolStatus(ctx, env.school.ID, account.SchoolSuspended))
	_, err = env.svc.Login(ctx, "root@eduke.co.ke", "operator-secret-1", false)
	assert.NoError(t, err)
	assert.Error(t, env.svc.SetSchoolStatus(ctx, env.school.ID, account.SchoolStatus("closed")))

	require.NoError(t, env.svc.DisableAccountByEmail(ctx, "root@eduke.co.ke"))
	_, err = env.svc.Login(ctx, "root@eduke.co.ke", "operator-secret-1", false)
	assert.ErrorIs(t, err, core.ErrAccountDisabled)
}
