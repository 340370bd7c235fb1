package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/account"
	"github.com/MagetoJ/EduKE-sub001/core/auth"
	"github.com/MagetoJ/EduKE-sub001/core/token"
	emailsvc "github.com/MagetoJ/EduKE-sub001/services/email"
	inmemdb "github.com/MagetoJ/EduKE-sub001/storage/database/inmem"
	testutil "github.com/MagetoJ/EduKE-sub001/tests"
)

var accRepo account.Repository

func setup(t *testing.T) *commandLine {
	conf := core.NewTestConfig()

	// set up DB & repos
	db := inmemdb.Open()
	accRepo = inmemdb.NewAccountRepository(db)
	iss := token.NewIssuer(token.OptionsFromConfig(conf), accRepo, inmemdb.NewTokenRepository(db), inmemdb.NewSessionRepository(db))

	// set up services
	validate, translator := core.NewValidator()
	account.RegisterValidators(validate, translator)
	authSvc := auth.NewService(auth.Deps{
		Conf:     conf,
		Validate: validate,
		Accounts: accRepo,
		Issuer:   iss,
		Mail:     emailsvc.NewConsoleServiceMock(conf),
	})

	// start CLI
	return &commandLine{
		engine:  conf.Database.Engine,
		authSvc: authSvc,
	}
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwd     string   // typed at the password prompt
	wantErr error
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest, check func(t *testing.T, tt cliTest)) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd := tt.pwd
		readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "cli.run() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if check != nil {
				check(t, tt)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli := setup(t)
	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate without subcommand", args: []string{"migrate"}, wantErr: errHelp},
	}, nil)
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	origRun := runMigrationsFunc
	defer func() { runMigrationsFunc = origRun }()

	var gotEngine string
	runMigrationsFunc = func(db *sql.DB, engine, command string, args ...string) error {
		gotEngine = engine
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []struct {
		name       string
		args       []string
		wantErrStr string
	}{
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErrStr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "sqlite3", gotEngine)
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()
	school, _ := testutil.CreateSchool(t, accRepo, "Green Hills Academy", "admin@greenhills.ac.ke", "admin-pass-2024")
	acc := testutil.CreateAccount(t, accRepo, school.ID, "t@x.com", account.RoleTeacher, testutil.AccountOpts{Password: "teacher-pwd"})

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "t@x.com"}, wantErr: errHelp},
		{name: "account not found", args: []string{"resetpassword", "-email", "ghost@x.com"}, pwd: "temp-123", wantErr: account.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "-email", "t@x.com"}, pwd: "abc", wantErr: core.ErrWeakPassword},
		{name: "reset", args: []string{"resetpassword", "-email", " T@x.com"}, pwd: "temp-123"},
	}, func(t *testing.T, tt cliTest) {
		refreshed, err := accRepo.GetAccountByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.NoError(t, refreshed.CheckPassword(tt.pwd))
		assert.True(t, refreshed.MustChangePassword)
	})
}

func Test_commandLine_createSuperAdmin(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	runCLITests(t, cli, []cliTest{
		{name: "no name", args: []string{"createsuperadmin", "-email", "root@eduke.co.ke"}, pwd: "Kilimanjaro-Peak-5895", wantErr: errHelp},
		{name: "no password", args: []string{"createsuperadmin", "-name", "Root", "-email", "root@eduke.co.ke"}, wantErr: errHelp},
		{name: "weak password", args: []string{"createsuperadmin", "-name", "Root", "-email", "root@eduke.co.ke"}, pwd: "short", wantErr: core.ErrWeakPassword},
		{name: "create", args: []string{"createsuperadmin", "-name", "Root", "-email", "root@eduke.co.ke"}, pwd: "Kilimanjaro-Peak-5895"},
		{name: "duplicate", args: []string{"createsuperadmin", "-name", "Root", "-email", "root@eduke.co.ke"}, pwd: "Kilimanjaro-Peak-5895", wantErr: core.ErrEmailExists},
	}, func(t *testing.T, tt cliTest) {
		acc, err := accRepo.GetAccountByEmail(ctx, "root@eduke.co.ke")
		require.NoError(t, err)
		assert.Equal(t, account.RoleSuperAdmin, acc.Role)
		assert.Empty(t, acc.TenantID)
		assert.False(t, acc.MustChangePassword)
	})
}

func Test_commandLine_disableAndSchoolStatus(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()
	school, _ := testutil.CreateSchool(t, accRepo, "Green Hills Academy", "admin@greenhills.ac.ke", "admin-pass-2024")
	acc := testutil.CreateAccount(t, accRepo, school.ID, "t@x.com", account.RoleTeacher, testutil.AccountOpts{Password: "teacher-pwd"})

	runCLITests(t, cli, []cliTest{
		{name: "disable: no args", args: []string{"disable"}, wantErr: errHelp},
		{name: "disable: not found", args: []string{"disable", "-email", "ghost@x.com"}, wantErr: account.ErrNotFound},
		{name: "disable", args: []string{"disable", "-email", "t@x.com"}},
		{name: "schoolstatus: no status", args: []string{"schoolstatus", "-id", school.ID}, wantErr: errHelp},
		{name: "schoolstatus: suspend", args: []string{"schoolstatus", "-id", school.ID, "-status", "suspended"}},
	}, nil)

	refreshed, err := accRepo.GetAccountByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.Disabled)

	sch, err := accRepo.GetSchoolByID(ctx, school.ID)
	require.NoError(t, err)
	assert.Equal(t, account.SchoolSuspended, sch.Status)

	assert.Error(t, cli.run([]string{"admin", "schoolstatus", "-id", school.ID, "-status", "closed"}))
}
