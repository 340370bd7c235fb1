package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/MagetoJ/EduKE-sub001/core/auth"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	engine  string
	authSvc *auth.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  resetpassword -email EMAIL - set a temporary password the account must change at next login")
	fmt.Println("  createsuperadmin -name NAME -email EMAIL - create a super admin account")
	fmt.Println("  disable -email EMAIL - disable an account and end its sessions")
	fmt.Println("  schoolstatus -id SCHOOL_ID -status active|suspended - suspend or reactivate a school")
	fmt.Println("  migrate COMMAND [ARGS] - run a database migration command (up, down, status...)")
}

// promptPassword reads a password without echoing it.
func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The account's email. The temporary password will be prompted next.")

	superAdminCmd := flag.NewFlagSet("createsuperadmin", flag.ContinueOnError)
	superAdminName := superAdminCmd.String("name", "", "The super admin's full name.")
	superAdminEmail := superAdminCmd.String("email", "", "The super admin's email. The password will be prompted next.")

	disableCmd := flag.NewFlagSet("disable", flag.ContinueOnError)
	disableEmail := disableCmd.String("email", "", "The account's email.")

	schoolStatusCmd := flag.NewFlagSet("schoolstatus", flag.ContinueOnError)
	schoolStatusID := schoolStatusCmd.String("id", "", "The school's ID.")
	schoolStatus := schoolStatusCmd.String("status", "", "active or suspended.")

	switch args[1] {
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "createsuperadmin":
		if err := superAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *superAdminName == "" || *superAdminEmail == "" {
			superAdminCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			superAdminCmd.Usage()
			return errHelp
		}
		return cli.createSuperAdmin(*superAdminName, *superAdminEmail, pwd)

	case "disable":
		if err := disableCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *disableEmail == "" {
			disableCmd.Usage()
			return errHelp
		}
		return cli.disableAccount(*disableEmail)

	case "schoolstatus":
		if err := schoolStatusCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *schoolStatusID == "" || *schoolStatus == "" {
			schoolStatusCmd.Usage()
			return errHelp
		}
		return cli.setSchoolStatus(*schoolStatusID, *schoolStatus)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	default:
		cli.printUsage()
		return errHelp
	}
}
