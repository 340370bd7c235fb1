package main

import (
	"context"
	"fmt"

	"github.com/MagetoJ/EduKE-sub001/core/account"
)

func (cli *commandLine) createSuperAdmin(name, email, pwd string) error {
	acc, err := cli.authSvc.CreateSuperAdmin(context.Background(), name, email, pwd)
	if err != nil {
		return err
	}
	fmt.Printf("Super admin %s created (id %s).\n", acc.Email, acc.ID)
	return nil
}

func (cli *commandLine) disableAccount(email string) error {
	if err := cli.authSvc.DisableAccountByEmail(context.Background(), email); err != nil {
		return err
	}
	fmt.Printf("Account %s disabled.\n", email)
	return nil
}

func (cli *commandLine) setSchoolStatus(id, status string) error {
	if err := cli.authSvc.SetSchoolStatus(context.Background(), id, account.SchoolStatus(status)); err != nil {
		return err
	}
	fmt.Printf("School %s is now %s.\n", id, status)
	return nil
}
