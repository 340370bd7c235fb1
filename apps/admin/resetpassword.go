package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	if err := cli.authSvc.SetTemporaryPassword(context.Background(), email, pwd); err != nil {
		return err
	}
	fmt.Printf("Temporary password set for %s. It must be changed at next login.\n", email)
	return nil
}
