package main

import (
	"github.com/MagetoJ/EduKE-sub001/storage/database"
)

var runMigrationsFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return runMigrationsFunc(cli.db, cli.engine, args[0], arguments...)
}
