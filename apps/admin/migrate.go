package main

import (
	"github.com/maraakiz/maraakiz/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(cli.db.SQL(), args[0], args[1:]...)
}
