package main

import (
	"fmt"

	"github.com/trezcool/goose"

	appfs "github.com/ecolehub/backend/fs"
)

const migrationsDir = "migrations"

var gooseRunFunc = goose.RunFS // mockable

// schemaCommands change the database schema and get a confirmation line once done.
var schemaCommands = map[string]bool{
	"up":        true,
	"up-by-one": true,
	"up-to":     true,
	"down":      true,
	"down-to":   true,
	"redo":      true,
	"reset":     true,
}

// migrate runs a goose command against the migrations embedded in the binary.
func (cli *commandLine) migrate(args []string) error {
	command, rest := args[0], args[1:]
	if err := gooseRunFunc(command, cli.db, appfs.FS, migrationsDir, rest...); err != nil {
		return err
	}
	if schemaCommands[command] {
		_, _ = fmt.Fprintf(cli.out, "migrate %s: done\n", command)
	}
	return nil
}
