package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/danielortegac/qlase/storage/database"
)

var (
	gooseRunFunc = database.RunMigrations // mockable

	errNotSQL = errors.New("migrations only apply to the postgres engine")
)

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose migration command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.migrate(args)
		},
	}
}

func (cli *commandLine) migrate(args []string) error {
	if cli.store.SQL == nil {
		return errNotSQL
	}
	return gooseRunFunc(cli.store.SQL.DB, args[0], args[1:]...)
}
