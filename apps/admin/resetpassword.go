package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/user"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resetpassword --email EMAIL",
		Short: "Reset a user's password. The new password is prompted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(cmd, "email"); err != nil {
				return err
			}
			email, _ := cmd.Flags().GetString("email")

			pwd, confirm, err := cli.promptPassword()
			if err != nil {
				if err == errHelp {
					_ = cmd.Usage()
				}
				return err
			}
			if err := cli.resetPassword(context.Background(), email, pwd, confirm); err != nil {
				return cli.describe(err)
			}
			fmt.Fprintln(cli.out, "password updated")
			return nil
		},
	}
	cmd.Flags().String("email", "", "the user's email")
	return cmd
}

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd, confirm string) error {
	usr, err := cli.usrSvc.GetByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err := user.NewSetPassword(usr, pwd, confirm).Validate(cli.validate); err != nil {
		return err
	}
	return cli.usrSvc.SetPassword(ctx, usr.ID, pwd)
}
