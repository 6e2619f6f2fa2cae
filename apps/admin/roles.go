package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/user"
)

func (cli *commandLine) grantRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grantrole --email EMAIL --role ROLE [--role ROLE...]",
		Short: "Add roles to a user (" + strings.Join(user.AllRoles, ", ") + ")",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(cmd, "email"); err != nil {
				return err
			}
			email, _ := cmd.Flags().GetString("email")
			roles, _ := cmd.Flags().GetStringSlice("role")
			if len(roles) == 0 {
				_ = cmd.Usage()
				return errHelp
			}

			usr, err := cli.usrSvc.GetByEmail(context.Background(), core.CleanString(email, true /* lower */))
			if err != nil {
				return err
			}
			if usr, err = cli.usrSvc.GrantRoles(context.Background(), usr.ID, roles...); err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%s now has roles %s\n", usr.Email, strings.Join(usr.Roles, ", "))
			return nil
		},
	}
	cmd.Flags().String("email", "", "the user's email")
	cmd.Flags().StringSlice("role", nil, "role to grant; repeat or comma-separate for several")
	return cmd
}

func (cli *commandLine) resetCreditsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resetcredits --email EMAIL",
		Short: "Refill a user's AI credits to their plan's allowance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(cmd, "email"); err != nil {
				return err
			}
			email, _ := cmd.Flags().GetString("email")

			usr, err := cli.usrSvc.GetByEmail(context.Background(), core.CleanString(email, true /* lower */))
			if err != nil {
				return err
			}
			if usr, err = cli.usrSvc.ResetCredits(context.Background(), usr.ID); err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%s has %d AI credits\n", usr.Email, usr.AICredits)
			return nil
		},
	}
	cmd.Flags().String("email", "", "the user's email")
	return cmd
}
