package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adduser --email EMAIL --name NAME [--admin] [--teacher] [--premium]",
		Short: "Create a user, or activate and update an existing one. The password is prompted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(cmd, "email", "name"); err != nil {
				return err
			}
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			isAdmin, _ := cmd.Flags().GetBool("admin")
			isTeacher, _ := cmd.Flags().GetBool("teacher")
			isPremium, _ := cmd.Flags().GetBool("premium")

			pwd, confirm, err := cli.promptPassword()
			if err != nil {
				if err == errHelp {
					_ = cmd.Usage()
				}
				return err
			}
			usr, err := cli.addUser(context.Background(), name, email, pwd, confirm, userRoles(isAdmin, isTeacher), isPremium)
			if err != nil {
				return cli.describe(err)
			}
			fmt.Fprintf(cli.out, "user %s (%s) is ready\n", usr.Email, usr.ID)
			return nil
		},
	}
	cmd.Flags().String("email", "", "the user's email")
	cmd.Flags().String("name", "", "the user's full name")
	cmd.Flags().Bool("admin", false, "make the user a super admin")
	cmd.Flags().Bool("teacher", false, "make the user a teacher")
	cmd.Flags().Bool("premium", false, "give the user a premium plan")
	return cmd
}

func userRoles(isAdmin, isTeacher bool) []string {
	var roles []string
	if isAdmin {
		roles = append(roles, user.RoleAdminSuper)
	}
	if isTeacher {
		roles = append(roles, user.RoleTeacher)
	}
	if len(roles) == 0 {
		roles = append(roles, user.RoleStudent)
	}
	return roles
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, name, email, pwd, confirm string, roles []string, isPremium bool) (user.User, error) {
	usr, err := cli.usrSvc.GetByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if !core.IsNotFound(err) {
			return user.User{}, err
		}
		nu := user.NewUser{
			Name:            name,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: confirm,
			Roles:           roles,
			IsPremium:       isPremium,
		}
		if err := nu.Validate(cli.validate); err != nil {
			return user.User{}, err
		}
		return cli.usrSvc.Register(ctx, nu)
	}

	uu := user.UpdateUser{
		Name:            name,
		Status:          user.StatusActive,
		IsPremium:       &isPremium,
		Password:        pwd,
		PasswordConfirm: confirm,
	}
	if err := uu.Validate(usr, cli.validate); err != nil {
		return user.User{}, err
	}
	if usr, err = cli.usrSvc.Update(ctx, usr.ID, uu); err != nil {
		return user.User{}, err
	}
	return cli.usrSvc.GrantRoles(ctx, usr.ID, roles...)
}
