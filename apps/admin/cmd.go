package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/user"
	"github.com/danielortegac/qlase/storage"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf       *core.Config
	store      *storage.Store
	usrSvc     user.Service
	validate   *validator.Validate
	translator ut.Translator
	out        io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "QLASE administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(
		cli.migrateCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.grantRoleCmd(),
		cli.resetCreditsCmd(),
	)
	return root
}

// run executes the command line. args include the program name.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.Execute()
}

// requireFlags returns errHelp (after printing the usage) when any of the named string flags is empty.
func requireFlags(cmd *cobra.Command, names ...string) error {
	for _, name := range names {
		if v, _ := cmd.Flags().GetString(name); strings.TrimSpace(v) == "" {
			_ = cmd.Usage()
			return errHelp
		}
	}
	return nil
}

// promptPassword reads the password and its confirmation without echoing them.
func (cli *commandLine) promptPassword() (pwd, confirm string, err error) {
	read := func(prompt string) (string, error) {
		fmt.Fprint(cli.out, prompt)
		b, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		return string(b), err
	}
	if pwd, err = read("Enter password:"); err != nil {
		return "", "", err
	}
	if pwd == "" {
		return "", "", errHelp
	}
	if confirm, err = read("Confirm password:"); err != nil {
		return "", "", err
	}
	return pwd, confirm, nil
}

// describe turns validation failures into one readable line per field.
func (cli *commandLine) describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+": "+fe.Translate(cli.translator))
	}
	return errors.New(strings.Join(msgs, "; "))
}
