package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vigilsat/vigil/core/fact"
	"github.com/vigilsat/vigil/core/user"
	"github.com/vigilsat/vigil/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword      // mockable
	gooseRunFunc     = database.RunMigrations // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	usrSvc  *user.Service
	factSvc *fact.Service
	out     io.Writer
}

func (cli *commandLine) printf(format string, a ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, a...)
}

// run executes the command line args, args[0] being the program name.
func (cli *commandLine) run(args []string) error {
	if cli.out == nil {
		cli.out = os.Stdout
	}
	root := cli.rootCmd()
	if len(args) < 2 {
		_ = root.Help()
		return errHelp
	}
	root.SetArgs(args[1:])
	return root.ExecuteContext(context.Background())
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Vigil administration",
		Long:          `Manage the Vigil database and accounts.`,
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
		cli.seedCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
	)
	return root
}

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run database migrations",
		Long: `Run a goose command against the embedded migrations.

Commands: up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, version.

Example:
  admin migrate up
  admin migrate down-to 1`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			return cli.migrate(cmd.Context(), args)
		},
	}
}

func (cli *commandLine) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default admin account and sample content",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.seed(cmd.Context())
		},
	}
}

func (cli *commandLine) addUserCmd() *cobra.Command {
	var opts addUserOptions
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create or update a user",
		Long: `Create a user, or update the role and password of an existing one.
The password is prompted next.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.username == "" || opts.email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			opts.password = pwd
			return cli.addUser(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "the user's username")
	cmd.Flags().StringVarP(&opts.email, "email", "e", "", "the user's email")
	cmd.Flags().StringVarP(&opts.role, "role", "r", user.RoleEmployee, "admin, manager or employee")
	cmd.Flags().StringVarP(&opts.department, "department", "d", "", "the user's department")
	return cmd
}

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var login string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password",
		Long:  `Reset the password of a user. The password is prompted next.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if login == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.resetPassword(cmd.Context(), login, pwd)
		},
	}
	cmd.Flags().StringVarP(&login, "username", "u", "", "the user's username or email")
	return cmd
}

func (cli *commandLine) promptPassword(cmd *cobra.Command) (string, error) {
	cli.printf("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		_ = cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}
