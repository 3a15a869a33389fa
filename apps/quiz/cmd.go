package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/vigilsat/vigil/client"
)

const (
	defaultAPIURL = "http://localhost:5000"
	envPrefix     = "VIGIL"
	mfaRequired   = "mfa code required"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("api-url", defaultAPIURL)

	r := &runner{in: in, out: out}

	root := &cobra.Command{
		Use:           "quiz",
		Short:         "Take Vigil security quizzes from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := zap.NewNop()
			if v.GetBool("debug") {
				logger, _ = zap.NewDevelopment()
			}
			r.api = client.New(v.GetString("api-url"), client.WithLogger(logger.Named("client").Sugar()))
			return r.authenticate(cmd.Context(), v.GetString("token"), v.GetString("username"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(out)

	flags := root.PersistentFlags()
	flags.String("api-url", defaultAPIURL, "API base URL (env VIGIL_API_URL)")
	flags.StringP("username", "u", "", "username or email to log in with (env VIGIL_USERNAME)")
	flags.String("token", "", "bearer token, skips the login (env VIGIL_TOKEN)")
	flags.Bool("debug", false, "log HTTP retries")
	_ = v.BindPFlags(flags)

	root.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the available quizzes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return r.list(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "take QUIZ_ID",
			Short: "Take a quiz",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return errors.Errorf("invalid quiz id %q", args[0])
				}
				return r.take(cmd.Context(), id)
			},
		},
		&cobra.Command{
			Use:   "fact [CATEGORY]",
			Short: "Show a random security fact",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var category string
				if len(args) > 0 {
					category = args[0]
				}
				return r.fact(cmd.Context(), category)
			},
		},
	)
	return root
}

func (r *runner) authenticate(ctx context.Context, token, username string) error {
	if token != "" {
		r.api.SetToken(token)
		return nil
	}
	if username == "" {
		// the API may serve a demo identity outside production
		return nil
	}
	r.printf("Password for %s: ", username)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	r.printf("\n")
	if err != nil {
		return errors.Wrap(err, "reading password")
	}

	lr, err := r.api.Login(ctx, username, string(pwd), "")
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message == mfaRequired {
		r.printf("MFA code: ")
		code, rerr := readPasswordFunc(int(syscall.Stdin))
		r.printf("\n")
		if rerr != nil {
			return errors.Wrap(rerr, "reading mfa code")
		}
		lr, err = r.api.Login(ctx, username, string(pwd), string(code))
	}
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	if lr.User != nil {
		r.printf("Logged in as %s\n", lr.User.Username)
	}
	return nil
}

func (r *runner) printf(format string, a ...interface{}) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}
