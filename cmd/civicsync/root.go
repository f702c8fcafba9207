package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"civicsync/apperr"
	"civicsync/client"

	"github.com/spf13/cobra"
)

var version = "dev"

type contextKey string

const appKey contextKey = "app"

// app is everything one CLI invocation needs, built once in PersistentPreRunE.
type app struct {
	api     *client.API
	session *client.Session
	detail  *client.DetailCache
	mine    *client.MyIssues
	rec     *client.Reconciler
	logger  *slog.Logger
	stdout  io.Writer
	stderr  io.Writer
}

// CmdError carries the kind used to pick the exit code.
type CmdError struct {
	Err  error
	Kind apperr.Kind
}

func (e *CmdError) Error() string { return e.Err.Error() }

func (e *CmdError) Unwrap() error { return e.Err }

func cmdErr(err error) error {
	if err == nil {
		return nil
	}
	return &CmdError{Err: err, Kind: apperr.KindOf(err)}
}

var rootCmd = &cobra.Command{
	Use:     "civicsync",
	Short:   "Report and follow civic issues from the terminal",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("api", "", "Server URL (default $CIVICSYNC_API_URL or "+client.DefaultBaseURL+")")
	rootCmd.PersistentFlags().String("credentials", "", "Credential file (default in the user config dir)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log requests to stderr")
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func newApp(cmd *cobra.Command) (*app, error) {
	apiURL, _ := cmd.Flags().GetString("api")
	if apiURL == "" {
		apiURL = os.Getenv("CIVICSYNC_API_URL")
	}
	credPath, _ := cmd.Flags().GetString("credentials")
	if credPath == "" {
		p, err := client.DefaultCredentialPath()
		if err != nil {
			return nil, err
		}
		credPath = p
	}

	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	api := client.NewAPI(apiURL, client.WithAPILogger(logger))
	session := client.NewSession(api, client.NewFileCredentialStore(credPath), client.WithSessionLogger(logger))
	api.SetTokenSource(session)

	a := &app{
		api:     api,
		session: session,
		detail:  client.NewDetailCache(api, session),
		mine:    client.NewMyIssues(api, session),
		rec:     client.NewReconciler(api, session, client.WithReconcilerLogger(logger)),
		logger:  logger,
		stdout:  cmd.OutOrStdout(),
		stderr:  cmd.ErrOrStderr(),
	}
	a.rec.Attach(a.detail, a.mine)

	session.Start(cmd.Context())
	if err := session.Wait(cmd.Context()); err != nil {
		return nil, err
	}
	if err := session.Err(); err != nil {
		warn(a.stderr, apperr.Message(err))
		session.ClearError()
	}
	return a, nil
}

func getApp(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey).(*app)
	return a
}

// requireLogin fails fast when no one is signed in.
func (a *app) requireLogin() error {
	if !a.session.IsAuthenticated() {
		return cmdErr(apperr.E(apperr.Unauthenticated, "Not logged in. Run 'civicsync login' first."))
	}
	return nil
}

// exitCode maps error kinds to process exit codes.
func exitCode(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return 2
	case apperr.Unauthenticated, apperr.Forbidden:
		return 3
	case apperr.NotFound:
		return 4
	case apperr.Conflict:
		return 5
	case apperr.Transport, apperr.RateLimited:
		return 6
	default:
		return 1
	}
}

// Execute runs the root command and returns an exit code.
func Execute() int {
	ctx, stop := signalContext()
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	printError(rootCmd.ErrOrStderr(), err)

	var ce *CmdError
	if errors.As(err, &ce) {
		return exitCode(ce.Kind)
	}
	return exitCode(apperr.KindOf(err))
}

func printError(w io.Writer, err error) {
	msg := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	fmt.Fprintln(w, errorLabel()+" "+msg)
}
