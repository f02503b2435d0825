package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/funpik/adminconsole/pkg/credential"
	"github.com/funpik/adminconsole/pkg/session"
)

var (
	username string
	password string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the selected backend",
	Long: `Sign in with a username and password.

The password is read from --password or, when omitted, from the first line
of standard input. On success the session is stored locally and reused by
later commands until it expires or is logged out.`,
	RunE: runLogin,
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Register a new operator account",
	RunE:  runSignup,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session",
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Verify the stored session and show its state",
	RunE:  runStatus,
}

var extendCmd = &cobra.Command{
	Use:   "extend",
	Short: "Refresh the session token",
	Long: `Exchange the current token for a fresh one.

Extension is only allowed during the last 30 minutes of a session. A failed
refresh ends the session.`,
	RunE: runExtend,
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, signupCmd} {
		c.Flags().StringVarP(&username, "username", "u", "", "Account username")
		c.Flags().StringVarP(&password, "password", "p", "", "Account password (read from stdin when omitted)")
		_ = c.MarkFlagRequired("username")
	}
	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, statusCmd, extendCmd)
}

// readPassword returns the --password flag or the first stdin line.
func readPassword(in io.Reader) (string, error) {
	if password != "" {
		return password, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	pass, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return err
	}

	app, _, err := openApp(cmd, session.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ctx := cmd.Context()
	result, err := app.API.Login(ctx, username, pass)
	if err != nil {
		return err
	}
	if err := app.Controller.Login(ctx, result.User, result.AccessToken); err != nil {
		return err
	}

	snap := app.Controller.Snapshot()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Logged in as %s (%s)\n", displayName(snap.User), app.Selector.Current(ctx))
	fmt.Fprintf(out, "  Session expires in %s\n", formatSeconds(snap.TimeLeftSeconds, snap.TimeLeftKnown))
	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	pass, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return err
	}

	app, _, err := openApp(cmd, session.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := app.API.Signup(cmd.Context(), username, pass); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Account %s created, you can now log in\n", username)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	app, _, err := openApp(cmd, session.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	app.Controller.Logout(cmd.Context())
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, _, err := openApp(cmd, session.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ctx := cmd.Context()
	app.Start(ctx)
	printStatus(cmd.OutOrStdout(), string(app.Selector.Current(ctx)), app.Selector.Host(ctx), app.Controller.Snapshot())
	return nil
}

func printStatus(out io.Writer, env, host string, snap session.Snapshot) {
	fmt.Fprintf(out, "Environment: %s (%s)\n", env, host)
	fmt.Fprintf(out, "State: %s\n", snap.State)
	if !snap.IsAuthenticated {
		return
	}
	fmt.Fprintf(out, "User: %s\n", displayName(snap.User))
	fmt.Fprintf(out, "Time left: %s\n", formatSeconds(snap.TimeLeftSeconds, snap.TimeLeftKnown))
	if snap.CanExtend {
		fmt.Fprintln(out, "Session can be extended (run: adminconsole extend)")
	}
}

func runExtend(cmd *cobra.Command, args []string) error {
	app, _, err := openApp(cmd, session.Options{Notifier: printNotifier{out: cmd.OutOrStdout()}})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ctx := cmd.Context()
	snap, err := requireSession(ctx, app)
	if err != nil {
		return err
	}
	if !snap.CanExtend {
		return fmt.Errorf("%w: %s left", session.ErrExtendNotAllowed, formatSeconds(snap.TimeLeftSeconds, snap.TimeLeftKnown))
	}
	return app.Controller.ExtendSession(ctx)
}

func displayName(u *credential.User) string {
	if u == nil || u.Username == "" {
		return "(unknown)"
	}
	return u.Username
}
