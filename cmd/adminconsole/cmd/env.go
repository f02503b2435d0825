package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/funpik/adminconsole/pkg/environment"
	"github.com/funpik/adminconsole/pkg/session"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show or switch the backend environment",
}

var envGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the selected environment and where it comes from",
	Args:  cobra.NoArgs,
	RunE:  runEnvGet,
}

var envSetCmd = &cobra.Command{
	Use:   "set <development|production>",
	Short: "Override the environment; ends the current session",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnvSet,
}

var envClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the override and fall back to the build default",
	Args:  cobra.NoArgs,
	RunE:  runEnvClear,
}

func init() {
	envCmd.AddCommand(envGetCmd, envSetCmd, envClearCmd)
	rootCmd.AddCommand(envCmd)
}

func runEnvGet(cmd *cobra.Command, args []string) error {
	app, _, err := openApp(cmd, session.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	info := app.Selector.Info(cmd.Context())
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Environment: %s\n", info.Environment)
	fmt.Fprintf(out, "  Host: %s\n", info.Host)
	fmt.Fprintf(out, "  Source: %s\n", info.Source)
	fmt.Fprintf(out, "  User API: %s\n", app.Selector.ResolveURL(cmd.Context(), environment.PortUser, "/"))
	return nil
}

func runEnvSet(cmd *cobra.Command, args []string) error {
	env, ok := environment.Parse(args[0])
	if !ok {
		return fmt.Errorf("invalid environment %q (expected development or production)", args[0])
	}

	app, _, err := openApp(cmd, session.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := app.Selector.Set(cmd.Context(), string(env)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Switched to %s (%s), please log in again\n", env, app.Selector.Host(cmd.Context()))
	return nil
}

func runEnvClear(cmd *cobra.Command, args []string) error {
	app, _, err := openApp(cmd, session.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := app.Selector.Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Using %s\n", app.Selector.Current(cmd.Context()))
	return nil
}
