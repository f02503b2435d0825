package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	envFile   string
	ephemeral bool
	version   = "dev" // Set by build
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "adminconsole",
	Short: "Funpik admin console",
	Long: `Admin console for the Funpik backend.

Signs operators in against the development or production backend, keeps
the session alive, and manages promotional popups and media assets.

Session state and the selected environment are stored locally and reused
by every command.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadDotEnv(envFile, cmd.Flags().Changed("env-file"))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "adminconsole.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file loaded before the configuration")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "Keep session state in memory only")
}

// loadDotEnv loads path into the process environment without overriding
// variables already set. A missing default file is ignored.
func loadDotEnv(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}
