package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/funpik/adminconsole/pkg/api"
	"github.com/funpik/adminconsole/pkg/session"
)

var (
	popupScreen string
	popupFile   string
	popupData   string
)

var popupsCmd = &cobra.Command{
	Use:   "popups",
	Short: "Manage promotional popups",
}

var popupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the popups configured for a screen",
	RunE:  runPopupsList,
}

var popupsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a popup from a JSON document",
	RunE:  runPopupsCreate,
}

func init() {
	popupsListCmd.Flags().StringVar(&popupScreen, "screen", "", "Screen to list popups for")
	_ = popupsListCmd.MarkFlagRequired("screen")

	popupsCreateCmd.Flags().StringVarP(&popupFile, "file", "f", "", "Path to a JSON file describing the popup")
	popupsCreateCmd.Flags().StringVar(&popupData, "data", "", "Inline JSON describing the popup")
	popupsCreateCmd.MarkFlagsMutuallyExclusive("file", "data")

	popupsCmd.AddCommand(popupsListCmd, popupsCreateCmd)
	rootCmd.AddCommand(popupsCmd)
}

func runPopupsList(cmd *cobra.Command, args []string) error {
	app, _, err := openApp(cmd, session.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ctx := cmd.Context()
	snap, err := requireSession(ctx, app)
	if err != nil {
		return err
	}

	popups, err := app.API.PopupsByScreen(ctx, snap.Token, popupScreen)
	if err != nil {
		return err
	}
	return printJSON(cmd, popups)
}

func runPopupsCreate(cmd *cobra.Command, args []string) error {
	popup, err := readPopup()
	if err != nil {
		return err
	}

	app, _, err := openApp(cmd, session.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ctx := cmd.Context()
	snap, err := requireSession(ctx, app)
	if err != nil {
		return err
	}

	body, err := app.API.CreatePopup(ctx, snap.Token, popup)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Popup created")
	if len(body) > 0 && string(body) != "null" {
		return printJSON(cmd, body)
	}
	return nil
}

func readPopup() (api.Popup, error) {
	var raw []byte
	switch {
	case popupFile != "":
		data, err := os.ReadFile(popupFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read popup file: %w", err)
		}
		raw = data
	case popupData != "":
		raw = []byte(popupData)
	default:
		return nil, errors.New("either --file or --data is required")
	}

	var popup api.Popup
	if err := json.Unmarshal(raw, &popup); err != nil {
		return nil, fmt.Errorf("invalid popup JSON: %w", err)
	}
	if popup == nil {
		return nil, errors.New("popup must be a JSON object")
	}
	return popup, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
