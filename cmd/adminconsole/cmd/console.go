package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/funpik/adminconsole/pkg/config"
	"github.com/funpik/adminconsole/pkg/environment"
	"github.com/funpik/adminconsole/pkg/session"
	"github.com/funpik/adminconsole/pkg/watcher"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Keep the session open with a live countdown",
	Long: `Run the session interactively.

The remaining session time is shown every minute and on every state change.
Commands read from standard input:
  e, extend   refresh the token (last 30 minutes only)
  s, status   show the session state
  l, logout   end the session and exit
  q, quit     exit, keeping the session

Changes to the configuration file are applied while running; moving the
backend host ends the session.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	updates := make(chan session.Snapshot, 1)
	opts := session.Options{
		Notifier: printNotifier{out: out},
		OnChange: func(s session.Snapshot) { offerLatest(updates, s) },
	}

	app, logger, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	snap, err := requireSession(ctx, app)
	if err != nil {
		return err
	}
	printStatus(out, string(app.Selector.Current(ctx)), app.Selector.Host(ctx), snap)

	if _, statErr := os.Stat(cfgFile); statErr == nil {
		w, err := watcher.New(watcher.WatcherConfig{
			Loader: config.NewFileLoader(cfgFile),
			Reloader: watcher.ReloaderFunc(func(ctx context.Context, cfg *config.Config) error {
				flags, err := environment.LoadBuildFlags(ctx)
				if err != nil {
					return err
				}
				return app.ApplyConfig(ctx, cfg, flags)
			}),
			Current:    app.Config,
			ConfigPath: cfgFile,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		watchCtx, cancelWatch := context.WithCancel(ctx)
		watchDone := make(chan struct{})
		go func() {
			defer close(watchDone)
			if err := w.Watch(watchCtx); err != nil {
				logger.Error("Configuration watch failed", "error", err)
			}
		}()
		// runs before app.Close: no reload may touch a closed store
		defer func() {
			cancelWatch()
			<-watchDone
		}()
	}

	lines := make(chan string)
	go readCommands(cmd.InOrStdin(), lines)
	var commands <-chan string = lines

	last := snap
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nBye")
			return nil

		case s := <-updates:
			if s.State == session.Unauthenticated {
				fmt.Fprintln(out, "Session ended")
				return nil
			}
			if shouldReport(last, s) {
				fmt.Fprintf(out, "Time left: %s\n", formatSeconds(s.TimeLeftSeconds, s.TimeLeftKnown))
				if s.CanExtend && !last.CanExtend {
					fmt.Fprintln(out, "Session can be extended (type: e)")
				}
			}
			last = s

		case line, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			switch line {
			case "e", "extend":
				if err := app.Controller.ExtendSession(ctx); err != nil {
					fmt.Fprintf(out, "Extend: %v\n", err)
				}
			case "s", "status":
				printStatus(out, string(app.Selector.Current(ctx)), app.Selector.Host(ctx), app.Controller.Snapshot())
			case "l", "logout":
				app.Controller.Logout(ctx)
			case "q", "quit":
				return nil
			case "":
			default:
				fmt.Fprintf(out, "Unknown command %q\n", line)
			}
		}
	}
}

// offerLatest replaces any pending snapshot with s.
func offerLatest(ch chan session.Snapshot, s session.Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// shouldReport is true on whole minutes and whenever the session changes
// in a way the operator would act on.
func shouldReport(prev, cur session.Snapshot) bool {
	if prev.State != cur.State || prev.CanExtend != cur.CanExtend || prev.TimeLeftKnown != cur.TimeLeftKnown {
		return true
	}
	if cur.TimeLeftSeconds > prev.TimeLeftSeconds {
		return true
	}
	return cur.TimeLeftKnown && cur.TimeLeftSeconds%60 == 0 && cur.TimeLeftSeconds != prev.TimeLeftSeconds
}

// readCommands forwards trimmed, lower-cased lines until in is exhausted.
func readCommands(in io.Reader, commands chan<- string) {
	defer close(commands)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		commands <- strings.ToLower(strings.TrimSpace(scanner.Text()))
	}
}
