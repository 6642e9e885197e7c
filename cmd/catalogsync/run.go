package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/catalogsync/pkg/app"
	"github.com/entrhq/catalogsync/pkg/catalog"
	"github.com/entrhq/catalogsync/pkg/report"
)

// batchFlags are shared by run and retry.
type batchFlags struct {
	loginTimeout time.Duration
	verbosity    string
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.loginTimeout, "login-timeout", 5*time.Minute, "how long to wait for the operator to log in")
	cmd.Flags().StringVarP(&f.verbosity, "output", "o", "normal", "console output: quiet, normal or verbose")
}

func newRunCmd(c *cli) *cobra.Command {
	var (
		flags   batchFlags
		include []string
		exclude []string
		sheet   string
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "run <items-file>",
		Short: "Update every item listed in a spreadsheet, CSV, YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := c.cfg.Catalog
			if len(include) > 0 {
				cat.Include = include
			}
			if len(exclude) > 0 {
				cat.Exclude = exclude
			}
			if sheet != "" {
				cat.Sheet = sheet
			}

			rep, err := catalog.LoadFile(args[0], cat)
			if err != nil {
				return err
			}
			console := report.NewConsole(cmd.OutOrStdout(), report.ParseVerbosity(flags.verbosity))
			console.Header(fmt.Sprintf("catalogsync %s: %d items from %s", version, len(rep.Items), args[0]))
			for _, is := range rep.Issues {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped row %d %s: %s (%s)\n", is.Row, is.ItemID, is.Kind, is.Detail)
			}
			if dryRun {
				for _, it := range rep.Items {
					fmt.Fprintln(cmd.OutOrStdout(), it.ID)
				}
				return nil
			}

			return runBatch(cmd.Context(), c, flags, console, func(a *app.App) (string, error) {
				return a.ProcessItems(rep.Items, args[0])
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVar(&include, "include", nil, "only item ids matching these globs")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "skip item ids matching these globs")
	cmd.Flags().StringVar(&sheet, "sheet", "", "spreadsheet sheet name (default: active sheet)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the items that would be processed and exit")
	return cmd
}

func newRetryCmd(c *cli) *cobra.Command {
	var flags batchFlags
	cmd := &cobra.Command{
		Use:   "retry <run-id>",
		Short: "Resubmit the failed items of a previous run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			console := report.NewConsole(cmd.OutOrStdout(), report.ParseVerbosity(flags.verbosity))
			console.Header(fmt.Sprintf("catalogsync %s: retrying run %s", version, args[0]))
			return runBatch(cmd.Context(), c, flags, console, func(a *app.App) (string, error) {
				return a.RetryRun(cmd.Context(), args[0])
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// runBatch opens a session, waits for login, runs submit and prints the
// event stream until the batch ends. Interrupting stops the batch after the
// current item.
func runBatch(ctx context.Context, c *cli, flags batchFlags, console *report.Console, submit func(*app.App) (string, error)) (err error) {
	a, err := app.Open(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Server.ShutdownTimeout)
		defer cancel()
		if serr := a.Shutdown(shutdownCtx); serr != nil && err == nil {
			err = serr
		}
	}()

	if _, err := a.StartSession(ctx); err != nil {
		return err
	}
	if err := waitForLogin(ctx, a, flags.loginTimeout, console); err != nil {
		return err
	}

	events, unsubscribe := a.Subscribe(1024)
	defer unsubscribe()

	if _, err := submit(a); err != nil {
		return err
	}

	stats := console.Run(ctx, events)
	if stats == nil {
		// Interrupted, or the console fell behind and was dropped.
		a.Stop()
		waitCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Batch.StopTimeout)
		defer cancel()
		_ = a.Wait(waitCtx)
	}
	if summary := a.LastSummary(); summary != nil {
		console.Summary(summary)
		if summary.Status == report.StatusFailed {
			return errors.New("every item failed")
		}
	}
	return ctx.Err()
}

const loginPollInterval = 2 * time.Second

func waitForLogin(ctx context.Context, a *app.App, timeout time.Duration, console *report.Console) error {
	if a.CheckAuthenticated(ctx) {
		return nil
	}
	console.Header("Log in to the back office in the browser window; waiting...")

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(loginPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("not logged in after %s", timeout)
		case <-ticker.C:
			if a.CheckAuthenticated(ctx) {
				return nil
			}
		}
	}
}
