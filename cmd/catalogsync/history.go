package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/entrhq/catalogsync/pkg/store"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent runs, or the item results of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(c.cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				results, err := st.Results(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				t := newTable("ITEM", "OK", "FAILED STEP", "ERROR", "DURATION")
				for _, r := range results {
					t.Row(r.ItemID, yesNo(r.Success), r.FailedStep, r.Error, r.Duration.Round(time.Millisecond).String())
				}
				fmt.Fprintln(out, t.Render())
				return nil
			}

			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			t := newTable("RUN", "SOURCE", "STATUS", "TOTAL", "UPDATED", "FAILED", "STARTED")
			for _, r := range runs {
				t.Row(r.ID, r.Source, r.Status(), strconv.Itoa(r.Total), strconv.Itoa(r.Processed),
					strconv.Itoa(r.Failed), r.StartedAt.Local().Format(time.DateTime))
			}
			fmt.Fprintln(out, t.Render())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	return cmd
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))).
		Headers(headers...)
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
