package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scenegen/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past runs",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	return historyCmd
}

func openHistory(ctx *commandContext, cmd *cobra.Command) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, errors.New("run history is disabled (history.enabled = false)")
	}
	return history.Open(cmd.Context(), cfg.History.Path)
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx, cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					run.State,
					strconv.Itoa(run.Attempts),
					truncate(oneLine(run.Prompt), 48),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"ID", "Started", "State", "Attempts", "Prompt"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx, cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			run, attempts, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:       %s\n", run.ID)
			fmt.Fprintf(out, "State:     %s\n", run.State)
			fmt.Fprintf(out, "Started:   %s\n", run.StartedAt.Local().Format(time.DateTime))
			if run.FinishedAt != nil {
				fmt.Fprintf(out, "Duration:  %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
			}
			fmt.Fprintf(out, "Attempts:  %d (fixes %d, ceiling %s)\n", run.Attempts, run.Fixes, ceilingLabel(run.MaxFixAttempts))
			if run.PublishedPath != "" {
				fmt.Fprintf(out, "Video:     %s\n", run.PublishedPath)
			}
			if run.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:     [%s] %s\n", run.ErrorCode, oneLine(run.ErrorMessage))
			}
			fmt.Fprintf(out, "Prompt:\n%s\n", indent(strings.TrimSpace(run.Prompt)))

			if len(attempts) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(attempts))
			for _, a := range attempts {
				rows = append(rows, []string{
					strconv.Itoa(a.Number),
					a.Outcome,
					strconv.Itoa(a.ExitCode),
					a.FinishedAt.Sub(a.StartedAt).Round(time.Millisecond).String(),
					truncate(oneLine(lastLine(a.Stderr)), 60),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"#", "Outcome", "Exit", "Elapsed", "Last stderr line"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func ceilingLabel(n int) string {
	if n <= 0 {
		return "unbounded"
	}
	return strconv.Itoa(n)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
