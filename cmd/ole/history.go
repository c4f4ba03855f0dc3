package main

import (
	"fmt"
	"math"
	"strconv"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"github.com/OpenLEDEval/OLE-Toolset/analysis"
	"github.com/OpenLEDEval/OLE-Toolset/store"
)

const defaultHistory = "ole.db"

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded analysis runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHistory(cmd)
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "number of runs to show, 0 for all")
	a.bind(cmd, "history", "limit")

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <run-id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openHistory()
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func (a *app) openHistory() (*store.Store, error) {
	db := a.v.GetString("db")
	if db == "" {
		db = defaultHistory
	}
	return store.Open(db)
}

func fmtValue(f float64, prec int) string {
	if math.IsNaN(f) {
		return "n/a"
	}
	if math.IsInf(f, 1) {
		return "inf"
	}
	return strconv.FormatFloat(f, 'f', prec, 64)
}

func (a *app) runHistory(cmd *cobra.Command) error {
	s, err := a.openHistory()
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.List(cmd.Context(), a.v.GetInt("history.limit"))
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
		return nil
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("run", "date", "name", "transfer", "samples", "peak", "ΔE ITP mean", "ΔE2000 mean")
	for _, r := range runs {
		itp, _ := r.Metric(analysis.MetricICtCp)
		de, _ := r.Metric(analysis.MetricDE2000)
		t.Row(r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Name, r.Transfer,
			fmt.Sprintf("%d/%d", r.Samples-r.Excluded, r.Samples),
			fmtValue(r.PeakLuminance, 1), fmtValue(itp.Mean, 3), fmtValue(de.Mean, 3))
	}
	_, err = lipgloss.Fprintln(cmd.OutOrStdout(), t.Render())
	return err
}
