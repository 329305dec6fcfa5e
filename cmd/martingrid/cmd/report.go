package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zuchengchen/martingrid/journal"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect journaled runs",
	Long: `Report lists runs stored in a SQLite journal, or prints one run's
trades in detail.

Examples:
  martingrid report --db runs.db
  martingrid report --db runs.db --run 2f9c...`,
	RunE: runReport,
}

var (
	reportDBPath string
	reportRunID  string
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportDBPath, "db", "d", "", "path to SQLite journal (required)")
	reportCmd.Flags().StringVarP(&reportRunID, "run", "r", "", "run ID to show in detail")
	reportCmd.MarkFlagRequired("db")
}

func runReport(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(reportDBPath, "")
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	if reportRunID == "" {
		return listRuns(j)
	}
	return showRun(j, reportRunID)
}

func listRuns(j *journal.SQLite) error {
	runs, err := j.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs journaled")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tCREATED\tDATASET\tRETURN%\tMAX DD%\tTRADES\tWIN%")
	for _, r := range runs {
		winRate := 0.0
		if r.Trades > 0 {
			winRate = float64(r.Wins) / float64(r.Trades) * 100
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%+.2f\t%.2f\t%d\t%.1f\n",
			shortID(r.RunID), r.Created.Format("2006-01-02 15:04"), r.Dataset,
			r.ReturnPct, r.MaxDrawdownPct, r.Trades, winRate)
	}
	return w.Flush()
}

func showRun(j *journal.SQLite, runID string) error {
	run, err := j.GetRun(runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s  (%s)\n", run.RunID, run.Dataset)
	fmt.Printf("  %s -> %s\n", run.Start.Format("2006-01-02 15:04"), run.End.Format("2006-01-02 15:04"))
	fmt.Printf("  Capital %.2f -> %.2f  (%+.2f%%, max DD %.2f%%)\n",
		run.InitialCapital, run.FinalEquity, run.ReturnPct, run.MaxDrawdownPct)
	fmt.Printf("  Trades %d (W %d / L %d), fees %.2f\n\n", run.Trades, run.Wins, run.Losses, run.FeesPaid)

	trades, err := j.ListTrades(runID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLOSED\tSYMBOL\tBOOK\tSIDE\tQTY\tENTRY\tEXIT\tP/L\tREASON")
	for _, t := range trades {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.6f\t%.2f\t%.2f\t%+.2f\t%s\n",
			t.CloseTime.Format("01-02 15:04:05"), t.Symbol, t.Book, t.Side,
			t.Quantity, t.EntryPrice, t.ExitPrice, t.RealizedPL, t.Reason)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
