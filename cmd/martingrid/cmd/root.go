package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "martingrid",
	Short: "Martingale grid strategy backtester for crypto perpetuals",
	Long: `Martingrid replays tick data through a martingale grid strategy with
hedge protection and reports the results.

It provides tools for:
  - Backtesting the grid strategy against tick CSV files (xz/gz supported)
  - Dual-timeframe EMA/ADX/CCI signal generation
  - Drawdown- and time-triggered counter-grid hedging
  - Trade and equity journaling to CSV or SQLite
  - Run comparison from the journal database`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
