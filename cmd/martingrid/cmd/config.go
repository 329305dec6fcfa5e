package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zuchengchen/martingrid/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files for backtest runs.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  martingrid config init --output run.yaml
  martingrid config validate --file run.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "martingrid.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  martingrid backtest --config %s --ticks <file>\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Account:  %.2f at %gx leverage\n", cfg.Account.InitialCapital, cfg.Account.Leverage)
	fmt.Printf("  Signal:   EMA %d/%d, cooldown %s\n", cfg.Signal.FastPeriod, cfg.Signal.SlowPeriod, cfg.Signal.Cooldown.Std())
	fmt.Printf("  Grid:     base qty %g, up to %d levels\n", cfg.Grid.BaseQuantity, cfg.Signal.MaxLevels)
	fmt.Printf("  Hedge:    %g%% drawdown or %s held\n", cfg.Hedge.DrawdownThreshold*100, cfg.Hedge.MaxHold.Std())
	fmt.Printf("  Journal:  %s\n", cfg.Journal.Type)
	return nil
}
