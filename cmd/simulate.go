package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mselser95/basket-slippage/internal/app"
	"github.com/mselser95/basket-slippage/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the slippage simulation",
	Long: `Runs deposit, mint, value, redeem and advance cycles from the start
block until the end block (or the cycle limit) and exports one record per
cycle to the configured sinks.

Configuration is read from the environment (and .env when present).
Flags override the corresponding environment variables.

Examples:
  # Paper run with the built-in scenario, ten cycles
  go run . simulate --cycles 10

  # Forked chain run
  BACKEND_MODE=live RPC_URL=http://127.0.0.1:8545 PRIVATE_KEY=... \
    go run . simulate --scenario scenario.yaml --storage jsonl,sqlite`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().Int("cycles", 0, "Stop after this many cycles (0 = until end block)")
	simulateCmd.Flags().String("scenario", "", "Scenario YAML file (overrides SCENARIO_FILE)")
	simulateCmd.Flags().String("backend", "", "Backend mode: paper or live (overrides BACKEND_MODE)")
	simulateCmd.Flags().String("storage", "", "Comma separated sinks (overrides STORAGE_MODE)")
	simulateCmd.Flags().Bool("keep-serving", false, "Keep the HTTP API up after the run until interrupted")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	err = applySimulateFlags(cmd, cfg)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	keepServing, _ := cmd.Flags().GetBool("keep-serving")

	application, err := app.New(cfg, logger, &app.Options{KeepServing: keepServing})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	run, err := application.Run()
	if run != nil {
		printSummary(cmd.OutOrStdout(), run.Summary())
	}
	if err != nil {
		return fmt.Errorf("run simulation: %w", err)
	}

	return nil
}

func loadConfig() (*config.Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func applySimulateFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("cycles") {
		cfg.SimMaxCycles, _ = flags.GetInt("cycles")
	}
	if flags.Changed("scenario") {
		cfg.ScenarioFile, _ = flags.GetString("scenario")
	}
	if flags.Changed("backend") {
		cfg.BackendMode, _ = flags.GetString("backend")
	}
	if flags.Changed("storage") {
		cfg.StorageMode, _ = flags.GetString("storage")
	}

	err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("validate flags: %w", err)
	}
	return nil
}
