package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
)

// Backend modes.
const (
	BackendPaper = "paper"
	BackendLive  = "live"
)

// Storage modes accepted in STORAGE_MODE.
const (
	StorageConsole  = "console"
	StorageJSONL    = "jsonl"
	StorageCSV      = "csv"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel    string
	HTTPPort    string
	HTTPEnabled bool

	// Backend
	BackendMode  string // "paper" or "live"
	ScenarioFile string

	// Simulation
	SimInputAmount      string
	SimMaxSlippage      string
	SimStartBlock       uint64
	SimEndBlock         uint64
	SimMaxCycles        int
	SimAdvanceBlocks    uint64
	SimPriceConcurrency int

	// Chain
	RPCURL         string
	PrivateKey     string
	GasLimit       uint64
	ReceiptTimeout time.Duration

	// Storage
	StorageMode  string // comma separated list of sinks
	ResultsPath  string
	SQLitePath   string
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort:    getEnvOrDefault("HTTP_PORT", "8080"),
		HTTPEnabled: getBoolOrDefault("HTTP_ENABLED", true),

		// Backend defaults
		BackendMode:  getEnvOrDefault("BACKEND_MODE", BackendPaper),
		ScenarioFile: os.Getenv("SCENARIO_FILE"),

		// Simulation defaults
		SimInputAmount:      getEnvOrDefault("SIM_INPUT_AMOUNT", "100000000"),
		SimMaxSlippage:      getEnvOrDefault("SIM_MAX_SLIPPAGE", "0.005"),
		SimStartBlock:       getUint64OrDefault("SIM_START_BLOCK", 12833323),
		SimEndBlock:         getUint64OrDefault("SIM_END_BLOCK", 13307297),
		SimMaxCycles:        getIntOrDefault("SIM_MAX_CYCLES", 0),
		SimAdvanceBlocks:    getUint64OrDefault("SIM_ADVANCE_BLOCKS", 35),
		SimPriceConcurrency: getIntOrDefault("SIM_PRICE_CONCURRENCY", 4),

		// Chain defaults
		RPCURL:         getEnvOrDefault("RPC_URL", "http://127.0.0.1:8545"),
		PrivateKey:     os.Getenv("PRIVATE_KEY"),
		GasLimit:       getUint64OrDefault("GAS_LIMIT", 3_000_000),
		ReceiptTimeout: getDurationOrDefault("RECEIPT_TIMEOUT", 2*time.Minute),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", StorageConsole),
		ResultsPath:  getEnvOrDefault("RESULTS_PATH", "results"),
		SQLitePath:   getEnvOrDefault("SQLITE_PATH", "results/slippage.db"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "slippage"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "slippage123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "basket_slippage"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	err := c.check()
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidConfiguration, err)
	}
	return nil
}

func (c *Config) check() error {
	if c.HTTPEnabled && c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.BackendMode != BackendPaper && c.BackendMode != BackendLive {
		return fmt.Errorf("BACKEND_MODE must be 'paper' or 'live', got %q", c.BackendMode)
	}

	if c.BackendMode == BackendLive {
		if c.RPCURL == "" {
			return fmt.Errorf("RPC_URL cannot be empty in live mode")
		}
		if c.PrivateKey == "" {
			return fmt.Errorf("PRIVATE_KEY cannot be empty in live mode")
		}
		if c.ScenarioFile == "" {
			return fmt.Errorf("SCENARIO_FILE is required in live mode")
		}
	}

	input, err := fixedpoint.Parse(c.SimInputAmount)
	if err != nil {
		return fmt.Errorf("SIM_INPUT_AMOUNT: %w", err)
	}
	if input.IsZero() {
		return fmt.Errorf("SIM_INPUT_AMOUNT must be positive")
	}

	_, err = fixedpoint.Parse(c.SimMaxSlippage)
	if err != nil {
		return fmt.Errorf("SIM_MAX_SLIPPAGE: %w", err)
	}

	if c.SimEndBlock <= c.SimStartBlock {
		return fmt.Errorf("SIM_END_BLOCK (%d) must be after SIM_START_BLOCK (%d)", c.SimEndBlock, c.SimStartBlock)
	}

	if c.SimMaxCycles < 0 {
		return fmt.Errorf("SIM_MAX_CYCLES must be non-negative, got %d", c.SimMaxCycles)
	}

	if c.SimAdvanceBlocks == 0 {
		return fmt.Errorf("SIM_ADVANCE_BLOCKS must be positive")
	}

	if c.SimPriceConcurrency < 1 {
		return fmt.Errorf("SIM_PRICE_CONCURRENCY must be at least 1, got %d", c.SimPriceConcurrency)
	}

	modes := c.StorageModes()
	if len(modes) == 0 {
		return fmt.Errorf("STORAGE_MODE cannot be empty")
	}
	for _, m := range modes {
		switch m {
		case StorageConsole, StorageJSONL, StorageCSV, StoragePostgres, StorageSQLite:
		default:
			return fmt.Errorf("STORAGE_MODE contains unknown sink %q", m)
		}
	}

	return nil
}

// StorageModes splits STORAGE_MODE into its sinks, dropping blanks and duplicates.
func (c *Config) StorageModes() []string {
	seen := make(map[string]bool)
	var modes []string
	for _, m := range strings.Split(c.StorageMode, ",") {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		modes = append(modes, m)
	}
	return modes
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getUint64OrDefault(key string, defaultValue uint64) uint64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	uintVal, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return uintVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
