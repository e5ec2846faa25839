package config

import (
	"os"
	"testing"
)

// BenchmarkConfig_Validate benchmarks configuration validation
func BenchmarkConfig_Validate(b *testing.B) {
	cfg := &Config{
		HTTPPort:            "8080",
		BackendMode:         BackendPaper,
		SimInputAmount:      "100000000",
		SimMaxSlippage:      "0.005",
		SimStartBlock:       12833323,
		SimEndBlock:         13307297,
		SimAdvanceBlocks:    35,
		SimPriceConcurrency: 4,
		StorageMode:         "console,jsonl",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.Validate()
	}
}

// BenchmarkConfig_LoadFromEnv benchmarks environment variable loading
func BenchmarkConfig_LoadFromEnv(b *testing.B) {
	os.Setenv("SIM_INPUT_AMOUNT", "1000")
	os.Setenv("STORAGE_MODE", "console,csv")
	defer func() {
		os.Unsetenv("SIM_INPUT_AMOUNT")
		os.Unsetenv("STORAGE_MODE")
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = LoadFromEnv()
	}
}

// BenchmarkParseScenario benchmarks scenario decoding
func BenchmarkParseScenario(b *testing.B) {
	raw := []byte(testScenarioYAML)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ParseScenario(raw)
	}
}
