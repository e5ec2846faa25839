package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mselser95/basket-slippage/internal/simulation"
	"go.uber.org/zap"
)

const consoleRule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// ConsoleStorage implements Storage by pretty-printing to console.
type ConsoleStorage struct {
	out    io.Writer
	logger *zap.Logger
}

// NewConsoleStorage creates a console storage writing to stdout.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		out:    os.Stdout,
		logger: logger,
	}
}

// StoreCycle pretty-prints a cycle record.
func (c *ConsoleStorage) StoreCycle(ctx context.Context, rec *simulation.CycleRecord) error {
	verdict := "✅ within tolerance"
	if !rec.WithinTolerance {
		verdict = "❌ exceeds tolerance"
	}

	_, err := fmt.Fprintf(c.out,
		"\n%s\n🔁 CYCLE %d @ block %d (%s)\n%s\n"+
			"  Input:    %s => %s USD\n"+
			"  Output:   %s => %s USD\n"+
			"  Slippage: %s %s\n%s\n",
		consoleRule,
		rec.Cycle, rec.Block, rec.Timestamp.Format("2006-01-02 15:04:05"),
		consoleRule,
		rec.InputAmount, rec.InputValue,
		rec.OutputAmount, rec.OutputValue,
		rec.Slippage, verdict,
		consoleRule,
	)
	if err != nil {
		return fmt.Errorf("print cycle %d: %w", rec.Cycle, err)
	}
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
