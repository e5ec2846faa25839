package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/mselser95/basket-slippage/internal/simulation"
	"go.uber.org/zap"
)

var csvHeader = []string{ //nolint:gochecknoglobals // fixed column order
	"block",
	"timestamp",
	"input_amount",
	"input_value",
	"output_amount",
	"output_value",
	"slippage",
	"within_tolerance",
}

// CSVStorage appends one row per cycle. The header is written only when the
// file starts out empty.
type CSVStorage struct {
	mu     sync.Mutex
	file   *os.File
	w      *csv.Writer
	path   string
	logger *zap.Logger
}

// NewCSVStorage opens path for appending.
func NewCSVStorage(path string, logger *zap.Logger) (*CSVStorage, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat csv file: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		err = w.Write(csvHeader)
		if err == nil {
			w.Flush()
			err = w.Error()
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}

	logger.Info("csv-storage-opened", zap.String("path", path))

	return &CSVStorage{
		file:   f,
		w:      w,
		path:   path,
		logger: logger,
	}, nil
}

// StoreCycle appends a row and flushes it.
func (c *CSVStorage) StoreCycle(ctx context.Context, rec *simulation.CycleRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := []string{
		strconv.FormatUint(rec.Block, 10),
		strconv.FormatInt(rec.Timestamp.Unix(), 10),
		rec.InputAmount.String(),
		rec.InputValue.String(),
		rec.OutputAmount.String(),
		rec.OutputValue.String(),
		rec.Slippage.String(),
		strconv.FormatBool(rec.WithinTolerance),
	}

	err := c.w.Write(row)
	if err != nil {
		return fmt.Errorf("write cycle %d: %w", rec.Cycle, err)
	}

	c.w.Flush()
	return c.w.Error()
}

// Close flushes and closes the file.
func (c *CSVStorage) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("closing-csv-storage", zap.String("path", c.path))
	c.w.Flush()
	return c.file.Close()
}
