package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/goccy/go-json"
	"github.com/mselser95/basket-slippage/internal/simulation"
	"go.uber.org/zap"
)

// JSONLStorage appends one JSON object per cycle to a file.
type JSONLStorage struct {
	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	path   string
	logger *zap.Logger
}

// NewJSONLStorage opens path for appending, creating it if needed.
func NewJSONLStorage(path string, logger *zap.Logger) (*JSONLStorage, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}

	logger.Info("jsonl-storage-opened", zap.String("path", path))

	return &JSONLStorage{
		file:   f,
		enc:    json.NewEncoder(f),
		path:   path,
		logger: logger,
	}, nil
}

// StoreCycle appends the record as a single line.
func (j *JSONLStorage) StoreCycle(ctx context.Context, rec *simulation.CycleRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.enc.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode cycle %d: %w", rec.Cycle, err)
	}
	return nil
}

// Close closes the file.
func (j *JSONLStorage) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.logger.Info("closing-jsonl-storage", zap.String("path", j.path))
	return j.file.Close()
}

// ReadJSONL decodes every record from a JSONL stream. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]simulation.CycleRecord, error) {
	var records []simulation.CycleRecord

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec simulation.CycleRecord
		err := json.Unmarshal(raw, &rec)
		if err != nil {
			return nil, fmt.Errorf("decode line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}

	return records, nil
}
