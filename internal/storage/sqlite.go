package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/mselser95/basket-slippage/internal/simulation"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStorage persists cycle records to a local SQLite file.
type SQLiteStorage struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteStorage opens (or creates) the database and runs migrations.
func NewSQLiteStorage(path string, logger *zap.Logger) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s, err := newSQLiteStorage(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite-storage-opened", zap.String("path", path))
	return s, nil
}

func newSQLiteStorage(db *sql.DB, logger *zap.Logger) (*SQLiteStorage, error) {
	_, err := db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS cycle_records (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id           TEXT    NOT NULL,
		cycle            INTEGER NOT NULL,
		block            INTEGER NOT NULL,
		timestamp        INTEGER NOT NULL,
		mint_batch_id    INTEGER NOT NULL,
		input_amount     TEXT    NOT NULL,
		input_value      TEXT    NOT NULL,
		output_amount    TEXT    NOT NULL,
		output_value     TEXT    NOT NULL,
		slippage         TEXT    NOT NULL,
		within_tolerance INTEGER NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_cycle_run ON cycle_records(run_id, cycle)`)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteStorage{db: db, logger: logger}, nil
}

// StoreCycle inserts a record. Fixed-point amounts are stored as decimal text.
func (s *SQLiteStorage) StoreCycle(ctx context.Context, rec *simulation.CycleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	within := 0
	if rec.WithinTolerance {
		within = 1
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO cycle_records
		(run_id, cycle, block, timestamp, mint_batch_id,
		 input_amount, input_value, output_amount, output_value,
		 slippage, within_tolerance)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rec.RunID, rec.Cycle, int64(rec.Block), rec.Timestamp.Unix(), int64(rec.MintBatchID),
		rec.InputAmount.String(), rec.InputValue.String(),
		rec.OutputAmount.String(), rec.OutputValue.String(),
		rec.Slippage.String(), within,
	)
	if err != nil {
		return fmt.Errorf("insert cycle record: %w", err)
	}
	return nil
}

// CountRecords returns the number of records stored for a run.
func (s *SQLiteStorage) CountRecords(ctx context.Context, runID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cycle_records WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count cycle records: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	s.logger.Info("closing-sqlite-storage")
	return s.db.Close()
}
