package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/mselser95/basket-slippage/internal/simulation"
	"go.uber.org/zap"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS cycle_records (
		run_id           TEXT        NOT NULL,
		cycle            INTEGER     NOT NULL,
		block            BIGINT      NOT NULL,
		block_time       TIMESTAMPTZ NOT NULL,
		mint_batch_id    BIGINT      NOT NULL,
		input_amount     NUMERIC     NOT NULL,
		input_value      NUMERIC     NOT NULL,
		output_amount    NUMERIC     NOT NULL,
		output_value     NUMERIC     NOT NULL,
		slippage         NUMERIC     NOT NULL,
		within_tolerance BOOLEAN     NOT NULL,
		PRIMARY KEY (run_id, cycle)
	)
`

// NewPostgresStorage connects and makes sure the cycle_records table exists.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}

	err = p.migrate(context.Background())
	if err != nil {
		db.Close()
		return nil, err
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return p, nil
}

func (p *PostgresStorage) migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, postgresSchema)
	if err != nil {
		return fmt.Errorf("create cycle_records table: %w", err)
	}
	return nil
}

// StoreCycle inserts a cycle record. Amounts are stored as exact decimals.
func (p *PostgresStorage) StoreCycle(ctx context.Context, rec *simulation.CycleRecord) error {
	query := `
		INSERT INTO cycle_records (
			run_id, cycle, block, block_time, mint_batch_id,
			input_amount, input_value, output_amount, output_value,
			slippage, within_tolerance
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		rec.RunID,
		rec.Cycle,
		int64(rec.Block),
		rec.Timestamp,
		int64(rec.MintBatchID),
		rec.InputAmount.String(),
		rec.InputValue.String(),
		rec.OutputAmount.String(),
		rec.OutputValue.String(),
		rec.Slippage.String(),
		rec.WithinTolerance,
	)
	if err != nil {
		return fmt.Errorf("insert cycle record: %w", err)
	}

	p.logger.Debug("cycle-record-stored",
		zap.String("run-id", rec.RunID),
		zap.Int("cycle", rec.Cycle))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
