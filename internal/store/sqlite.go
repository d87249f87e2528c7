// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	apperrors "heston-pricer/internal/errors"
	"heston-pricer/internal/models"
	"heston-pricer/pkg/utils"
)

// SQLiteStore implements ValuationStore using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry utils.RetryConfig
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperrors.NewStoreError("open", "creating database directory", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.NewStoreError("open", "failed to open database", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	retry := utils.DefaultRetryConfig()
	retry.Retryable = isBusy
	store := &SQLiteStore{db: db, retry: retry}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, apperrors.NewStoreError("open", "failed to initialize schema", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS valuations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		spot REAL NOT NULL,
		strike REAL NOT NULL,
		maturity REAL NOT NULL,
		rate REAL NOT NULL,
		v0 REAL NOT NULL,
		kappa REAL NOT NULL,
		theta REAL NOT NULL,
		sigma REAL NOT NULL,
		rho REAL NOT NULL,
		implied_vol REAL,
		observed_price REAL,
		bs_price REAL,
		heston_price REAL,
		p1 REAL,
		p2 REAL,
		status TEXT NOT NULL,
		unstable INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_valuations_timestamp ON valuations(timestamp);
	CREATE INDEX IF NOT EXISTS idx_valuations_status ON valuations(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isBusy reports a lock conflict with another writer.
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

// nullable maps NaN and Inf to NULL; SQLite has no representation for them.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// SaveValuation records a valuation and returns its ID.
func (s *SQLiteStore) SaveValuation(ctx context.Context, v *models.Valuation) (int64, error) {
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now()
	}
	unstable := 0
	if v.Unstable {
		unstable = 1
	}

	res, err := utils.RetryWithResult(ctx, s.retry, func() (sql.Result, error) {
		return s.db.ExecContext(ctx, `
			INSERT INTO valuations (timestamp, spot, strike, maturity, rate, v0, kappa, theta, sigma, rho, implied_vol, observed_price, bs_price, heston_price, p1, p2, status, unstable)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, v.Timestamp.UTC(), v.Market.Spot, v.Market.Strike, v.Market.Maturity, v.Market.Rate,
			v.Params.V0, v.Params.Kappa, v.Params.Theta, v.Params.Sigma, v.Params.Rho,
			nullable(v.ImpliedVol), nullable(v.ObservedPrice), nullable(v.BSPrice), nullable(v.HestonPrice),
			nullable(v.P1), nullable(v.P2), string(v.Status), unstable)
	})
	if err != nil {
		return 0, apperrors.NewStoreError("save", "failed to insert valuation", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.NewStoreError("save", "failed to read valuation id", err)
	}
	v.ID = id
	return id, nil
}

const valuationColumns = `id, timestamp, spot, strike, maturity, rate, v0, kappa, theta, sigma, rho, implied_vol, observed_price, bs_price, heston_price, p1, p2, status, unstable`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanValuation(row rowScanner) (*models.Valuation, error) {
	var (
		v                           models.Valuation
		iv, obs, bs, heston, p1, p2 sql.NullFloat64
		status                      string
		unstable                    int
	)
	err := row.Scan(&v.ID, &v.Timestamp,
		&v.Market.Spot, &v.Market.Strike, &v.Market.Maturity, &v.Market.Rate,
		&v.Params.V0, &v.Params.Kappa, &v.Params.Theta, &v.Params.Sigma, &v.Params.Rho,
		&iv, &obs, &bs, &heston, &p1, &p2, &status, &unstable)
	if err != nil {
		return nil, err
	}
	v.ImpliedVol = fromNullable(iv)
	v.ObservedPrice = fromNullable(obs)
	v.BSPrice = fromNullable(bs)
	v.HestonPrice = fromNullable(heston)
	v.P1 = fromNullable(p1)
	v.P2 = fromNullable(p2)
	v.Status = models.PricingStatus(status)
	v.Unstable = unstable != 0
	return &v, nil
}

// GetValuation retrieves a valuation by ID.
func (s *SQLiteStore) GetValuation(ctx context.Context, id int64) (*models.Valuation, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+valuationColumns+" FROM valuations WHERE id = ?", id)
	v, err := scanValuation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("valuation %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, apperrors.NewStoreError("get", "failed to read valuation", err)
	}
	return v, nil
}

// ListValuations retrieves valuations, newest first.
func (s *SQLiteStore) ListValuations(ctx context.Context, filter ValuationFilter) ([]models.Valuation, error) {
	query := "SELECT " + valuationColumns + " FROM valuations WHERE 1=1"
	args := []interface{}{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if !filter.StartDate.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndDate.UTC())
	}

	query += " ORDER BY timestamp DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("list", "failed to query valuations", err)
	}
	defer rows.Close()

	var out []models.Valuation
	for rows.Next() {
		v, err := scanValuation(rows)
		if err != nil {
			return nil, apperrors.NewStoreError("list", "failed to scan valuation", err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("list", "failed to iterate valuations", err)
	}
	return out, nil
}
