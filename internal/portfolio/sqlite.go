package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteBook reads in-force exposures from a SQLite database.
type SQLiteBook struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteBook opens (or creates) the database, runs migrations and seeds
// DefaultExposures into an empty book.
func NewSQLiteBook(dbPath string) (*SQLiteBook, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so an operator can edit the book while the pipeline reads it.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	b := &SQLiteBook{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := b.seed(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed: %w", err)
	}

	log.Printf("[INFO] sqlite portfolio book opened: %s", dbPath)
	return b, nil
}

func (b *SQLiteBook) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS in_force_exposures (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			added_at  INTEGER NOT NULL,
			insured   TEXT,
			tsi       REAL NOT NULL,
			active    INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exposures_active ON in_force_exposures(active)`,
	}
	for _, s := range stmts {
		if _, err := b.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (b *SQLiteBook) seed() error {
	var n int
	if err := b.db.QueryRow(`SELECT COUNT(*) FROM in_force_exposures`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, tsi := range DefaultExposures {
		if err := b.AddExposure(context.Background(), "seed", tsi); err != nil {
			return err
		}
	}
	return nil
}

// AddExposure records a newly written risk in the book.
func (b *SQLiteBook) AddExposure(ctx context.Context, insured string, tsi float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.db.ExecContext(ctx, `INSERT INTO in_force_exposures (added_at, insured, tsi) VALUES (?,?,?)`,
		time.Now().Unix(), insured, tsi)
	if err != nil {
		return fmt.Errorf("insert exposure: %w", err)
	}
	return nil
}

// Retire removes every exposure recorded for insured from the active book.
func (b *SQLiteBook) Retire(ctx context.Context, insured string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	res, err := b.db.ExecContext(ctx, `UPDATE in_force_exposures SET active = 0 WHERE insured = ? AND active = 1`, insured)
	if err != nil {
		return 0, fmt.Errorf("retire exposure: %w", err)
	}
	return res.RowsAffected()
}

func (b *SQLiteBook) Exposures(ctx context.Context) ([]float64, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT tsi FROM in_force_exposures WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query exposures: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var tsi float64
		if err := rows.Scan(&tsi); err != nil {
			return nil, fmt.Errorf("scan exposure: %w", err)
		}
		out = append(out, tsi)
	}
	return out, rows.Err()
}

func (b *SQLiteBook) Close() error {
	log.Println("[INFO] closing sqlite portfolio book")
	return b.db.Close()
}
