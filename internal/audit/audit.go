// Package audit keeps a local, diagnostic-only record of every
// transaction this gateway has published, adapted from
// geth-17-indexer's sqlite transfer ledger. It plays no part in
// cursor or delivery correctness (spec §8's non-goals carve-out): a
// failed audit write is logged and swallowed by the caller, never
// propagated as a publish failure.
package audit

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"chaingateway/internal/apperrors"
	"chaingateway/internal/model"
)

// Store is a sqlite-backed publish ledger.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "opening audit database")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS published_transactions (
		hash          TEXT PRIMARY KEY,
		currency      TEXT NOT NULL,
		block_number  INTEGER NOT NULL,
		fee           TEXT NOT NULL,
		confirmations INTEGER NOT NULL,
		published_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "creating audit schema")
	}
	return &Store{db: db}, nil
}

// Record inserts a row for tx, replacing any prior row with the same
// hash (a republish after a crash-and-retry overwrites, rather than
// duplicates, the audit record).
func (s *Store) Record(ctx context.Context, tx model.BlockchainTransaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO published_transactions (hash, currency, block_number, fee, confirmations) VALUES (?, ?, ?, ?, ?)`,
		tx.Hash, string(tx.Currency), tx.BlockNumber, tx.Fee.String(), tx.Confirmations,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "recording audit entry")
	}
	return nil
}

// Record describes one row of the audit ledger, as returned by Recent.
type Record struct {
	Hash          string
	Currency      model.Currency
	BlockNumber   uint64
	Fee           string
	Confirmations uint64
}

// Recent returns the most recently published transactions for
// currency, newest first, used by gatewayctl's audit subcommand.
func (s *Store) Recent(ctx context.Context, currency model.Currency, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash, currency, block_number, fee, confirmations FROM published_transactions WHERE currency = ? ORDER BY published_at DESC LIMIT ?`,
		string(currency), limit,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "querying audit ledger")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var currencyStr string
		if err := rows.Scan(&r.Hash, &currencyStr, &r.BlockNumber, &r.Fee, &r.Confirmations); err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindInternal, "scanning audit row")
		}
		r.Currency = model.Currency(currencyStr)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
