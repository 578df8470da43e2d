// Package sqlite implements the repository interfaces on SQLite.
//
// WHY modernc.org/sqlite?
// It is a pure-Go translation of SQLite — no CGo, no C toolchain, trivial
// cross-compilation. The driver registers itself as "sqlite" via the blank
// import below.
//
// The money-correctness invariants of this service live here: credit spend
// and grant are single UPDATE statements (SQLite serializes writers, so a
// guarded UPDATE is atomic per row), and payment completion is one
// transaction that flips the status and grants credits together.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sql.DB pool and hands out per-aggregate stores.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// PRAGMAS RIDE THE DSN:
// database/sql is a connection POOL. A `PRAGMA` executed through conn.Exec
// lands on whichever single connection the pool hands out, while later
// queries may run on fresh connections that never saw it. busy_timeout and
// foreign_keys are per-connection, so they are passed as _pragma DSN
// parameters — the driver applies them to every connection it opens.
//   - journal_mode=WAL: reads proceed while a write is in flight; inbound
//     chat events for different users arrive concurrently.
//   - busy_timeout: a writer that hits a locked database waits instead of
//     failing, keeping the concurrent spend/complete paths free of
//     spurious SQLITE_BUSY errors.
func New(dbPath string) (*DB, error) {
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Always defer this next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Users returns the user/ledger store backed by this database.
func (db *DB) Users() *UserStore { return &UserStore{conn: db.conn} }

// Payments returns the payment record store backed by this database.
func (db *DB) Payments() *PaymentStore { return &PaymentStore{conn: db.conn} }

// Analyses returns the analysis audit store backed by this database.
func (db *DB) Analyses() *AnalysisStore { return &AnalysisStore{conn: db.conn} }

// Support returns the support message store backed by this database.
func (db *DB) Support() *SupportStore { return &SupportStore{conn: db.conn} }

// migrate creates the four durable tables. CREATE TABLE IF NOT EXISTS keeps
// this safe to run on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			user_id       INTEGER PRIMARY KEY,
			username      TEXT NOT NULL DEFAULT '',
			first_name    TEXT NOT NULL DEFAULT '',
			last_name     TEXT NOT NULL DEFAULT '',
			credits       INTEGER NOT NULL DEFAULT 0 CHECK (credits >= 0),
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_activity DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS payments (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			token           TEXT NOT NULL UNIQUE,
			user_id         INTEGER NOT NULL REFERENCES users(user_id),
			amount          REAL NOT NULL,
			credits_granted INTEGER NOT NULL,
			status          TEXT NOT NULL DEFAULT 'pending',
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at    DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments(user_id);
		CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);
	`)
	if err != nil {
		return fmt.Errorf("creating payments table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS analyses (
			id          TEXT PRIMARY KEY,
			user_id     INTEGER NOT NULL REFERENCES users(user_id),
			role        TEXT NOT NULL,
			text_length INTEGER NOT NULL,
			tokens_used INTEGER NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_analyses_user_id ON analyses(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating analyses table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS support_messages (
			id         TEXT PRIMARY KEY,
			user_id    INTEGER NOT NULL REFERENCES users(user_id),
			message    TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'new',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_support_messages_status ON support_messages(status);
	`)
	if err != nil {
		return fmt.Errorf("creating support_messages table: %w", err)
	}

	return nil
}
