// Package store is the relational persistence layer: typed operations over
// users, mailboxes, and mail, backed by a single SQLite database shared
// across every session and the delivery API. It guarantees UID monotonicity
// for the lifetime of the process and per-mailbox sequence-number
// compaction on expunge.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"kakimail/internal/changebus"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a single *sql.DB behind one mutex, matching the single-mutex
// model the spec calls for: handlers acquire it, perform one logical
// operation, and release.
type Store struct {
	mu sync.Mutex
	db *sql.DB

	bus   *changebus.Bus
	inbox singleflight.Group
}

const driverName = "kakimail_sqlite3"

// Open creates (if absent) and opens the SQLite database at path, creates
// the schema and indices, and registers the regex_capture/rfc2822_to_date
// user-defined functions needed by the SENTBEFORE/SENTON/SENTSINCE search
// keys.
func Open(path string) (*Store, error) {
	registerDriverOnce()

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, bus: changebus.New()}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Bus returns the store's change bus, the single producer handle IDLE
// sessions subscribe against.
func (s *Store) Bus() *changebus.Bus {
	return s.bus
}

func (s *Store) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			name TEXT UNIQUE,
			password TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS mailboxes (
			id INTEGER PRIMARY KEY,
			name TEXT,
			user_id INTEGER REFERENCES users(id),
			flags INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS mail (
			uid INTEGER UNIQUE,
			seqnum INTEGER,
			date TEXT,
			sender TEXT,
			recipients TEXT,
			data TEXT,
			mailbox_id INTEGER REFERENCES mailboxes(id),
			flags VARCHAR(5),
			PRIMARY KEY(uid)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_name_id ON users(name, id)`,
		`CREATE INDEX IF NOT EXISTS idx_mailboxes_user_id ON mailboxes(user_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_mail_date_uid_flags_mailbox ON mail(date, uid, flags, mailbox_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// MailboxSubscribedBit is the single bit of mailboxes.flags currently
// defined: subscription state.
const MailboxSubscribedBit = 1
