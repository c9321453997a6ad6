package store

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sqlite (reply cache).
type DB struct {
	*sql.DB
	now func() time.Time
}

// Open opens db at path, runs migrations. ":memory:" for tests.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// each pooled conn would get its own empty in-memory db
		db.SetMaxOpenConns(1)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{DB: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS replies (
			service TEXT NOT NULL,
			method TEXT NOT NULL,
			status INTEGER NOT NULL,
			body BLOB NOT NULL,
			fetched_at TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (service, method)
		);
		CREATE INDEX IF NOT EXISTS idx_replies_expires ON replies(expires_at);
	`)
	return err
}

// Entry: one cached reply body (raw BSON).
type Entry struct {
	Service   string
	Method    string
	Status    uint16
	Body      []byte
	FetchedAt time.Time
	ExpiresAt time.Time
}

// Put stores body for service+method, replacing any previous entry; ttl <= 0 is a no-op.
func (db *DB) Put(service, method string, status uint16, body []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := db.now().UTC()
	_, err := db.Exec(`INSERT INTO replies (service, method, status, body, fetched_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(service, method) DO UPDATE SET status = excluded.status, body = excluded.body,
		fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		service, method, status, body, now.Format(time.RFC3339), now.Add(ttl).Unix())
	return err
}

// Get returns the live entry or nil (missing or expired).
func (db *DB) Get(service, method string) (*Entry, error) {
	var e Entry
	var fetched string
	var expires int64
	err := db.QueryRow(`SELECT service, method, status, body, fetched_at, expires_at FROM replies
		WHERE service = ? AND method = ? AND expires_at > ?`, service, method, db.now().Unix()).
		Scan(&e.Service, &e.Method, &e.Status, &e.Body, &fetched, &expires)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.FetchedAt, _ = time.Parse(time.RFC3339, fetched)
	e.ExpiresAt = time.Unix(expires, 0).UTC()
	return &e, nil
}

// List returns all entries, expired ones included, ordered by service, method.
func (db *DB) List() ([]Entry, error) {
	rows, err := db.Query(`SELECT service, method, status, body, fetched_at, expires_at FROM replies ORDER BY service, method`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var fetched string
		var expires int64
		if err := rows.Scan(&e.Service, &e.Method, &e.Status, &e.Body, &fetched, &expires); err != nil {
			return nil, err
		}
		e.FetchedAt, _ = time.Parse(time.RFC3339, fetched)
		e.ExpiresAt = time.Unix(expires, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes expired entries, returns count.
func (db *DB) Prune() (int64, error) {
	res, err := db.Exec("DELETE FROM replies WHERE expires_at <= ?", db.now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
