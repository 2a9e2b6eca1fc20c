package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"

	"github.com/aprendeyjuega/asset-relay/config"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_stores (
	tag TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS cache_entries (
	tag TEXT NOT NULL,
	key TEXT NOT NULL,
	snapshot BLOB NOT NULL,
	PRIMARY KEY (tag, key)
);
`

type sqliteStorage struct {
	db      *sql.DB
	loggers ldlog.Loggers
}

type sqliteStore struct {
	storage *sqliteStorage
	tag     string
}

// NewSQLiteStorage creates a Storage that persists every generation in a local SQLite database file.
func NewSQLiteStorage(dbConfig config.SQLiteConfig, loggers ldlog.Loggers) (Storage, error) {
	if strings.TrimSpace(dbConfig.Path) == "" {
		return nil, errSQLitePathless
	}
	dsn := filepath.Clean(dbConfig.Path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errOpeningStorage("SQLite", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errOpeningStorage("SQLite", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errOpeningStorage("SQLite", err)
	}

	s := &sqliteStorage{db: db, loggers: loggers}
	s.loggers.SetPrefix("[store:sqlite]")
	s.loggers.Infof("Using SQLite database %s", dbConfig.Path)
	return s, nil
}

func (s *sqliteStorage) Kind() string { return "sqlite" }

func (s *sqliteStorage) Open(ctx context.Context, tag string) (Store, error) {
	if err := checkTag(tag); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO cache_stores (tag) VALUES (?) ON CONFLICT (tag) DO NOTHING`, tag)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{storage: s, tag: tag}, nil
}

func (s *sqliteStorage) Tags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM cache_stores`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck
	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (s *sqliteStorage) Delete(ctx context.Context, tag string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx, `DELETE FROM cache_stores WHERE tag = ?`, tag)
	if err != nil {
		return false, err
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	entries, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE tag = ?`, tag)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	if deleted > 0 {
		count, _ := entries.RowsAffected()
		s.loggers.Debugf(logMsgDeletedStore, tag, count)
	}
	return deleted > 0, nil
}

func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) Tag() string { return s.tag }

func (s *sqliteStore) Get(ctx context.Context, key string) (Snapshot, bool, error) {
	var data []byte
	err := s.storage.db.QueryRowContext(ctx,
		`SELECT snapshot FROM cache_entries WHERE tag = ? AND key = ?`, s.tag, key).Scan(&data)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	snapshot, err := DecodeSnapshot(data)
	if err != nil {
		s.storage.loggers.Warnf(logMsgCorruptEntry, key, s.tag, err)
		return Snapshot{}, false, nil
	}
	return snapshot, true, nil
}

// Put does nothing if the store has been deleted in the meantime, so a late write from a superseded
// worker cannot bring back entries of a purged generation.
func (s *sqliteStore) Put(ctx context.Context, key string, snapshot Snapshot) error {
	data, err := snapshot.Encode()
	if err != nil {
		return err
	}
	_, err = s.storage.db.ExecContext(ctx,
		`INSERT INTO cache_entries (tag, key, snapshot)
		SELECT ?, ?, ? WHERE EXISTS (SELECT 1 FROM cache_stores WHERE tag = ?)
		ON CONFLICT (tag, key) DO UPDATE SET snapshot = excluded.snapshot`, s.tag, key, data, s.tag)
	return err
}

func (s *sqliteStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.storage.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries WHERE tag = ?`, s.tag).Scan(&n)
	return n, err
}
