package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cogpy/atomspace/core/atom"
)

// SQLiteBackend stores one row per atom (node or link) via
// database/sql over github.com/mattn/go-sqlite3, satisfying the "SQLite"
// backend family named in spec.md §4.3.
type SQLiteBackend struct {
	dsn       string
	db        *sql.DB
	connected atomic.Bool
}

// NewSQLiteBackend returns a backend against the given data source name
// (a file path, or ":memory:").
func NewSQLiteBackend(dsn string) *SQLiteBackend {
	return &SQLiteBackend{dsn: dsn}
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS atoms (
	handle     INTEGER PRIMARY KEY,
	kind       INTEGER NOT NULL,
	type       TEXT NOT NULL,
	name       TEXT,
	outgoing   TEXT,
	strength   REAL NOT NULL,
	confidence REAL NOT NULL
);`

func (s *SQLiteBackend) Open(ctx context.Context) error {
	db, err := sql.Open("sqlite3", s.dsn)
	if err != nil {
		return atom.NewError(atom.StorageUnavailable, "SQLiteBackend.Open", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return atom.NewError(atom.StorageUnavailable, "SQLiteBackend.Open", err)
	}
	s.db = db
	s.connected.Store(true)
	return nil
}

func (s *SQLiteBackend) Close(ctx context.Context) error {
	s.connected.Store(false)
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteBackend) Connected() bool { return s.connected.Load() }

func (s *SQLiteBackend) StoreAtom(ctx context.Context, rec AtomRecord) error {
	outgoing := encodeOutgoing(rec.Outgoing)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO atoms (handle, kind, type, name, outgoing, strength, confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(handle) DO UPDATE SET strength=excluded.strength, confidence=excluded.confidence`,
		uint64(rec.Handle), int(rec.Kind), string(rec.Type), rec.Name, outgoing, rec.Strength, rec.Confidence)
	if err != nil {
		return atom.NewError(atom.StorageUnavailable, "SQLiteBackend.StoreAtom", err)
	}
	return nil
}

func (s *SQLiteBackend) FetchAtom(ctx context.Context, h atom.Handle) (*AtomRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT handle, kind, type, name, outgoing, strength, confidence FROM atoms WHERE handle = ?`,
		uint64(h))
	rec, err := scanRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, atom.NewError(atom.StorageUnavailable, "SQLiteBackend.FetchAtom", err)
	}
	return &rec, true, nil
}

func (s *SQLiteBackend) StoreGraph(ctx context.Context, src GraphSource) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return atom.NewError(atom.StorageUnavailable, "SQLiteBackend.StoreGraph", err)
	}
	for _, rec := range src.AllAtoms() {
		outgoing := encodeOutgoing(rec.Outgoing)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO atoms (handle, kind, type, name, outgoing, strength, confidence)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(handle) DO UPDATE SET strength=excluded.strength, confidence=excluded.confidence`,
			uint64(rec.Handle), int(rec.Kind), string(rec.Type), rec.Name, outgoing, rec.Strength, rec.Confidence); err != nil {
			tx.Rollback()
			return atom.NewError(atom.StorageUnavailable, "SQLiteBackend.StoreGraph", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return atom.NewError(atom.StorageUnavailable, "SQLiteBackend.StoreGraph", err)
	}
	return nil
}

func (s *SQLiteBackend) LoadGraph(ctx context.Context, sink GraphSink) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT handle, kind, type, name, outgoing, strength, confidence FROM atoms ORDER BY kind ASC`)
	if err != nil {
		return atom.NewError(atom.StorageUnavailable, "SQLiteBackend.LoadGraph", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRow(rows.Scan)
		if err != nil {
			return atom.NewError(atom.StorageUnavailable, "SQLiteBackend.LoadGraph", err)
		}
		if _, err := sink.ImportAtom(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLiteBackend) Stats(ctx context.Context) (map[string]any, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM atoms`).Scan(&count); err != nil {
		return nil, atom.NewError(atom.StorageUnavailable, "SQLiteBackend.Stats", err)
	}
	return map[string]any{"dsn": s.dsn, "atoms": count}, nil
}

func encodeOutgoing(outgoing []atom.Handle) string {
	parts := make([]string, len(outgoing))
	for i, h := range outgoing {
		parts[i] = strconv.FormatUint(uint64(h), 10)
	}
	return strings.Join(parts, ",")
}

func decodeOutgoing(s string) ([]atom.Handle, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]atom.Handle, len(parts))
	for i, p := range parts {
		h, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed outgoing handle %q: %w", p, err)
		}
		out[i] = atom.Handle(h)
	}
	return out, nil
}

func scanRow(scan func(dest ...any) error) (AtomRecord, error) {
	var (
		handle             uint64
		kind               int
		typ, name, outgoin string
		strength, conf     float64
	)
	nameNS := sql.NullString{}
	outNS := sql.NullString{}
	if err := scan(&handle, &kind, &typ, &nameNS, &outNS, &strength, &conf); err != nil {
		return AtomRecord{}, err
	}
	name = nameNS.String
	outgoin = outNS.String

	outgoing, err := decodeOutgoing(outgoin)
	if err != nil {
		return AtomRecord{}, err
	}
	return AtomRecord{
		Handle:     atom.Handle(handle),
		Kind:       atom.Kind(kind),
		Type:       atom.Type(typ),
		Name:       name,
		Outgoing:   outgoing,
		Strength:   strength,
		Confidence: conf,
	}, nil
}
