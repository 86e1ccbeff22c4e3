package storage

import (
	"context"
	"fmt"
	"os"
	"sync"

	supabase "github.com/supabase-community/supabase-go"

	"github.com/cogpy/atomspace/core/atom"
)

// supabaseRow is the shape persisted to the "atoms" table, one row per
// atom. Outgoing is stored as a comma-joined decimal string rather than a
// Postgres array column to keep the schema trivially creatable from a
// fresh project with no prior migration.
type supabaseRow struct {
	Handle     uint64  `json:"handle"`
	Kind       int     `json:"kind"`
	Type       string  `json:"type"`
	Name       string  `json:"name"`
	Outgoing   string  `json:"outgoing"`
	Strength   float64 `json:"strength"`
	Confidence float64 `json:"confidence"`
}

// SupabaseConfig configures the Postgres-via-Supabase backend.
type SupabaseConfig struct {
	URL   string
	Key   string
	Table string
}

// DefaultSupabaseConfig reads SUPABASE_URL/SUPABASE_KEY, following the same
// env-var-first convention as DefaultDgraphConfig.
func DefaultSupabaseConfig() *SupabaseConfig {
	return &SupabaseConfig{
		URL:   os.Getenv("SUPABASE_URL"),
		Key:   os.Getenv("SUPABASE_KEY"),
		Table: "atoms",
	}
}

// SupabaseBackend is a StorageNode over the real
// github.com/supabase-community/supabase-go +
// github.com/supabase-community/postgrest-go SDKs. The teacher's own
// core/memory/supabase_impl.go hand-rolled this over net/http despite
// declaring both SDKs in go.mod; this backend uses them as intended,
// satisfying the "Postgres" backend family of spec.md §4.3 over REST
// instead of a raw driver (see DESIGN.md).
type SupabaseBackend struct {
	mu        sync.RWMutex
	cfg       *SupabaseConfig
	client    *supabase.Client
	connected bool
}

// NewSupabaseBackend constructs a backend against cfg. A nil cfg uses
// DefaultSupabaseConfig().
func NewSupabaseBackend(cfg *SupabaseConfig) *SupabaseBackend {
	if cfg == nil {
		cfg = DefaultSupabaseConfig()
	}
	return &SupabaseBackend{cfg: cfg}
}

func (s *SupabaseBackend) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.URL == "" || s.cfg.Key == "" {
		return atom.NewError(atom.StorageUnavailable, "SupabaseBackend.Open",
			fmt.Errorf("SUPABASE_URL/SUPABASE_KEY not configured"))
	}
	client, err := supabase.NewClient(s.cfg.URL, s.cfg.Key, &supabase.ClientOptions{})
	if err != nil {
		return atom.NewError(atom.StorageUnavailable, "SupabaseBackend.Open", err)
	}
	s.client = client
	s.connected = true
	return nil
}

func (s *SupabaseBackend) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *SupabaseBackend) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func toRow(rec AtomRecord) supabaseRow {
	return supabaseRow{
		Handle:     uint64(rec.Handle),
		Kind:       int(rec.Kind),
		Type:       string(rec.Type),
		Name:       rec.Name,
		Outgoing:   encodeOutgoing(rec.Outgoing),
		Strength:   rec.Strength,
		Confidence: rec.Confidence,
	}
}

func fromRow(row supabaseRow) (AtomRecord, error) {
	outgoing, err := decodeOutgoing(row.Outgoing)
	if err != nil {
		return AtomRecord{}, err
	}
	return AtomRecord{
		Handle: atom.Handle(row.Handle), Kind: atom.Kind(row.Kind), Type: atom.Type(row.Type),
		Name: row.Name, Outgoing: outgoing, Strength: row.Strength, Confidence: row.Confidence,
	}, nil
}

func (s *SupabaseBackend) StoreAtom(ctx context.Context, rec AtomRecord) error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	row := toRow(rec)
	var dest []supabaseRow
	_, err := client.From(s.cfg.Table).
		Insert(row, true, "handle", "representation", "exact").
		ExecuteTo(&dest)
	if err != nil {
		return atom.NewError(atom.StorageUnavailable, "SupabaseBackend.StoreAtom", err)
	}
	return nil
}

func (s *SupabaseBackend) FetchAtom(ctx context.Context, h atom.Handle) (*AtomRecord, bool, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	var dest []supabaseRow
	_, err := client.From(s.cfg.Table).
		Select("*", "exact", false).
		Eq("handle", fmt.Sprintf("%d", uint64(h))).
		ExecuteTo(&dest)
	if err != nil {
		return nil, false, atom.NewError(atom.StorageUnavailable, "SupabaseBackend.FetchAtom", err)
	}
	if len(dest) == 0 {
		return nil, false, nil
	}
	rec, err := fromRow(dest[0])
	if err != nil {
		return nil, false, atom.NewError(atom.InvalidArgument, "SupabaseBackend.FetchAtom", err)
	}
	return &rec, true, nil
}

func (s *SupabaseBackend) StoreGraph(ctx context.Context, src GraphSource) error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	all := src.AllAtoms()
	rows := make([]supabaseRow, len(all))
	for i, rec := range all {
		rows[i] = toRow(rec)
	}
	var dest []supabaseRow
	_, err := client.From(s.cfg.Table).
		Insert(rows, true, "handle", "representation", "exact").
		ExecuteTo(&dest)
	if err != nil {
		return atom.NewError(atom.StorageUnavailable, "SupabaseBackend.StoreGraph", err)
	}
	return nil
}

func (s *SupabaseBackend) LoadGraph(ctx context.Context, sink GraphSink) error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	var dest []supabaseRow
	_, err := client.From(s.cfg.Table).
		Select("*", "exact", false).
		Order("kind", nil).
		ExecuteTo(&dest)
	if err != nil {
		return atom.NewError(atom.StorageUnavailable, "SupabaseBackend.LoadGraph", err)
	}
	for _, row := range dest {
		rec, err := fromRow(row)
		if err != nil {
			return atom.NewError(atom.InvalidArgument, "SupabaseBackend.LoadGraph", err)
		}
		if _, err := sink.ImportAtom(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *SupabaseBackend) Stats(ctx context.Context) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{"table": s.cfg.Table, "connected": s.connected}, nil
}
