package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/dgo/v230"
	"github.com/dgraph-io/dgo/v230/protos/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cogpy/atomspace/core/atom"
)

// DgraphConfig mirrors the teacher's persistence.DgraphConfig /
// DefaultDgraphConfig: an endpoint with an env-var fallback and a bounded
// connect retry loop.
type DgraphConfig struct {
	Endpoint   string
	RetryCount int
	RetryDelay time.Duration
}

// DefaultDgraphConfig returns the teacher's defaults, reading
// DGRAPH_ENDPOINT with a localhost fallback.
func DefaultDgraphConfig() *DgraphConfig {
	endpoint := os.Getenv("DGRAPH_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9080"
	}
	return &DgraphConfig{Endpoint: endpoint, RetryCount: 3, RetryDelay: 2 * time.Second}
}

// dgraphAtomNode is the schema DgraphBackend persists each atom as.
type dgraphAtomNode struct {
	UID        string   `json:"uid,omitempty"`
	Handle     uint64   `json:"handle"`
	Kind       int      `json:"kind"`
	Type       string   `json:"type"`
	Name       string   `json:"name,omitempty"`
	Outgoing   []uint64 `json:"outgoing,omitempty"`
	Strength   float64  `json:"strength"`
	Confidence float64  `json:"confidence"`
	DType      []string `json:"dgraph.type,omitempty"`
}

// DgraphBackend is a StorageNode over dgo/grpc, grounded directly on the
// teacher's core/persistence/dgraph_client.go connect-with-retry shape;
// satisfies the graph-native embedded KV store family of spec.md §4.3.
type DgraphBackend struct {
	mu     sync.RWMutex
	cfg    *DgraphConfig
	conn   *grpc.ClientConn
	client *dgo.Dgraph

	connected bool
	uidByHandle map[uint64]string
}

// NewDgraphBackend constructs a backend against cfg. A nil cfg uses
// DefaultDgraphConfig().
func NewDgraphBackend(cfg *DgraphConfig) *DgraphBackend {
	if cfg == nil {
		cfg = DefaultDgraphConfig()
	}
	return &DgraphBackend{cfg: cfg, uidByHandle: make(map[uint64]string)}
}

func (d *DgraphBackend) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var lastErr error
	for i := 0; i < d.cfg.RetryCount; i++ {
		dialCtx, cancel := context.WithTimeout(ctx, d.cfg.RetryDelay)
		conn, err := grpc.DialContext(dialCtx, d.cfg.Endpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithBlock())
		cancel()
		if err != nil {
			lastErr = err
			time.Sleep(d.cfg.RetryDelay)
			continue
		}
		d.conn = conn
		d.client = dgo.NewDgraphClient(api.NewDgraphClient(conn))
		d.connected = true

		schema := `
		handle: int @index(int) .
		type: string @index(exact) .
		`
		_ = d.client.Alter(ctx, &api.Operation{Schema: schema})
		return nil
	}
	return atom.NewError(atom.StorageUnavailable, "DgraphBackend.Open",
		fmt.Errorf("failed to connect to dgraph after %d attempts: %w", d.cfg.RetryCount, lastErr))
}

func (d *DgraphBackend) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

func (d *DgraphBackend) Connected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

func (d *DgraphBackend) StoreAtom(ctx context.Context, rec AtomRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.storeAtomLocked(ctx, rec)
}

func (d *DgraphBackend) storeAtomLocked(ctx context.Context, rec AtomRecord) error {
	node := dgraphAtomNode{
		Handle:     uint64(rec.Handle),
		Kind:       int(rec.Kind),
		Type:       string(rec.Type),
		Name:       rec.Name,
		Strength:   rec.Strength,
		Confidence: rec.Confidence,
		DType:      []string{"AtomNode"},
	}
	for _, h := range rec.Outgoing {
		node.Outgoing = append(node.Outgoing, uint64(h))
	}
	if uid, ok := d.uidByHandle[node.Handle]; ok {
		node.UID = uid
	} else {
		node.UID = "_:atom"
	}

	payload, err := json.Marshal(node)
	if err != nil {
		return atom.NewError(atom.InvalidArgument, "DgraphBackend.StoreAtom", err)
	}

	txn := d.client.NewTxn()
	defer txn.Discard(ctx)
	resp, err := txn.Mutate(ctx, &api.Mutation{SetJson: payload, CommitNow: true})
	if err != nil {
		return atom.NewError(atom.StorageUnavailable, "DgraphBackend.StoreAtom", err)
	}
	if node.UID == "_:atom" {
		if uid, ok := resp.Uids["atom"]; ok {
			d.uidByHandle[node.Handle] = uid
		}
	}
	return nil
}

func (d *DgraphBackend) FetchAtom(ctx context.Context, h atom.Handle) (*AtomRecord, bool, error) {
	d.mu.RLock()
	client := d.client
	d.mu.RUnlock()

	query := fmt.Sprintf(`{
		atom(func: eq(handle, %d)) {
			uid handle kind type name outgoing strength confidence
		}
	}`, uint64(h))

	resp, err := client.NewReadOnlyTxn().Query(ctx, query)
	if err != nil {
		return nil, false, atom.NewError(atom.StorageUnavailable, "DgraphBackend.FetchAtom", err)
	}

	var result struct {
		Atom []dgraphAtomNode `json:"atom"`
	}
	if err := json.Unmarshal(resp.Json, &result); err != nil {
		return nil, false, atom.NewError(atom.StorageUnavailable, "DgraphBackend.FetchAtom", err)
	}
	if len(result.Atom) == 0 {
		return nil, false, nil
	}

	n := result.Atom[0]
	rec := &AtomRecord{
		Handle: atom.Handle(n.Handle), Kind: atom.Kind(n.Kind), Type: atom.Type(n.Type),
		Name: n.Name, Strength: n.Strength, Confidence: n.Confidence,
	}
	for _, o := range n.Outgoing {
		rec.Outgoing = append(rec.Outgoing, atom.Handle(o))
	}
	return rec, true, nil
}

func (d *DgraphBackend) StoreGraph(ctx context.Context, src GraphSource) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, rec := range src.AllAtoms() {
		if err := d.storeAtomLocked(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (d *DgraphBackend) LoadGraph(ctx context.Context, sink GraphSink) error {
	d.mu.RLock()
	client := d.client
	d.mu.RUnlock()

	resp, err := client.NewReadOnlyTxn().Query(ctx, `{
		atoms(func: has(handle)) {
			uid handle kind type name outgoing strength confidence
		}
	}`)
	if err != nil {
		return atom.NewError(atom.StorageUnavailable, "DgraphBackend.LoadGraph", err)
	}

	var result struct {
		Atoms []dgraphAtomNode `json:"atoms"`
	}
	if err := json.Unmarshal(resp.Json, &result); err != nil {
		return atom.NewError(atom.StorageUnavailable, "DgraphBackend.LoadGraph", err)
	}

	nodes, links := splitByKind(result.Atoms)
	for _, n := range append(nodes, links...) {
		rec := AtomRecord{
			Handle: atom.Handle(n.Handle), Kind: atom.Kind(n.Kind), Type: atom.Type(n.Type),
			Name: n.Name, Strength: n.Strength, Confidence: n.Confidence,
		}
		for _, o := range n.Outgoing {
			rec.Outgoing = append(rec.Outgoing, atom.Handle(o))
		}
		if _, err := sink.ImportAtom(rec); err != nil {
			return err
		}
	}
	return nil
}

func splitByKind(all []dgraphAtomNode) (nodes, links []dgraphAtomNode) {
	for _, n := range all {
		if atom.Kind(n.Kind) == atom.KindNode {
			nodes = append(nodes, n)
		} else {
			links = append(links, n)
		}
	}
	return nodes, links
}

func (d *DgraphBackend) Stats(ctx context.Context) (map[string]any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return map[string]any{"endpoint": d.cfg.Endpoint, "connected": d.connected}, nil
}
