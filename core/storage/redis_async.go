package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/cogpy/atomspace/core/atom"
)

// RedisAsyncConfig configures the asynchronous write-through backend.
type RedisAsyncConfig struct {
	Addr      string
	KeyPrefix string
	QueueSize int
}

// DefaultRedisAsyncConfig returns sane defaults for a local Redis instance.
func DefaultRedisAsyncConfig() *RedisAsyncConfig {
	return &RedisAsyncConfig{Addr: "localhost:6379", KeyPrefix: "atomspace:atom:", QueueSize: 1024}
}

// RedisAsyncBackend is the asynchronous backend named in spec.md §5:
// StoreAtom posts to a bounded channel and returns; a background goroutine
// drains it into Redis. When the channel is full, StoreAtom blocks
// (backpressure) rather than dropping the write. A connection failure
// marks the backend degraded without corrupting the in-memory store.
type RedisAsyncBackend struct {
	cfg    *RedisAsyncConfig
	client *redis.Client

	queue chan AtomRecord
	done  chan struct{}
	wg    sync.WaitGroup

	connected atomic.Bool
	degraded  atomic.Bool

	mu       sync.RWMutex
	fetchIdx map[atom.Handle]AtomRecord
}

// NewRedisAsyncBackend constructs a backend against cfg. A nil cfg uses
// DefaultRedisAsyncConfig().
func NewRedisAsyncBackend(cfg *RedisAsyncConfig) *RedisAsyncBackend {
	if cfg == nil {
		cfg = DefaultRedisAsyncConfig()
	}
	return &RedisAsyncBackend{
		cfg:      cfg,
		fetchIdx: make(map[atom.Handle]AtomRecord),
	}
}

func (r *RedisAsyncBackend) Open(ctx context.Context) error {
	r.client = redis.NewClient(&redis.Options{Addr: r.cfg.Addr})
	if err := r.client.Ping(ctx).Err(); err != nil {
		return atom.NewError(atom.StorageUnavailable, "RedisAsyncBackend.Open", err)
	}

	r.queue = make(chan AtomRecord, r.cfg.QueueSize)
	r.done = make(chan struct{})
	r.connected.Store(true)

	r.wg.Add(1)
	go r.drain()
	return nil
}

func (r *RedisAsyncBackend) drain() {
	defer r.wg.Done()
	ctx := context.Background()
	for {
		select {
		case rec, ok := <-r.queue:
			if !ok {
				return
			}
			if err := r.writeToRedis(ctx, rec); err != nil {
				r.degraded.Store(true)
				continue
			}
			r.degraded.Store(false)
		case <-r.done:
			// drain whatever remains without blocking further producers
			for {
				select {
				case rec, ok := <-r.queue:
					if !ok {
						return
					}
					_ = r.writeToRedis(ctx, rec)
				default:
					return
				}
			}
		}
	}
}

func (r *RedisAsyncBackend) writeToRedis(ctx context.Context, rec AtomRecord) error {
	payload, err := json.Marshal(toRow(rec))
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%d", r.cfg.KeyPrefix, uint64(rec.Handle))
	if err := r.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.fetchIdx[rec.Handle] = rec
	r.mu.Unlock()
	return nil
}

func (r *RedisAsyncBackend) Close(ctx context.Context) error {
	r.connected.Store(false)
	close(r.done)
	r.wg.Wait()
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *RedisAsyncBackend) Connected() bool { return r.connected.Load() && !r.degraded.Load() }

// StoreAtom posts to the bounded queue, blocking the caller when it is
// full (backpressure per spec.md §5). This is the asynchronous write-through
// contract: the call returns once enqueued, not once persisted.
func (r *RedisAsyncBackend) StoreAtom(ctx context.Context, rec AtomRecord) error {
	select {
	case r.queue <- rec:
		return nil
	case <-ctx.Done():
		return atom.NewError(atom.Timeout, "RedisAsyncBackend.StoreAtom", ctx.Err())
	}
}

func (r *RedisAsyncBackend) FetchAtom(ctx context.Context, h atom.Handle) (*AtomRecord, bool, error) {
	r.mu.RLock()
	rec, ok := r.fetchIdx[h]
	r.mu.RUnlock()
	if ok {
		return &rec, true, nil
	}

	key := fmt.Sprintf("%s%d", r.cfg.KeyPrefix, uint64(h))
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, atom.NewError(atom.StorageUnavailable, "RedisAsyncBackend.FetchAtom", err)
	}
	var row supabaseRow
	if err := json.Unmarshal([]byte(val), &row); err != nil {
		return nil, false, atom.NewError(atom.InvalidArgument, "RedisAsyncBackend.FetchAtom", err)
	}
	fromR, err := fromRow(row)
	if err != nil {
		return nil, false, atom.NewError(atom.InvalidArgument, "RedisAsyncBackend.FetchAtom", err)
	}
	return &fromR, true, nil
}

func (r *RedisAsyncBackend) StoreGraph(ctx context.Context, src GraphSource) error {
	for _, rec := range src.AllAtoms() {
		if err := r.StoreAtom(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisAsyncBackend) LoadGraph(ctx context.Context, sink GraphSink) error {
	keys, err := r.client.Keys(ctx, r.cfg.KeyPrefix+"*").Result()
	if err != nil {
		return atom.NewError(atom.StorageUnavailable, "RedisAsyncBackend.LoadGraph", err)
	}
	var nodes, links []AtomRecord
	for _, key := range keys {
		val, err := r.client.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		var row supabaseRow
		if err := json.Unmarshal([]byte(val), &row); err != nil {
			continue
		}
		rec, err := fromRow(row)
		if err != nil {
			continue
		}
		if rec.Kind == atom.KindNode {
			nodes = append(nodes, rec)
		} else {
			links = append(links, rec)
		}
	}
	for _, rec := range append(nodes, links...) {
		if _, err := sink.ImportAtom(rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisAsyncBackend) Stats(ctx context.Context) (map[string]any, error) {
	return map[string]any{
		"addr":      r.cfg.Addr,
		"queued":    len(r.queue),
		"degraded":  r.degraded.Load(),
		"connected": r.Connected(),
	}, nil
}
