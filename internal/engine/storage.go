package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/raggrid/rag-grid/internal/config"
	"github.com/raggrid/rag-grid/internal/pkg/errors"
	"github.com/raggrid/rag-grid/internal/scoring"
)

// StoredRecord is a successfully computed result persisted across
// sessions. Only Done records are stored; Pending and Error states are
// session-local.
type StoredRecord struct {
	Metrics scoring.Metrics `json:"metrics"`
	SavedAt time.Time       `json:"saved_at"`
}

// RecordStore persists evaluation results keyed by the canonical hash of
// a resolved parameter set. Same resolved set, same result, regardless
// of which column or session asked.
type RecordStore interface {
	// Load returns the stored record for a key, or nil when absent.
	Load(ctx context.Context, key string) (*StoredRecord, error)

	// Save persists a record under a key, overwriting any previous one.
	Save(ctx context.Context, key string, rec StoredRecord) error

	// Close releases store resources.
	Close() error
}

// NewRecordStore creates a record store from configuration.
func NewRecordStore(cfg config.StoreConfig) (RecordStore, error) {
	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg.RedisURL)
	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown store type: %s", cfg.Type))
	}
}

// MemoryStore is an in-process record store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]StoredRecord
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]StoredRecord)}
}

// Load returns the stored record for a key, or nil when absent.
func (s *MemoryStore) Load(ctx context.Context, key string) (*StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Save persists a record under a key.
func (s *MemoryStore) Save(ctx context.Context, key string, rec StoredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = rec
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

// recordKeyPrefix versions the persisted key space; bump it when the
// stored format changes so stale entries are simply never read.
const recordKeyPrefix = "grid:records:v1:"

// RedisStore is a Redis-backed record store.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis record store, verifying connectivity.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Load returns the stored record for a key, or nil when absent.
func (s *RedisStore) Load(ctx context.Context, key string) (*StoredRecord, error) {
	data, err := s.client.Get(ctx, recordKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.StoreError("loading record", err)
	}

	var rec StoredRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.StoreError("decoding record", err)
	}
	return &rec, nil
}

// Save persists a record under a key.
func (s *RedisStore) Save(ctx context.Context, key string, rec StoredRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.StoreError("encoding record", err)
	}
	if err := s.client.Set(ctx, recordKeyPrefix+key, data, 0).Err(); err != nil {
		return errors.StoreError("saving record", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
