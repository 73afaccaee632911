// Package badger provides a persistent versioned backend for the object
// store built on BadgerDB in managed mode.
//
// Managed mode lets the caller choose the commit timestamp of every write,
// so object-store transaction ids map one-to-one onto badger versions:
// a write tagged N is committed at timestamp N and a read at N opens a
// badger transaction with read timestamp N.
package badger

import (
	"context"
	"errors"
	"fmt"
	"math"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// Config contains configuration for creating a BadgerDB backend.
type Config struct {
	// DBPath is the directory where BadgerDB stores its files.
	// BadgerDB creates multiple files in this directory (value log, LSM tree, etc.)
	DBPath string `mapstructure:"db_path" validate:"required_unless=InMemory true"`

	// InMemory runs BadgerDB without touching disk (tests).
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`
}

// Backend implements object.Backend on a managed-mode BadgerDB.
type Backend struct {
	db *badgerdb.DB
}

var _ object.Backend = (*Backend)(nil)

// New opens (or creates) a BadgerDB database according to cfg.
//
// Every version is retained: old versions are what make reads at older
// transaction ids possible, so badger must never collapse them.
//
// Parameters:
//   - ctx: Context for cancellation
//   - cfg: Database location and cache sizing
//
// Returns:
//   - *Backend: Ready-to-use backend
//   - error: Error if the database cannot be opened
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := badgerdb.DefaultOptions(cfg.DBPath)
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	}

	blockCacheMB := cfg.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := cfg.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}

	opts = opts.
		WithLoggingLevel(badgerdb.WARNING).
		WithCompression(options.None).
		WithNumVersionsToKeep(math.MaxInt32).
		WithDetectConflicts(false).
		WithBlockCacheSize(blockCacheMB << 20).
		WithIndexCacheSize(indexCacheMB << 20)

	db, err := badgerdb.OpenManaged(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}

	return &Backend{db: db}, nil
}

// NewStore opens a BadgerDB backend and wraps it in an object store.
func NewStore(ctx context.Context, cfg Config) (*object.Store, error) {
	backend, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return object.NewStore(backend), nil
}

// Get reads key at read timestamp at.
func (b *Backend) Get(ctx context.Context, key []byte, at object.TxID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txn := b.db.NewTransactionAt(uint64(at), false)
	defer txn.Discard()

	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil, object.ErrKeyNotFound
		}
		return nil, fmt.Errorf("badger get: %w", err)
	}

	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return value, nil
}

// Put commits key=value at timestamp at.
func (b *Backend) Put(ctx context.Context, key, value []byte, at object.TxID) error {
	return b.commit(ctx, at, func(txn *badgerdb.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete commits a tombstone for key at timestamp at.
func (b *Backend) Delete(ctx context.Context, key []byte, at object.TxID) error {
	return b.commit(ctx, at, func(txn *badgerdb.Txn) error {
		return txn.Delete(key)
	})
}

// Scan iterates the live keys under prefix at read timestamp at.
func (b *Backend) Scan(ctx context.Context, prefix []byte, at object.TxID) ([]object.KV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txn := b.db.NewTransactionAt(uint64(at), false)
	defer txn.Discard()

	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []object.KV
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("badger scan: %w", err)
		}
		out = append(out, object.KV{Key: item.KeyCopy(nil), Value: value})
	}
	return out, nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) commit(ctx context.Context, at object.TxID, fn func(*badgerdb.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	txn := b.db.NewTransactionAt(uint64(at), true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return fmt.Errorf("badger write: %w", err)
	}
	if err := txn.CommitAt(uint64(at), nil); err != nil {
		return fmt.Errorf("badger commit: %w", err)
	}
	return nil
}
