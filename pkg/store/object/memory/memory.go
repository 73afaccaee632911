// Package memory provides an in-memory versioned backend for the object
// store. Nothing survives process exit; it is intended for tests and
// ephemeral deployments.
package memory

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/dittolink/pkg/store/object"
)

// version is one tagged value of a key. A nil value with deleted set is a
// tombstone.
type version struct {
	at      object.TxID
	value   []byte
	deleted bool
}

// Backend keeps, for every key, its version chain ordered by transaction id.
type Backend struct {
	mu     sync.RWMutex
	chains map[string][]version
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{chains: make(map[string][]version)}
}

// NewStore creates an object store over a fresh in-memory backend.
func NewStore() *object.Store {
	return object.NewStore(New())
}

var _ object.Backend = (*Backend)(nil)

// Get returns the newest version of key tagged <= at.
func (b *Backend) Get(ctx context.Context, key []byte, at object.TxID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := visible(b.chains[string(key)], at)
	if !ok {
		return nil, object.ErrKeyNotFound
	}
	return bytes.Clone(v.value), nil
}

// Put writes a version of key tagged at.
func (b *Backend) Put(ctx context.Context, key, value []byte, at object.TxID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.write(string(key), version{at: at, value: bytes.Clone(value)})
	return nil
}

// Delete writes a tombstone for key tagged at.
func (b *Backend) Delete(ctx context.Context, key []byte, at object.TxID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.write(string(key), version{at: at, deleted: true})
	return nil
}

// Scan returns the live keys under prefix at at, sorted by key.
func (b *Backend) Scan(ctx context.Context, prefix []byte, at object.TxID) ([]object.KV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []object.KV
	for key, chain := range b.chains {
		if !strings.HasPrefix(key, string(prefix)) {
			continue
		}
		if v, ok := visible(chain, at); ok {
			out = append(out, object.KV{Key: []byte(key), Value: bytes.Clone(v.value)})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Key, out[j].Key) < 0
	})
	return out, nil
}

// Close is a no-op.
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) write(key string, v version) {
	b.mu.Lock()
	defer b.mu.Unlock()

	chain := b.chains[key]
	i := sort.Search(len(chain), func(i int) bool { return chain[i].at >= v.at })
	switch {
	case i < len(chain) && chain[i].at == v.at:
		chain[i] = v
	default:
		chain = append(chain, version{})
		copy(chain[i+1:], chain[i:])
		chain[i] = v
	}
	b.chains[key] = chain
}

// visible returns the newest version tagged <= at, if it is live.
func visible(chain []version, at object.TxID) (version, bool) {
	i := sort.Search(len(chain), func(i int) bool { return chain[i].at > at })
	if i == 0 {
		return version{}, false
	}
	v := chain[i-1]
	if v.deleted {
		return version{}, false
	}
	return v, true
}
