package object

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/dittolink/pkg/metrics"
)

// instrumentedBackend reports every backend call to a StoreMetrics.
type instrumentedBackend struct {
	Backend
	name    string
	metrics metrics.StoreMetrics
}

// Instrument wraps b so that each call is observed by m under the backend
// name. A nil m returns b unchanged.
func Instrument(b Backend, name string, m metrics.StoreMetrics) Backend {
	if m == nil {
		return b
	}
	return &instrumentedBackend{Backend: b, name: name, metrics: m}
}

func (b *instrumentedBackend) Get(ctx context.Context, key []byte, at TxID) ([]byte, error) {
	start := time.Now()
	value, err := b.Backend.Get(ctx, key, at)
	// A miss is an answer, not a failure.
	observed := err
	if errors.Is(err, ErrKeyNotFound) {
		observed = nil
	}
	b.metrics.ObserveOperation(b.name, "get", time.Since(start), observed)
	if err == nil {
		b.metrics.RecordBytes(b.name, "read", len(value))
	}
	return value, err
}

func (b *instrumentedBackend) Put(ctx context.Context, key, value []byte, at TxID) error {
	start := time.Now()
	err := b.Backend.Put(ctx, key, value, at)
	b.metrics.ObserveOperation(b.name, "put", time.Since(start), err)
	if err == nil {
		b.metrics.RecordBytes(b.name, "write", len(value))
	}
	return err
}

func (b *instrumentedBackend) Delete(ctx context.Context, key []byte, at TxID) error {
	start := time.Now()
	err := b.Backend.Delete(ctx, key, at)
	b.metrics.ObserveOperation(b.name, "delete", time.Since(start), err)
	return err
}

func (b *instrumentedBackend) Scan(ctx context.Context, prefix []byte, at TxID) ([]KV, error) {
	start := time.Now()
	kvs, err := b.Backend.Scan(ctx, prefix, at)
	b.metrics.ObserveOperation(b.name, "scan", time.Since(start), err)
	return kvs, err
}
