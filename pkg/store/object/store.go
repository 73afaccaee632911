package object

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Store implements Client over a versioned Backend.
//
// Store adds object semantics on top of the backend's flat key space: object
// existence, per-object key spaces, scratch areas, and handle bookkeeping.
// Handles are tracked so that callers (and tests) can verify that every
// handle opened for a request was released.
//
// Thread Safety:
// Backend calls may run concurrently. Check-then-write sequences
// (CreateObject, PutIfAbsent, Delete, Unlink) are serialized by writeMu so
// they are atomic with respect to each other.
type Store struct {
	backend Backend

	// writeMu serializes read-check-write sequences
	writeMu sync.Mutex

	// handles maps open cookies to their handle
	handlesMu sync.Mutex
	handles   map[uint64]Handle

	nextCookie atomic.Uint64
	closed     atomic.Bool
}

// NewStore creates an object store over backend. The store takes ownership
// of the backend and closes it on Close.
func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		handles: make(map[uint64]Handle),
	}
}

// Close closes the backend. Handles still open are discarded.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.backend.Close()
}

var _ Client = (*Store)(nil)

// ============================================================================
// Objects
// ============================================================================

// CreateObject creates an empty object with the given type at wtid.
func (s *Store) CreateObject(ctx context.Context, id ObjectID, typ ObjectType, wtid TxID) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.backend.Get(ctx, keyHeader(id), wtid); err == nil {
		return fmt.Errorf("create %s: %w", id, ErrObjectExists)
	} else if !errors.Is(err, ErrKeyNotFound) {
		return fmt.Errorf("create %s: %w", id, err)
	}

	if err := s.backend.Put(ctx, keyHeader(id), []byte{byte(typ)}, wtid); err != nil {
		return fmt.Errorf("create %s: %w", id, err)
	}
	return nil
}

// OpenRead opens a read handle on id as seen at rtid.
func (s *Store) OpenRead(ctx context.Context, id ObjectID, rtid TxID) (Handle, error) {
	return s.open(ctx, id, rtid, false)
}

// OpenWrite opens a write handle on id as seen at rtid.
func (s *Store) OpenWrite(ctx context.Context, id ObjectID, rtid TxID) (Handle, error) {
	return s.open(ctx, id, rtid, true)
}

func (s *Store) open(ctx context.Context, id ObjectID, rtid TxID, writable bool) (Handle, error) {
	if err := s.check(ctx); err != nil {
		return Handle{}, err
	}

	header, err := s.backend.Get(ctx, keyHeader(id), rtid)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return Handle{}, fmt.Errorf("open %s: %w", id, ErrObjectNotFound)
		}
		return Handle{}, fmt.Errorf("open %s: %w", id, err)
	}

	var typ ObjectType
	if len(header) > 0 {
		typ = ObjectType(header[0])
	}

	h := Handle{
		Cookie:   s.nextCookie.Add(1),
		ID:       id,
		Type:     typ,
		Writable: writable,
	}

	s.handlesMu.Lock()
	s.handles[h.Cookie] = h
	s.handlesMu.Unlock()

	return h, nil
}

// CloseHandle releases h.
func (s *Store) CloseHandle(h Handle) error {
	s.handlesMu.Lock()
	defer s.handlesMu.Unlock()

	if _, ok := s.handles[h.Cookie]; !ok {
		return fmt.Errorf("close handle %d: %w", h.Cookie, ErrHandleClosed)
	}
	delete(s.handles, h.Cookie)
	return nil
}

// OpenHandles returns the number of handles currently open.
func (s *Store) OpenHandles() int {
	s.handlesMu.Lock()
	defer s.handlesMu.Unlock()
	return len(s.handles)
}

// Unlink deletes id, its scratch area and all of its keys at wtid.
func (s *Store) Unlink(ctx context.Context, id ObjectID, wtid TxID) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.backend.Get(ctx, keyHeader(id), wtid); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return fmt.Errorf("unlink %s: %w", id, ErrObjectNotFound)
		}
		return fmt.Errorf("unlink %s: %w", id, err)
	}

	kvs, err := s.backend.Scan(ctx, keyObjectPrefix(id), wtid)
	if err != nil {
		return fmt.Errorf("unlink %s: %w", id, err)
	}
	for _, kv := range kvs {
		if err := s.backend.Delete(ctx, kv.Key, wtid); err != nil {
			return fmt.Errorf("unlink %s: %w", id, err)
		}
	}

	if _, err := s.backend.Get(ctx, keyScratch(id), wtid); err == nil {
		if err := s.backend.Delete(ctx, keyScratch(id), wtid); err != nil {
			return fmt.Errorf("unlink %s: %w", id, err)
		}
	}

	if err := s.backend.Delete(ctx, keyHeader(id), wtid); err != nil {
		return fmt.Errorf("unlink %s: %w", id, err)
	}
	return nil
}

// ListObjects returns the ID of every object that exists at rtid, in
// ascending key order.
func (s *Store) ListObjects(ctx context.Context, rtid TxID) ([]ObjectID, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	kvs, err := s.backend.Scan(ctx, []byte(prefixHeader), rtid)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}

	ids := make([]ObjectID, 0, len(kvs))
	for _, kv := range kvs {
		id, err := uuid.Parse(strings.TrimPrefix(string(kv.Key), prefixHeader))
		if err != nil {
			return nil, fmt.Errorf("list objects: malformed header key %q: %w", kv.Key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ============================================================================
// Scratch Area
// ============================================================================

// GetScratch reads the scratch area of the object behind h.
func (s *Store) GetScratch(ctx context.Context, h Handle, rtid TxID) ([]byte, error) {
	if err := s.checkHandle(ctx, h, false); err != nil {
		return nil, err
	}
	data, err := s.backend.Get(ctx, keyScratch(h.ID), rtid)
	if err != nil {
		return nil, fmt.Errorf("get scratch %s: %w", h.ID, err)
	}
	return data, nil
}

// SetScratch replaces the scratch area of the object behind h.
func (s *Store) SetScratch(ctx context.Context, h Handle, data []byte, wtid TxID) error {
	if err := s.checkHandle(ctx, h, true); err != nil {
		return err
	}
	if err := s.backend.Put(ctx, keyScratch(h.ID), data, wtid); err != nil {
		return fmt.Errorf("set scratch %s: %w", h.ID, err)
	}
	return nil
}

// ============================================================================
// Keys
// ============================================================================

// Get reads key from the object behind h.
func (s *Store) Get(ctx context.Context, h Handle, key string, rtid TxID) ([]byte, error) {
	if err := s.checkHandle(ctx, h, false); err != nil {
		return nil, err
	}
	value, err := s.backend.Get(ctx, keyObject(h.ID, key), rtid)
	if err != nil {
		return nil, fmt.Errorf("get %s/%q: %w", h.ID, key, err)
	}
	return value, nil
}

// Put writes key in the object behind h.
func (s *Store) Put(ctx context.Context, h Handle, key string, value []byte, wtid TxID) error {
	if err := s.checkHandle(ctx, h, true); err != nil {
		return err
	}
	if err := s.backend.Put(ctx, keyObject(h.ID, key), value, wtid); err != nil {
		return fmt.Errorf("put %s/%q: %w", h.ID, key, err)
	}
	return nil
}

// PutIfAbsent inserts key in the object behind h unless it already exists
// at wtid.
func (s *Store) PutIfAbsent(ctx context.Context, h Handle, key string, value []byte, wtid TxID) error {
	if err := s.checkHandle(ctx, h, true); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	k := keyObject(h.ID, key)
	if _, err := s.backend.Get(ctx, k, wtid); err == nil {
		return fmt.Errorf("insert %s/%q: %w", h.ID, key, ErrKeyExists)
	} else if !errors.Is(err, ErrKeyNotFound) {
		return fmt.Errorf("insert %s/%q: %w", h.ID, key, err)
	}

	if err := s.backend.Put(ctx, k, value, wtid); err != nil {
		return fmt.Errorf("insert %s/%q: %w", h.ID, key, err)
	}
	return nil
}

// Delete removes key from the object behind h.
func (s *Store) Delete(ctx context.Context, h Handle, key string, wtid TxID) error {
	if err := s.checkHandle(ctx, h, true); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	k := keyObject(h.ID, key)
	if _, err := s.backend.Get(ctx, k, wtid); err != nil {
		return fmt.Errorf("delete %s/%q: %w", h.ID, key, err)
	}
	if err := s.backend.Delete(ctx, k, wtid); err != nil {
		return fmt.Errorf("delete %s/%q: %w", h.ID, key, err)
	}
	return nil
}

// List returns all keys of the object behind h visible at rtid.
func (s *Store) List(ctx context.Context, h Handle, rtid TxID) ([]Entry, error) {
	if err := s.checkHandle(ctx, h, false); err != nil {
		return nil, err
	}

	kvs, err := s.backend.Scan(ctx, keyObjectPrefix(h.ID), rtid)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", h.ID, err)
	}

	entries := make([]Entry, 0, len(kvs))
	for _, kv := range kvs {
		name, ok := objectKeyName(h.ID, kv.Key)
		if !ok {
			continue
		}
		entries = append(entries, Entry{Key: name, Value: kv.Value})
	}
	return entries, nil
}

// ============================================================================
// Transactions
// ============================================================================

// LastCommitted returns the newest write id recorded by Commit.
func (s *Store) LastCommitted(ctx context.Context) (TxID, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	data, err := s.backend.Get(ctx, []byte(keyCommitted), MaxTxID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read commit record: %w", err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("read commit record: invalid length %d", len(data))
	}
	return TxID(binary.BigEndian.Uint64(data)), nil
}

// Commit records tx as the newest committed write id. Committing an id
// older than the current record is a no-op.
func (s *Store) Commit(ctx context.Context, tx TxID) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	last, err := s.LastCommitted(ctx)
	if err != nil {
		return err
	}
	if tx <= last {
		return nil
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(tx))
	if err := s.backend.Put(ctx, []byte(keyCommitted), buf, tx); err != nil {
		return fmt.Errorf("write commit record: %w", err)
	}
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return nil
}

func (s *Store) checkHandle(ctx context.Context, h Handle, write bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	s.handlesMu.Lock()
	open, ok := s.handles[h.Cookie]
	s.handlesMu.Unlock()

	if !ok || open.ID != h.ID {
		return fmt.Errorf("handle %d on %s: %w", h.Cookie, h.ID, ErrHandleClosed)
	}
	if write && !open.Writable {
		return fmt.Errorf("handle %d on %s: %w", h.Cookie, h.ID, ErrReadOnlyHandle)
	}
	return nil
}
