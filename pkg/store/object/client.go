package object

import "context"

// Client is the key-value object store capability consumed by the link
// layer. Every object is an opaque key space plus a small scratch area;
// every call is parameterized by a transaction id.
//
// Read operations take the read snapshot id (rtid); mutations take the
// write id (wtid). Handles returned by OpenRead/OpenWrite must be closed
// with CloseHandle.
type Client interface {
	// CreateObject creates an empty object of the given type.
	// Returns ErrObjectExists if the ID is already in use at wtid.
	CreateObject(ctx context.Context, id ObjectID, typ ObjectType, wtid TxID) error

	// OpenRead opens a read handle on an object visible at rtid.
	// Returns ErrObjectNotFound if the object does not exist.
	OpenRead(ctx context.Context, id ObjectID, rtid TxID) (Handle, error)

	// OpenWrite opens a write handle on an object visible at rtid.
	OpenWrite(ctx context.Context, id ObjectID, rtid TxID) (Handle, error)

	// CloseHandle releases a handle. Closing an unknown handle returns
	// ErrHandleClosed.
	CloseHandle(h Handle) error

	// Unlink deletes an object together with its scratch area and keys.
	Unlink(ctx context.Context, id ObjectID, wtid TxID) error

	// GetScratch reads the object's scratch area.
	GetScratch(ctx context.Context, h Handle, rtid TxID) ([]byte, error)

	// SetScratch replaces the object's scratch area.
	SetScratch(ctx context.Context, h Handle, data []byte, wtid TxID) error

	// Get reads one key. Returns ErrKeyNotFound if absent.
	Get(ctx context.Context, h Handle, key string, rtid TxID) ([]byte, error)

	// Put writes one key, replacing any previous value.
	Put(ctx context.Context, h Handle, key string, value []byte, wtid TxID) error

	// PutIfAbsent atomically inserts a key that must not exist at wtid.
	// Returns ErrKeyExists otherwise.
	PutIfAbsent(ctx context.Context, h Handle, key string, value []byte, wtid TxID) error

	// Delete removes one key. Returns ErrKeyNotFound if absent at wtid.
	Delete(ctx context.Context, h Handle, key string, wtid TxID) error

	// List enumerates the keys visible at rtid in store order.
	List(ctx context.Context, h Handle, rtid TxID) ([]Entry, error)

	// LastCommitted returns the newest committed write id (0 if none).
	LastCommitted(ctx context.Context) (TxID, error)

	// Commit records tx as the newest committed write id.
	Commit(ctx context.Context, tx TxID) error

	// OpenHandles returns the number of currently open handles.
	OpenHandles() int
}
