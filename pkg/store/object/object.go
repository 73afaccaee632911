package object

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// ObjectID identifies a store object. IDs are random (UUID v4) and are
// never reused while any link references them.
type ObjectID = uuid.UUID

// RootID is the well-known ID of a container's root group.
var RootID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// NewObjectID allocates a fresh object ID.
func NewObjectID() ObjectID {
	return uuid.New()
}

// TxID is a transaction identifier. Writes are tagged with the write id of
// the transaction that produced them; reads at id N observe the newest
// version tagged <= N.
type TxID uint64

// MaxTxID reads the newest state regardless of transaction.
const MaxTxID TxID = math.MaxUint64

// Tx pairs the write transaction id of an operation with the read snapshot
// it is checked against.
type Tx struct {
	// Write is the mutation epoch every write of the operation belongs to.
	Write TxID

	// Read is the snapshot every read of the operation observes.
	Read TxID
}

// String renders the transaction as "w=<write>/r=<read>" for logs.
func (t Tx) String() string {
	return fmt.Sprintf("w=%d/r=%d", t.Write, t.Read)
}

// ObjectType is the kind of object recorded in an object's header.
type ObjectType uint8

const (
	// TypeRoot is the root group of a container.
	TypeRoot ObjectType = iota + 1

	// TypeGroup is a group (a container of links).
	TypeGroup

	// TypeDataset is a dataset.
	TypeDataset

	// TypeDatatype is a committed datatype.
	TypeDatatype

	// TypeKV is a plain key-value sub-object (metadata and attribute stores).
	TypeKV
)

// IsContainer reports whether objects of this type hold a link directory.
func (t ObjectType) IsContainer() bool {
	return t == TypeRoot || t == TypeGroup
}

func (t ObjectType) String() string {
	switch t {
	case TypeRoot:
		return "root"
	case TypeGroup:
		return "group"
	case TypeDataset:
		return "dataset"
	case TypeDatatype:
		return "datatype"
	case TypeKV:
		return "kv"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// ParseObjectType converts a type name back to an ObjectType.
func ParseObjectType(s string) (ObjectType, error) {
	switch s {
	case "root":
		return TypeRoot, nil
	case "group":
		return TypeGroup, nil
	case "dataset":
		return TypeDataset, nil
	case "datatype":
		return TypeDatatype, nil
	case "kv":
		return TypeKV, nil
	default:
		return 0, fmt.Errorf("unknown object type %q", s)
	}
}

// Handle is an open reference to an object.
//
// Handles are plain values. Two handles are the same handle exactly when
// their cookies are equal; the zero Handle (Cookie 0) is undefined.
type Handle struct {
	// Cookie is the opaque identity assigned by the store on open.
	Cookie uint64

	// ID is the object the handle refers to.
	ID ObjectID

	// Type is the object type observed when the handle was opened.
	Type ObjectType

	// Writable is set for handles returned by OpenWrite.
	Writable bool
}

// Defined reports whether the handle refers to an open object.
func (h Handle) Defined() bool {
	return h.Cookie != 0
}

// Same reports whether h and other are the same open handle.
func (h Handle) Same(other Handle) bool {
	return h.Defined() && h.Cookie == other.Cookie
}

// Handles is the read/write handle pair held for one object.
type Handles struct {
	Read  Handle
	Write Handle
}

// Defined reports whether at least the read handle is open.
func (h Handles) Defined() bool {
	return h.Read.Defined()
}

// Entry is one key-value pair of an object's key space.
type Entry struct {
	Key   string
	Value []byte
}
