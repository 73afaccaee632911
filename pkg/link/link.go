package link

import (
	"fmt"

	"github.com/marmos91/dittolink/pkg/store/object"
)

// Kind is the kind of a link as reported in LinkInfo.
type Kind uint32

const (
	// KindHard is a link whose target is an object ID.
	KindHard Kind = iota

	// KindSoft is a link whose target is a path resolved on traversal.
	KindSoft

	// KindError marks the LinkInfo of a failed lookup. It never appears
	// on a stored link.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindHard:
		return "hard"
	case KindSoft:
		return "soft"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Link is a directory entry's target: either a Hard or a Soft link.
type Link interface {
	// Kind returns KindHard or KindSoft.
	Kind() Kind

	// Info summarizes the link for GetInfo and Iterate responses.
	Info() Info

	isLink()
}

// Hard is a link to an object. It contributes to the object's link count.
type Hard struct {
	Target object.ObjectID
}

// Soft is a link to a path, resolved when traversed. Its target may be
// dangling.
type Soft struct {
	Target string
}

func (Hard) Kind() Kind { return KindHard }
func (Soft) Kind() Kind { return KindSoft }

func (l Hard) Info() Info { return Info{Kind: KindHard, Address: l.Target} }

// Info of a soft link reports the size of the stored value, which carries a
// NUL terminator after the target path.
func (l Soft) Info() Info { return Info{Kind: KindSoft, ValueSize: uint64(len(l.Target)) + 1} }

func (Hard) isLink() {}
func (Soft) isLink() {}

func (l Hard) String() string { return "hard:" + l.Target.String() }
func (l Soft) String() string { return "soft:" + l.Target }

// Value returns the stored value of a soft link: the target path followed
// by a NUL terminator.
func (l Soft) Value() []byte {
	v := make([]byte, 0, len(l.Target)+1)
	v = append(v, l.Target...)
	return append(v, 0)
}

// Info describes a link without exposing the Link variant.
//
// For KindHard, Address is set; for KindSoft, ValueSize is set; a failed
// lookup reports KindError.
type Info struct {
	Kind      Kind
	Address   object.ObjectID
	ValueSize uint64
}

// ErrorInfo is the Info returned alongside a failed lookup.
var ErrorInfo = Info{Kind: KindError}

// Entry is one named link of a container.
type Entry struct {
	Name string
	Link Link
}
