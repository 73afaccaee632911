package link

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/marmos91/dittolink/pkg/store/object"
	xdr "github.com/rasky/go-xdr/xdr2"
)

// Link Value Encoding
// ===================
//
// A directory entry's value is the XDR encoding of
//
//	struct link_value {
//	    unsigned int kind;   /* 0 = hard, 1 = soft */
//	    opaque       target<>;
//	};
//
// where target is the 16-byte object ID of a hard link or the UTF-8 path
// of a soft link. Any other kind, a hard target that is not 16 bytes, or
// trailing bytes make the entry corrupt.

type linkValue struct {
	Kind   uint32
	Target []byte
}

// EncodeLink encodes a link as a directory-entry value.
func EncodeLink(l Link) ([]byte, error) {
	var v linkValue
	switch l := l.(type) {
	case Hard:
		v = linkValue{Kind: uint32(KindHard), Target: l.Target[:]}
	case Soft:
		v = linkValue{Kind: uint32(KindSoft), Target: []byte(l.Target)}
	default:
		return nil, fmt.Errorf("cannot encode link of type %T", l)
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &v); err != nil {
		return nil, fmt.Errorf("encode link: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeLink decodes a directory-entry value. Undecodable input yields an
// ErrCorruptData LinkError.
func DecodeLink(data []byte) (Link, error) {
	// kind + opaque length; the opaque length is checked up front so a
	// corrupt length never drives an allocation.
	if len(data) < 8 {
		return nil, newError(ErrCorruptData, fmt.Sprintf("link value too short (%d bytes)", len(data)), "")
	}
	if n := binary.BigEndian.Uint32(data[4:8]); uint64(n) > uint64(len(data)-8) {
		return nil, newError(ErrCorruptData, "link value truncated", "")
	}

	var v linkValue
	n, err := xdr.Unmarshal(bytes.NewReader(data), &v)
	if err != nil {
		return nil, &LinkError{Code: ErrCorruptData, Message: "undecodable link value", Err: err}
	}
	if n != len(data) {
		return nil, newError(ErrCorruptData, fmt.Sprintf("link value has %d trailing bytes", len(data)-n), "")
	}

	switch Kind(v.Kind) {
	case KindHard:
		if len(v.Target) != len(object.ObjectID{}) {
			return nil, newError(ErrCorruptData, fmt.Sprintf("hard link target has %d bytes", len(v.Target)), "")
		}
		var id object.ObjectID
		copy(id[:], v.Target)
		return Hard{Target: id}, nil
	case KindSoft:
		return Soft{Target: string(v.Target)}, nil
	default:
		return nil, newError(ErrCorruptData, fmt.Sprintf("unknown link kind %d", v.Kind), "")
	}
}
