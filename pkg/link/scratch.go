package link

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// ChecksumScope selects where integrity checksums are verified.
type ChecksumScope uint32

const (
	// ChecksumTransfer verifies data crossing the wire.
	ChecksumTransfer ChecksumScope = 1 << iota

	// ChecksumStore verifies data read back from the object store,
	// including scratch pads.
	ChecksumStore

	// ChecksumMemory verifies in-memory buffers.
	ChecksumMemory
)

// VerifiesStore reports whether scratch pads must be verified on read.
func (s ChecksumScope) VerifiesStore() bool {
	return s&ChecksumStore != 0
}

func (s ChecksumScope) String() string {
	var parts []string
	if s&ChecksumTransfer != 0 {
		parts = append(parts, "transfer")
	}
	if s&ChecksumStore != 0 {
		parts = append(parts, "store")
	}
	if s&ChecksumMemory != 0 {
		parts = append(parts, "memory")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseChecksumScope combines scope names ("transfer", "store", "memory").
func ParseChecksumScope(names []string) (ChecksumScope, error) {
	var s ChecksumScope
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "transfer":
			s |= ChecksumTransfer
		case "store":
			s |= ChecksumStore
		case "memory":
			s |= ChecksumMemory
		case "", "none":
		default:
			return 0, fmt.Errorf("unknown checksum scope %q", name)
		}
	}
	return s, nil
}

// ScratchPad records the sub-objects of an object: its metadata key-value
// store and its attribute key-value store.
type ScratchPad struct {
	MetadataID  object.ObjectID
	AttributeID object.ObjectID
}

// scratchPadSize is the encoded size: two object IDs and a 64-bit checksum.
const scratchPadSize = 16 + 16 + 8

// Checksum returns the checksum over the pad's two slots.
func (p ScratchPad) Checksum() uint64 {
	var buf [32]byte
	copy(buf[:16], p.MetadataID[:])
	copy(buf[16:], p.AttributeID[:])
	return xxhash.Sum64(buf[:])
}

// EncodeScratchPad encodes a pad with its checksum.
func EncodeScratchPad(p ScratchPad) []byte {
	buf := make([]byte, scratchPadSize)
	copy(buf[0:16], p.MetadataID[:])
	copy(buf[16:32], p.AttributeID[:])
	binary.BigEndian.PutUint64(buf[32:40], p.Checksum())
	return buf
}

// DecodeScratchPad decodes a pad. When scope verifies store reads and the
// stored checksum is non-zero, a mismatching checksum fails with
// ErrIntegrity. A stored checksum of zero means the pad was written
// without one.
func DecodeScratchPad(data []byte, scope ChecksumScope) (ScratchPad, error) {
	if len(data) != scratchPadSize {
		return ScratchPad{}, newError(ErrCorruptData, fmt.Sprintf("scratch pad has %d bytes", len(data)), "")
	}

	var p ScratchPad
	copy(p.MetadataID[:], data[0:16])
	copy(p.AttributeID[:], data[16:32])
	stored := binary.BigEndian.Uint64(data[32:40])

	if scope.VerifiesStore() && stored != 0 {
		if computed := p.Checksum(); computed != stored {
			return ScratchPad{}, newError(ErrIntegrity,
				fmt.Sprintf("scratch pad checksum mismatch (stored %#x, computed %#x)", stored, computed), "")
		}
	}
	return p, nil
}
