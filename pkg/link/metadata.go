package link

import (
	"encoding/binary"
	"fmt"
)

// Metadata sub-object keys.
const (
	// keyLinkCount holds the number of hard links to the owning object
	// (uint64, big-endian).
	keyLinkCount = "link_count"

	// keyObjectType holds the owning object's type (1 byte).
	keyObjectType = "object_type"
)

func encodeCount(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

func decodeCount(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, newError(ErrCorruptData, fmt.Sprintf("link count has %d bytes", len(data)), "")
	}
	return binary.BigEndian.Uint64(data), nil
}
