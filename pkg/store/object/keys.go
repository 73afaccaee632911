package object

import (
	"strings"
)

// Backend Key Namespace Design
// ============================
//
// The object layer maps every object onto prefixed keys of a flat versioned
// backend, so any store that can scan by prefix can host objects.
//
// Data Type             Prefix   Key Format                     Value Type
// =========================================================================
// Object Header         "o:"     o:<uuid>                       type (1 byte)
// Scratch Area          "s:"     s:<uuid>                       opaque bytes
// Object Keys           "k:"     k:<uuid>:<key>                 opaque bytes
// Commit Record         "x:"     x:committed                    uint64 (big-endian)
//
// 1. Object Header (o:)
//    - Presence of the header is what makes an object exist
//    - Unlink writes a tombstone over header, scratch and every key
//
// 2. Object Keys (k:)
//    - One backend key per object key, so listing an object is a prefix scan
//      over "k:<uuid>:"
//    - Keys may contain any byte; the uuid has a fixed length, so the first
//      ':' after it always terminates the prefix

const (
	// prefixHeader is the key prefix for object headers
	prefixHeader = "o:"

	// prefixScratch is the key prefix for scratch areas
	prefixScratch = "s:"

	// prefixKey is the key prefix for object keys
	prefixKey = "k:"

	// keyCommitted holds the newest committed write id
	keyCommitted = "x:committed"
)

// keyHeader generates the header key of an object.
//
// Format: "o:<uuid>"
func keyHeader(id ObjectID) []byte {
	return []byte(prefixHeader + id.String())
}

// keyScratch generates the scratch-area key of an object.
//
// Format: "s:<uuid>"
func keyScratch(id ObjectID) []byte {
	return []byte(prefixScratch + id.String())
}

// keyObjectPrefix generates the scan prefix covering all keys of an object.
//
// Format: "k:<uuid>:"
func keyObjectPrefix(id ObjectID) []byte {
	return []byte(prefixKey + id.String() + ":")
}

// keyObject generates the backend key of one object key.
//
// Format: "k:<uuid>:<key>"
func keyObject(id ObjectID, key string) []byte {
	return []byte(prefixKey + id.String() + ":" + key)
}

// objectKeyName extracts the object key from a backend key produced by
// keyObject.
func objectKeyName(id ObjectID, backendKey []byte) (string, bool) {
	return strings.CutPrefix(string(backendKey), string(keyObjectPrefix(id)))
}
