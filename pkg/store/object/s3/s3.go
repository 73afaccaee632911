// Package s3 provides a versioned backend for the object store on Amazon S3
// or any S3-compatible service.
package s3

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// Backend implements object.Backend on an S3 bucket.
//
// Version Key Design:
//   - Every version of a key is one S3 object, never overwritten in place
//   - Format: "<prefix>v/<hex(key)>/<txid, 20 digits zero-padded>"
//   - Zero padding makes S3's lexicographic listing order equal to
//     transaction order, so the visible version at N is the last listed
//     version whose txid is <= N
//   - Hex encoding keeps arbitrary key bytes out of S3 key syntax while
//     preserving byte order, so a key-prefix scan is an S3 prefix listing
//
// Body Format:
//   - 1 byte marker (1 = value, 0 = tombstone) followed by the value bytes
//
// Thread Safety:
// Safe for concurrent use. Atomicity of check-then-write sequences is
// provided by the object layer above the backend.
type Backend struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// Config contains configuration for the S3 backend.
type Config struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "dittolink/" results in keys like "dittolink/v/6f3a.../00000000000000000001"
	KeyPrefix string
}

const (
	markerTombstone byte = 0
	markerValue     byte = 1
)

var _ object.Backend = (*Backend)(nil)

// New creates a new S3 backend and verifies bucket access. The bucket must
// already exist.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration
//
// Returns:
//   - *Backend: Initialized backend
//   - error: Returns error if bucket access fails or context is cancelled
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &Backend{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// Get returns the value of key visible at at.
func (b *Backend) Get(ctx context.Context, key []byte, at object.TxID) ([]byte, error) {
	versions, err := b.listVersions(ctx, b.keyDir(key))
	if err != nil {
		return nil, err
	}

	objKey, ok := versions.visible(hex.EncodeToString(key), at)
	if !ok {
		return nil, object.ErrKeyNotFound
	}

	value, live, err := b.fetch(ctx, objKey)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, object.ErrKeyNotFound
	}
	return value, nil
}

// Put uploads a version of key tagged at.
func (b *Backend) Put(ctx context.Context, key, value []byte, at object.TxID) error {
	body := make([]byte, 0, len(value)+1)
	body = append(body, markerValue)
	body = append(body, value...)
	return b.upload(ctx, b.versionKey(key, at), body)
}

// Delete uploads a tombstone for key tagged at.
func (b *Backend) Delete(ctx context.Context, key []byte, at object.TxID) error {
	return b.upload(ctx, b.versionKey(key, at), []byte{markerTombstone})
}

// Scan lists every key under prefix and fetches the visible live values.
func (b *Backend) Scan(ctx context.Context, prefix []byte, at object.TxID) ([]object.KV, error) {
	versions, err := b.listVersions(ctx, b.keyPrefix+"v/"+hex.EncodeToString(prefix))
	if err != nil {
		return nil, err
	}

	hexKeys := make([]string, 0, len(versions))
	for hexKey := range versions {
		hexKeys = append(hexKeys, hexKey)
	}
	sort.Strings(hexKeys)

	var out []object.KV
	for _, hexKey := range hexKeys {
		objKey, ok := versions.visible(hexKey, at)
		if !ok {
			continue
		}

		value, live, err := b.fetch(ctx, objKey)
		if err != nil {
			return nil, err
		}
		if !live {
			continue
		}

		key, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid key in bucket %q: %w", hexKey, err)
		}
		out = append(out, object.KV{Key: key, Value: value})
	}
	return out, nil
}

// Close is a no-op; the S3 client holds no resources that need closing.
func (b *Backend) Close() error {
	return nil
}

// ============================================================================
// Key Layout
// ============================================================================

func (b *Backend) keyDir(key []byte) string {
	return b.keyPrefix + "v/" + hex.EncodeToString(key) + "/"
}

func (b *Backend) versionKey(key []byte, at object.TxID) string {
	return fmt.Sprintf("%s%020d", b.keyDir(key), uint64(at))
}

// versionSet maps a hex-encoded key to its listed versions in ascending
// transaction order.
type versionSet map[string][]listedVersion

type listedVersion struct {
	at     object.TxID
	objKey string
}

func (vs versionSet) visible(hexKey string, at object.TxID) (string, bool) {
	list := vs[hexKey]
	i := sort.Search(len(list), func(i int) bool { return list[i].at > at })
	if i == 0 {
		return "", false
	}
	return list[i-1].objKey, true
}

// ============================================================================
// S3 Calls
// ============================================================================

func (b *Backend) listVersions(ctx context.Context, prefix string) (versionSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := b.keyPrefix + "v/"
	versions := make(versionSet)

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			rest, ok := strings.CutPrefix(*obj.Key, base)
			if !ok {
				continue
			}
			slash := strings.LastIndexByte(rest, '/')
			if slash < 0 {
				continue
			}
			at, err := strconv.ParseUint(rest[slash+1:], 10, 64)
			if err != nil {
				continue
			}
			hexKey := rest[:slash]
			versions[hexKey] = append(versions[hexKey], listedVersion{at: object.TxID(at), objKey: *obj.Key})
		}
	}

	for _, list := range versions {
		sort.Slice(list, func(i, j int) bool { return list[i].at < list[j].at })
	}
	return versions, nil
}

func (b *Backend) fetch(ctx context.Context, objKey string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get object %q: %w", objKey, err)
	}
	defer result.Body.Close()

	body, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read object %q: %w", objKey, err)
	}
	if len(body) == 0 {
		return nil, false, fmt.Errorf("object %q has empty body", objKey)
	}
	if body[0] == markerTombstone {
		return nil, false, nil
	}
	return body[1:], true, nil
}

func (b *Backend) upload(ctx context.Context, objKey string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objKey),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %q: %w", objKey, err)
	}
	return nil
}
