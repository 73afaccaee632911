package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/pkg/metrics"
	"github.com/marmos91/dittolink/pkg/store/object"
	"github.com/marmos91/dittolink/pkg/store/object/badger"
	"github.com/marmos91/dittolink/pkg/store/object/memory"
	"github.com/marmos91/dittolink/pkg/store/object/s3"
	"github.com/mitchellh/mapstructure"
)

// CreateStore creates an object store based on configuration.
//
// This factory function uses the Type field to determine which backend
// to create, then decodes the type-specific configuration from the
// corresponding map and passes it to the backend's constructor. The backend
// is wrapped so that every call is observed by m.
//
// Supported types:
//   - "memory": In-memory backend (ephemeral)
//   - "badger": BadgerDB backend (persistent, local)
//   - "s3": Amazon S3 or compatible storage
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Store configuration
//   - m: Store metrics (nil = no metrics)
//
// Returns:
//   - *object.Store: Initialized store, owned by the caller (Close it)
//   - error: Configuration or initialization error
func CreateStore(ctx context.Context, cfg *StoreConfig, m metrics.StoreMetrics) (*object.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var backend object.Backend
	var err error

	switch cfg.Type {
	case "memory":
		backend = memory.New()
	case "badger":
		backend, err = createBadgerBackend(ctx, cfg.Badger)
	case "s3":
		backend, err = createS3Backend(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown store type: %q (supported: memory, badger, s3)", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	return object.NewStore(object.Instrument(backend, cfg.Type, m)), nil
}

// createBadgerBackend creates a BadgerDB backend.
func createBadgerBackend(ctx context.Context, options map[string]any) (object.Backend, error) {
	var badgerCfg badger.Config
	if err := mapstructure.Decode(options, &badgerCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger store config: %w", err)
	}

	if badgerCfg.DBPath == "" && !badgerCfg.InMemory {
		return nil, fmt.Errorf("badger store: db_path is required")
	}

	backend, err := badger.New(ctx, badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger store: %w", err)
	}

	logger.Info("Badger store initialized: path=%s, in_memory=%v", badgerCfg.DBPath, badgerCfg.InMemory)
	return backend, nil
}

// s3StoreConfig represents S3 configuration loaded from YAML files.
type s3StoreConfig struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// createS3Backend creates an S3-based backend.
func createS3Backend(ctx context.Context, options map[string]any) (object.Backend, error) {
	var storeCfg s3StoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 store: region is required")
	}

	client, err := newS3Client(ctx, storeCfg)
	if err != nil {
		return nil, err
	}

	backend, err := s3.New(ctx, s3.Config{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 store: %w", err)
	}

	logger.Info("S3 store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return backend, nil
}

// newS3Client builds an S3 client from the store options.
func newS3Client(ctx context.Context, storeCfg s3StoreConfig) (*awss3.Client, error) {
	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(storeCfg.Region),
	}

	// Static credentials if provided, otherwise the default credential chain
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(storeCfg.AccessKeyID, storeCfg.SecretAccessKey, ""),
		))
	}

	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	return awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		// Custom endpoints (MinIO, Localstack) need path-style addressing
		if storeCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(storeCfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
