package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/dittowopi/pkg/store/content"
	contentfs "github.com/marmos91/dittowopi/pkg/store/content/fs"
	contentmemory "github.com/marmos91/dittowopi/pkg/store/content/memory"
	"github.com/marmos91/dittowopi/pkg/store/content/s3"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
	"github.com/marmos91/dittowopi/pkg/store/metadata/badger"
	metadatamemory "github.com/marmos91/dittowopi/pkg/store/metadata/memory"
	"github.com/marmos91/dittowopi/pkg/store/metadata/postgres"
)

// s3YAMLConfig represents S3 configuration loaded from YAML files.
type s3YAMLConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
}

// CreateMetadataStore creates the configured metadata store.
//
// When m is non-nil the store is wrapped so every operation is recorded.
func CreateMetadataStore(ctx context.Context, cfg MetadataConfig, m metadata.Metrics) (metadata.MetadataStore, error) {
	var (
		store metadata.MetadataStore
		err   error
	)

	switch cfg.Type {
	case "memory":
		store = metadatamemory.NewMemoryMetadataStore()
	case "badger":
		store, err = createBadgerMetadataStore(ctx, cfg)
	case "postgres":
		store, err = createPostgresMetadataStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	return metadata.Instrument(store, m), nil
}

// createBadgerMetadataStore creates a BadgerDB metadata store.
func createBadgerMetadataStore(ctx context.Context, cfg MetadataConfig) (metadata.MetadataStore, error) {
	// Decode BadgerDB-specific configuration
	var badgerCfg badger.BadgerMetadataStoreConfig
	if err := mapstructure.Decode(cfg.Badger, &badgerCfg); err != nil {
		return nil, fmt.Errorf("invalid badger config: %w", err)
	}

	if badgerCfg.DBPath == "" && !badgerCfg.InMemory {
		return nil, fmt.Errorf("badger db_path is required")
	}

	store, err := badger.NewBadgerMetadataStore(ctx, badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return store, nil
}

// createPostgresMetadataStore creates a PostgreSQL metadata store.
func createPostgresMetadataStore(ctx context.Context, cfg MetadataConfig) (metadata.MetadataStore, error) {
	var pgCfg postgres.PostgresMetadataStoreConfig
	if err := mapstructure.Decode(cfg.Postgres, &pgCfg); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}

	if pgCfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	store, err := postgres.NewPostgresMetadataStore(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return store, nil
}

// CreateContentStore creates the configured content store.
//
// s3Metrics is only used by the s3 store and may be nil.
func CreateContentStore(ctx context.Context, cfg ContentConfig, s3Metrics s3.S3Metrics) (content.ContentStore, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemContentStore(ctx, cfg)
	case "memory":
		return contentmemory.NewMemoryContentStore(), nil
	case "s3":
		return createS3ContentStore(ctx, cfg, s3Metrics)
	default:
		return nil, fmt.Errorf("unknown content store type: %q", cfg.Type)
	}
}

// createFilesystemContentStore creates a filesystem-backed content store.
func createFilesystemContentStore(ctx context.Context, cfg ContentConfig) (content.ContentStore, error) {
	// Decode filesystem-specific configuration to get the path
	var fsCfg struct {
		Path string `mapstructure:"path"`
	}
	if err := mapstructure.Decode(cfg.Filesystem, &fsCfg); err != nil {
		return nil, fmt.Errorf("invalid filesystem config: %w", err)
	}

	if fsCfg.Path == "" {
		return nil, fmt.Errorf("filesystem path is required")
	}

	store, err := contentfs.NewFSContentStore(ctx, fsCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize filesystem store: %w", err)
	}

	return store, nil
}

// createS3ContentStore creates an S3-backed content store.
func createS3ContentStore(ctx context.Context, cfg ContentConfig, m s3.S3Metrics) (content.ContentStore, error) {
	var yamlCfg s3YAMLConfig
	if err := mapstructure.Decode(cfg.S3, &yamlCfg); err != nil {
		return nil, fmt.Errorf("invalid S3 config: %w", err)
	}

	// Validate required fields
	if yamlCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if yamlCfg.Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}

	client, err := s3.NewClient(ctx, s3.ClientOptions{
		Region:          yamlCfg.Region,
		Endpoint:        yamlCfg.Endpoint,
		AccessKeyID:     yamlCfg.AccessKeyID,
		SecretAccessKey: yamlCfg.SecretAccessKey,
		ForcePathStyle:  yamlCfg.ForcePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	store, err := s3.NewS3ContentStore(ctx, s3.S3ContentStoreConfig{
		Client:    client,
		Bucket:    yamlCfg.Bucket,
		KeyPrefix: yamlCfg.KeyPrefix,
		Metrics:   m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 store: %w", err)
	}

	return store, nil
}
