package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

// BadgerMetadataStore implements metadata.MetadataStore using BadgerDB for persistence.
//
// This implementation provides a persistent metadata store backed by BadgerDB,
// a fast embedded key-value store. It is suitable for:
//   - Single-node production deployments requiring persistence across restarts
//   - Systems where lock state must survive server crashes
//
// Thread Safety:
// BadgerDB transactions are serializable. UpdateFile reads the stored
// revision and writes the new record in one transaction, so two writers
// racing on the same key cannot both commit: the loser gets either a
// revision mismatch or badger.ErrConflict, both reported as
// metadata.ErrConflict.
type BadgerMetadataStore struct {
	// db is the BadgerDB database handle (thread-safe, uses internal MVCC)
	db *badger.DB
}

// BadgerMetadataStoreConfig contains configuration for creating a BadgerDB metadata store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB will store its files
	// BadgerDB creates multiple files in this directory (value log, LSM tree, etc.)
	DBPath string `mapstructure:"db_path" validate:"required"`

	// InMemory runs BadgerDB without touching disk (tests only).
	InMemory bool `mapstructure:"in_memory"`

	// BadgerOptions allows customization of BadgerDB behavior
	// If nil, sensible defaults are used
	BadgerOptions *badger.Options `mapstructure:"-"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`
}

// NewBadgerMetadataStore creates a new BadgerDB-based metadata store.
//
// BadgerDB is opened at config.DBPath and creates the directory if it
// doesn't exist. The returned store is immediately ready for use.
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else {
		if config.InMemory {
			opts = badger.DefaultOptions("").WithInMemory(true)
		} else {
			opts = badger.DefaultOptions(config.DBPath)
		}

		// Records are small JSON documents
		opts = opts.WithLoggingLevel(badger.WARNING)
		opts = opts.WithCompression(options.None)

		blockCacheMB := config.BlockCacheSizeMB
		if blockCacheMB == 0 {
			blockCacheMB = 64
		}
		indexCacheMB := config.IndexCacheSizeMB
		if indexCacheMB == 0 {
			indexCacheMB = 32
		}

		opts = opts.WithBlockCacheSize(blockCacheMB << 20)
		opts = opts.WithIndexCacheSize(indexCacheMB << 20)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	store := &BadgerMetadataStore{db: db}

	if err := store.initializeSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewBadgerMetadataStoreWithDefaults creates a store at dbPath with default options.
func NewBadgerMetadataStoreWithDefaults(ctx context.Context, dbPath string) (*BadgerMetadataStore, error) {
	return NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dbPath})
}

// initializeSchema writes the schema marker on first open and refuses to
// open a database written by a newer format.
func (s *BadgerMetadataStore) initializeSchema() error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keySchema())
		if errors.Is(err, badger.ErrKeyNotFound) {
			return txn.Set(keySchema(), encodeUint32(schemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		return item.Value(func(val []byte) error {
			v, err := decodeUint32(val)
			if err != nil {
				return err
			}
			if v > schemaVersion {
				return fmt.Errorf("database schema version %d is newer than supported version %d", v, schemaVersion)
			}
			return nil
		})
	})
}

// GetFile implements metadata.MetadataStore.
func (s *BadgerMetadataStore) GetFile(ctx context.Context, id string) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var file *metadata.FileRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		file, err = getFileTxn(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// CreateFile implements metadata.MetadataStore.
func (s *BadgerMetadataStore) CreateFile(ctx context.Context, file *metadata.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := file.Validate(); err != nil {
		return err
	}

	stored := file.Clone()
	stored.Revision = 1

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(keyFile(file.ID))
		if err == nil {
			return &metadata.StoreError{
				Code:    metadata.ErrAlreadyExists,
				Message: "file already exists",
				ID:      file.ID,
			}
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return ioError(file.ID, err)
		}

		data, err := encodeFile(stored)
		if err != nil {
			return err
		}
		return txn.Set(keyFile(file.ID), data)
	})
	if errors.Is(err, badger.ErrConflict) {
		return &metadata.StoreError{
			Code:    metadata.ErrAlreadyExists,
			Message: "file created concurrently",
			ID:      file.ID,
		}
	}
	if err != nil {
		return err
	}

	file.Revision = stored.Revision
	return nil
}

// UpdateFile implements metadata.MetadataStore.
func (s *BadgerMetadataStore) UpdateFile(ctx context.Context, file *metadata.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := file.Validate(); err != nil {
		return err
	}

	next := file.Clone()
	next.Revision = file.Revision + 1

	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := getFileTxn(txn, file.ID)
		if err != nil {
			return err
		}
		if current.Revision != file.Revision {
			return metadata.NewConflictError(file.ID)
		}

		data, err := encodeFile(next)
		if err != nil {
			return err
		}
		return txn.Set(keyFile(file.ID), data)
	})
	if errors.Is(err, badger.ErrConflict) {
		logger.Debug("badger: transaction conflict updating %s", file.ID)
		return metadata.NewConflictError(file.ID)
	}
	if err != nil {
		return err
	}

	file.Revision = next.Revision
	return nil
}

// ListFiles implements metadata.MetadataStore.
func (s *BadgerMetadataStore) ListFiles(ctx context.Context) ([]*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var files []*metadata.FileRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyFilePrefix()
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				file, err := decodeFile(val)
				if err != nil {
					return err
				}
				files = append(files, file)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Healthcheck verifies the database accepts read transactions.
func (s *BadgerMetadataStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(keySchema())
		return err
	})
}

// Close closes the BadgerDB database and flushes pending writes.
func (s *BadgerMetadataStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

func getFileTxn(txn *badger.Txn, id string) (*metadata.FileRecord, error) {
	item, err := txn.Get(keyFile(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, metadata.NewNotFoundError(id)
	}
	if err != nil {
		return nil, ioError(id, err)
	}

	var file *metadata.FileRecord
	err = item.Value(func(val []byte) error {
		var err error
		file, err = decodeFile(val)
		return err
	})
	return file, err
}

func ioError(id string, err error) error {
	return &metadata.StoreError{
		Code:    metadata.ErrIOError,
		Message: fmt.Sprintf("badger: %v", err),
		ID:      id,
	}
}
