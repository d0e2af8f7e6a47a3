// Package postgres implements metadata.MetadataStore on PostgreSQL.
//
// Records live in the wopi_files table. Conditional updates are a single
// UPDATE ... WHERE id = $1 AND revision = $2: zero affected rows means the
// record vanished or another writer bumped the revision first.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

// PostgresMetadataStoreConfig configures the PostgreSQL store.
type PostgresMetadataStoreConfig struct {
	// DSN is a postgres:// connection URL.
	DSN string `mapstructure:"dsn" validate:"required"`

	// MaxConns caps the pool size (0 = pgxpool default).
	MaxConns int32 `mapstructure:"max_conns" validate:"gte=0"`

	// AutoMigrate applies embedded migrations on startup.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// PostgresMetadataStore implements metadata.MetadataStore.
type PostgresMetadataStore struct {
	pool *pgxpool.Pool
}

// NewPostgresMetadataStore connects, pings, and optionally migrates.
func NewPostgresMetadataStore(ctx context.Context, config PostgresMetadataStoreConfig) (*PostgresMetadataStore, error) {
	if config.AutoMigrate {
		if err := Migrate(config.DSN); err != nil {
			return nil, err
		}
	}

	poolCfg, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	if config.MaxConns > 0 {
		poolCfg.MaxConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	logger.Info("postgres: connected to %s:%d/%s",
		poolCfg.ConnConfig.Host, poolCfg.ConnConfig.Port, poolCfg.ConnConfig.Database)

	return &PostgresMetadataStore{pool: pool}, nil
}

const selectColumns = `id, container, base_file_name, size, version, lock_value, lock_expires,
	last_modified_time, last_modified_user, owner_id, user_info, revision`

// GetFile implements metadata.MetadataStore.
func (s *PostgresMetadataStore) GetFile(ctx context.Context, id string) (*metadata.FileRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM wopi_files WHERE id = $1`, id)

	file, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, metadata.NewNotFoundError(id)
	}
	if err != nil {
		return nil, ioError(id, err)
	}
	return file, nil
}

// CreateFile implements metadata.MetadataStore.
func (s *PostgresMetadataStore) CreateFile(ctx context.Context, file *metadata.FileRecord) error {
	if err := file.Validate(); err != nil {
		return err
	}

	lockValue, lockExpires := lockColumns(file)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO wopi_files (id, container, base_file_name, size, version, lock_value, lock_expires,
			last_modified_time, last_modified_user, owner_id, user_info, revision)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)`,
		file.ID, file.Container, file.BaseFileName, file.Size, file.Version, lockValue, lockExpires,
		file.LastModifiedTime, file.LastModifiedUser, file.OwnerID, file.UserInfo,
	)
	if isUniqueViolation(err) {
		return &metadata.StoreError{
			Code:    metadata.ErrAlreadyExists,
			Message: "file already exists",
			ID:      file.ID,
		}
	}
	if err != nil {
		return ioError(file.ID, err)
	}

	file.Revision = 1
	return nil
}

// UpdateFile implements metadata.MetadataStore.
func (s *PostgresMetadataStore) UpdateFile(ctx context.Context, file *metadata.FileRecord) error {
	if err := file.Validate(); err != nil {
		return err
	}

	lockValue, lockExpires := lockColumns(file)
	tag, err := s.pool.Exec(ctx, `
		UPDATE wopi_files SET
			container = $3, base_file_name = $4, size = $5, version = $6,
			lock_value = $7, lock_expires = $8,
			last_modified_time = $9, last_modified_user = $10,
			owner_id = $11, user_info = $12,
			revision = revision + 1
		WHERE id = $1 AND revision = $2`,
		file.ID, int64(file.Revision),
		file.Container, file.BaseFileName, file.Size, file.Version,
		lockValue, lockExpires,
		file.LastModifiedTime, file.LastModifiedUser,
		file.OwnerID, file.UserInfo,
	)
	if err != nil {
		return ioError(file.ID, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wopi_files WHERE id = $1)`, file.ID).Scan(&exists)
		if err != nil {
			return ioError(file.ID, err)
		}
		if !exists {
			return metadata.NewNotFoundError(file.ID)
		}
		return metadata.NewConflictError(file.ID)
	}

	file.Revision++
	return nil
}

// ListFiles implements metadata.MetadataStore.
func (s *PostgresMetadataStore) ListFiles(ctx context.Context) ([]*metadata.FileRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM wopi_files ORDER BY id`)
	if err != nil {
		return nil, ioError("", err)
	}
	defer rows.Close()

	var files []*metadata.FileRecord
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, ioError("", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, ioError("", err)
	}
	return files, nil
}

// Healthcheck pings the database.
func (s *PostgresMetadataStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresMetadataStore) Close() error {
	s.pool.Close()
	return nil
}

func scanFile(row pgx.Row) (*metadata.FileRecord, error) {
	var (
		file        metadata.FileRecord
		lockValue   *string
		lockExpires *time.Time
		revision    int64
	)

	err := row.Scan(
		&file.ID, &file.Container, &file.BaseFileName, &file.Size, &file.Version,
		&lockValue, &lockExpires,
		&file.LastModifiedTime, &file.LastModifiedUser, &file.OwnerID, &file.UserInfo,
		&revision,
	)
	if err != nil {
		return nil, err
	}

	if lockValue != nil && lockExpires != nil {
		file.SetLock(*lockValue, *lockExpires)
	}
	file.Revision = uint64(revision)
	return &file, nil
}

func lockColumns(file *metadata.FileRecord) (*string, *time.Time) {
	if file.LockValue == "" {
		return nil, nil
	}
	value, expires := file.LockValue, file.LockExpires
	return &value, &expires
}

// isUniqueViolation reports a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func ioError(id string, err error) error {
	return &metadata.StoreError{
		Code:    metadata.ErrIOError,
		Message: fmt.Sprintf("postgres: %v", err),
		ID:      id,
	}
}
