package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/pkg/config"
	"github.com/marmos91/dittowopi/pkg/store/content"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

// FileInfo is the CLI view of a file record.
type FileInfo struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Container        string    `json:"container,omitempty"`
	Size             int64     `json:"size"`
	Version          int64     `json:"version"`
	Owner            string    `json:"owner"`
	Locked           bool      `json:"locked"`
	LastModifiedTime time.Time `json:"last_modified_time"`
}

func newFileInfo(f *metadata.FileRecord, now time.Time) FileInfo {
	_, locked, _ := f.LockState(now)
	return FileInfo{
		ID:               f.ID,
		Name:             f.BaseFileName,
		Container:        f.Container,
		Size:             f.Size,
		Version:          f.Version,
		Owner:            f.OwnerID,
		Locked:           locked,
		LastModifiedTime: f.LastModifiedTime,
	}
}

// NewFileCommand creates the file command group.
func NewFileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Register and list documents",
	}

	cmd.AddCommand(newFileAddCommand(rootOpts))
	cmd.AddCommand(newFileListCommand(rootOpts))

	return cmd
}

type fileAddOptions struct {
	id        string
	name      string
	owner     string
	container string
}

func newFileAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &fileAddOptions{}

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Upload a local document and register it",
		Long: `Upload a local document into the content store and create its record.

The id defaults to a random UUID. Ids are case-insensitive and stored lower-cased.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			info, err := runFileAdd(cmd.Context(), cfg, args[0], opts)
			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added %s as %s (%d bytes)\n", info.Name, info.ID, info.Size)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.id, "id", "", "file id (default: random UUID)")
	cmd.Flags().StringVar(&opts.name, "name", "", "display name (default: base name of path)")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "owner id (default: host.default_user_id)")
	cmd.Flags().StringVar(&opts.container, "container", "", "content container")

	return cmd
}

func runFileAdd(ctx context.Context, cfg *config.Config, path string, opts *fileAddOptions) (FileInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	st, err := openStores(ctx, cfg, &config.MetricsResult{})
	if err != nil {
		return FileInfo{}, err
	}
	defer func() { _ = st.Close() }()

	id := strings.ToLower(strings.TrimSpace(opts.id))
	if id == "" {
		id = uuid.NewString()
	}
	name := opts.name
	if name == "" {
		name = filepath.Base(path)
	}
	owner := opts.owner
	if owner == "" {
		owner = cfg.Host.DefaultUserID
	}

	now := time.Now()
	record := &metadata.FileRecord{
		ID:               id,
		Container:        opts.container,
		BaseFileName:     name,
		Size:             int64(len(data)),
		Version:          1,
		OwnerID:          owner,
		LastModifiedTime: now,
		LastModifiedUser: owner,
	}

	// Refuse before writing so an existing document's bytes survive
	if _, err := st.files.GetFile(ctx, id); err == nil {
		return FileInfo{}, fmt.Errorf("file %s already exists", id)
	} else if !metadata.IsNotFoundError(err) {
		return FileInfo{}, fmt.Errorf("failed to look up file: %w", err)
	}

	cid := content.NewContentID(record.Container, record.ID)
	if err := st.content.WriteContent(ctx, cid, data); err != nil {
		return FileInfo{}, fmt.Errorf("failed to store content: %w", err)
	}
	if err := st.files.CreateFile(ctx, record); err != nil {
		if derr := st.content.Delete(ctx, cid); derr != nil {
			logger.Warn("Orphaned content %s: %v", cid, derr)
		}
		return FileInfo{}, fmt.Errorf("failed to register file: %w", err)
	}

	return newFileInfo(record, now), nil
}

func newFileListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			files, err := runFileList(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), files)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSIZE\tVERSION\tLOCKED\tMODIFIED")
			for _, f := range files {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%t\t%s\n",
					f.ID, f.Name, f.Size, f.Version, f.Locked, f.LastModifiedTime.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func runFileList(ctx context.Context, cfg *config.Config) ([]FileInfo, error) {
	st, err := openStores(ctx, cfg, &config.MetricsResult{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	records, err := st.files.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	now := time.Now()
	files := make([]FileInfo, 0, len(records))
	for _, r := range records {
		files = append(files, newFileInfo(r, now))
	}
	return files, nil
}
