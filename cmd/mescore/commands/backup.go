package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mescore/internal/config"
	"mescore/internal/infra/archive"
	archivecore "mescore/internal/infra/archive/core"
	archivefs "mescore/internal/infra/archive/fs"
	archivemem "mescore/internal/infra/archive/memory"
	archives3 "mescore/internal/infra/archive/s3"
	"mescore/internal/infra/persistence/memory"
)

// stateExporter is satisfied by every persistence backend, they all expose
// the in-memory snapshot of their state.
type stateExporter interface {
	ExportState() memory.Snapshot
}

type stateRestorer interface {
	RestoreState(ctx context.Context, snapshot memory.Snapshot) error
}

func openArchive(ctx context.Context, cfg config.Config) (archivecore.Store, error) {
	switch cfg.Archive.Driver {
	case "fs":
		return archivefs.New(cfg.Archive.FSRoot)
	case "s3":
		return archives3.New(ctx, archives3.Config{
			Region:          cfg.Archive.S3.Region,
			Bucket:          cfg.Archive.S3.Bucket,
			Endpoint:        cfg.Archive.S3.Endpoint,
			AccessKeyID:     cfg.Archive.S3.AccessKeyID,
			SecretAccessKey: cfg.Archive.S3.SecretAccessKey,
			PathStyle:       cfg.Archive.S3.PathStyle,
		})
	case "memory":
		return archivemem.New(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Archive.Driver)
	}
}

func newBackupCommand() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive a state snapshot",
		Long: `Export the full store state and archive it as a gzipped JSON
snapshot. Snapshots are immutable, an existing key is never overwritten.`,
		Example: `  # Archive a snapshot under a timestamped key
  mescore backup

  # Archive under an explicit key
  mescore backup --key snapshots/pre-migration.json.gz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, logger, _, err := newService(cfg)
			if err != nil {
				return err
			}
			exporter, ok := svc.Store().(stateExporter)
			if !ok {
				return fmt.Errorf("storage driver %q does not support snapshots", cfg.Storage.Driver)
			}
			archiveStore, err := openArchive(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			if key == "" {
				key = archive.SnapshotKey(time.Now())
			}
			info, err := archive.WriteSnapshot(cmd.Context(), archiveStore, key, exporter.ExportState())
			if err != nil {
				return err
			}
			logger.WithFields(map[string]any{
				"key":        info.Key,
				"size_bytes": info.Size,
				"driver":     archiveStore.Driver(),
			}).Info("snapshot archived")
			fmt.Fprintln(cmd.OutOrStdout(), info.Key)
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "archive key, defaults to a timestamped snapshot key")

	return cmd
}
