package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"mescore/internal/infra/archive"
	"mescore/internal/infra/persistence/memory"
)

func newRestoreCommand() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore state from an archived snapshot",
		Long: `Fetch an archived snapshot and replace the full store state with
it. The current state is overwritten, archive it first if it matters.`,
		Example: `  mescore restore --key snapshots/20260615T090000Z.json.gz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				return fmt.Errorf("--key is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, logger, _, err := newService(cfg)
			if err != nil {
				return err
			}
			restorer, ok := svc.Store().(stateRestorer)
			if !ok {
				return fmt.Errorf("storage driver %q does not support restore", cfg.Storage.Driver)
			}
			archiveStore, err := openArchive(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			var snapshot memory.Snapshot
			if err := archive.ReadSnapshot(cmd.Context(), archiveStore, key, &snapshot); err != nil {
				return err
			}
			if err := restorer.RestoreState(cmd.Context(), snapshot); err != nil {
				return err
			}
			logger.WithField("key", key).Info("state restored from snapshot")
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "archive key of the snapshot to restore")

	return cmd
}
