package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSnapshotsCommand() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List archived snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			archiveStore, err := openArchive(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			listed, err := archiveStore.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSIZE\tLAST MODIFIED")
			for _, info := range listed {
				fmt.Fprintf(w, "%s\t%d\t%s\n", info.Key, info.Size, info.LastModified.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "snapshots/", "key prefix to list")

	return cmd
}
