package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mescore service",
		Long: `Open the configured persistence backend, expose the Prometheus
metrics endpoint and run until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, logger, metrics, err := newService(cfg)
			if err != nil {
				return err
			}
			srv := metrics.StartMetricsServer()
			if srv != nil {
				logger.Infof("metrics endpoint listening on %s%s", cfg.Metrics.ListenAddress, cfg.Metrics.Path)
			}
			orders, err := svc.OrderStats(cmd.Context())
			if err != nil {
				return err
			}
			logger.WithFields(map[string]any{
				"storage_driver": cfg.Storage.Driver,
				"orders":         orders.Total,
			}).Info("mescore service ready")

			<-cmd.Context().Done()
			logger.Info("shutting down")
			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.WithError(err).Warn("metrics server shutdown")
				}
			}
			return nil
		},
	}
}
