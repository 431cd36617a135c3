// Package cmd holds the portal command line.
package cmd

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/medicaldate/clinic-portal/internal/pkg/config"
	"github.com/medicaldate/clinic-portal/pkg/logger"
)

const serviceName = "clinic-portal"

var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "MedicalDate clinic portal gateway",
	Long: `portal serves the clinic portal session gateway. It keeps backend tokens in
http-only cookies, refreshes them transparently and guards the dashboard
views by role and permission.

Configuration is read from the environment (PORT, API_URL, USE_MOCK_AUTH,
MONGO_URI, REDIS_ADDR, AMQP_URI, ...).`,
	SilenceUsage: true,
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// setup loads configuration and initialises the logger.
func setup(ctx context.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadFrom(ctx, envconfig.OsLookuper())
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: serviceName,
	})
	return cfg, log, nil
}
