package cmd

import (
	"github.com/spf13/cobra"

	"github.com/medicaldate/clinic-portal/internal/core/service"
	mongodb "github.com/medicaldate/clinic-portal/internal/infrastructure/db/mongo"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo accounts into the mock auth backend",
	Long: `Upsert one demo account per role into MongoDB for the mock auth backend.
Every account uses the password ` + service.DemoPassword + `.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}

	client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	users := mongodb.NewUserRepository(db)
	tokens := mongodb.NewRefreshTokenRepository(db)
	if err := mongodb.EnsureIndexes(ctx, users, tokens); err != nil {
		return err
	}

	svc := service.NewMockAuthService(users, tokens, service.MockAuthConfig{Secret: cfg.Mock.JWTSecret})
	accounts := service.DemoAccounts()
	n, err := svc.Seed(ctx, accounts)
	if err != nil {
		return err
	}

	for _, a := range accounts {
		log.Info().Str("email", a.User.Email).Strs("roles", roleNames(a.User.Roles)).Msg("demo account ready")
	}
	log.Info().Int("count", n).Msg("seed complete")
	return nil
}

func roleNames[R ~string](roles []R) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
