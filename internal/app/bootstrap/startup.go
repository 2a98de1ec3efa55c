// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	userstore "github.com/parishhub/parishhub/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
//
// ParishHub uses it to bootstrap the superadmin account: when
// superadmin_email is configured, the matching account is promoted (and
// marked verified) so the platform always has an operator after deploy.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if appCfg.SuperAdminEmail == "" {
		return nil
	}

	users := userstore.New(deps.MongoDatabase)
	err := users.PromoteToSuperAdmin(ctx, appCfg.SuperAdminEmail)
	switch {
	case err == mongo.ErrNoDocuments:
		logger.Warn("superadmin account does not exist yet; register it and restart",
			zap.String("email", appCfg.SuperAdminEmail))
	case err != nil:
		return err
	default:
		logger.Info("superadmin promoted", zap.String("email", appCfg.SuperAdminEmail))
	}
	return nil
}
