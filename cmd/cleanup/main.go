package main

import (
	"context"
	"os"
	"time"

	"github.com/haccare/emr-service/internal/alerts"
	"github.com/haccare/emr-service/internal/config"
	"github.com/haccare/emr-service/internal/db"
	"github.com/haccare/emr-service/internal/logging"
	"github.com/haccare/emr-service/internal/messaging"
	"github.com/haccare/emr-service/internal/tenant"
	"github.com/rs/zerolog/log"
)

// alertRetention is how long acknowledged or expired alerts are kept.
const alertRetention = 30 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Setup(cfg.LogLevel, cfg.IsDev())

	log.Info().
		Dur("tenant_retention", tenant.RetentionPeriod).
		Dur("alert_retention", alertRetention).
		Msg("cleanup job starting")

	conn, err := db.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	failed := false

	cleanup := tenant.NewCleanupService(conn)
	count, err := cleanup.GetExpiredTenantsCount(ctx)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("failed to count expired tenants")
		failed = true
	case count == 0:
		log.Info().Msg("no tenants eligible for permanent deletion")
	default:
		log.Info().Int("count", count).Msg("tenants eligible for permanent deletion")
		deleted, err := cleanup.CleanupExpiredTenants(ctx)
		if err != nil {
			log.Error().Err(err).Msg("tenant cleanup failed")
			failed = true
		} else {
			log.Info().Int("deleted", deleted).Msg("tenant cleanup completed")
		}
	}

	// Purge never evaluates row policies, so no engine is needed here.
	alertSvc := alerts.NewService(alerts.NewRepository(conn), nil, messaging.NopPublisher{})
	purged, err := alertSvc.Purge(ctx, alertRetention)
	if err != nil {
		log.Error().Err(err).Msg("alert purge failed")
		failed = true
	} else {
		log.Info().Int64("purged", purged).Msg("alert purge completed")
	}

	log.Info().Bool("failed", failed).Msg("cleanup job finished")
	if failed {
		conn.Close()
		os.Exit(1)
	}
}
