package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/alerts"
	"github.com/haccare/emr-service/internal/auth"
	"github.com/haccare/emr-service/internal/config"
	"github.com/haccare/emr-service/internal/db"
	apphttp "github.com/haccare/emr-service/internal/http"
	"github.com/haccare/emr-service/internal/logging"
	"github.com/haccare/emr-service/internal/messaging"
	"github.com/haccare/emr-service/internal/telemetry"
	"github.com/haccare/emr-service/internal/workerpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "emr-service",
		Short: "hacCare EMR API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(scanAlertsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Setup(cfg.LogLevel, cfg.IsDev())
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the alert scanner",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.InitProvider(ctx, telemetry.FromAppConfig(cfg))
	if err != nil {
		log.Warn().Err(err).Msg("telemetry disabled")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("telemetry shutdown failed")
			}
		}()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("metrics disabled")
	}

	conn, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	applied, err := db.NewMigrator(conn).Up(ctx)
	if err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	log.Info().Int("applied", applied).Msg("migrations up to date")

	perms, err := auth.LoadPermissions(cfg.PermissionsFile)
	if err != nil {
		return err
	}
	engine, err := loadPolicy(cfg)
	if err != nil {
		return err
	}

	jwks, err := auth.NewJWKS(cfg.AuthJWKSURL, 0)
	if err != nil {
		return fmt.Errorf("failed to load JWKS: %w", err)
	}
	defer jwks.Close()
	verifier := auth.NewVerifier(auth.Config{
		Issuer:   cfg.AuthIssuer,
		JWKSURL:  cfg.AuthJWKSURL,
		Audience: cfg.AuthAudience,
	}, jwks)

	publisher := newPublisher(cfg)
	defer publisher.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = access.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
	}

	deps := apphttp.Wire(conn, apphttp.Options{
		Verifier:    verifier,
		Permissions: perms,
		Policy:      engine,
		Publisher:   publisher,
		Redis:       rdb,
		Metrics:     metrics,
		Config: apphttp.RouterConfig{
			ServiceName:        cfg.ServiceName,
			AllowedOrigins:     cfg.AllowedOrigins,
			RateLimitRPS:       cfg.RateLimitRPS,
			RateLimitBurst:     cfg.RateLimitBurst,
			MembershipCacheTTL: cfg.MembershipCacheTTL,
		},
	})

	var limiter *apphttp.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = apphttp.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		go limiter.Run(ctx)
	}

	if cfg.AlertScanInterval > 0 {
		scanner := alerts.NewScanner(deps.TenantRepo, deps.MedicationRepo, deps.AlertService, scanPoolConfig(cfg))
		go scanner.Run(ctx, cfg.AlertScanInterval)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apphttp.SetupRouter(deps, limiter),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("emr-service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadPolicy(cfg *config.Config) (*access.PolicyEngine, error) {
	policies, err := access.LoadPolicies(cfg.PoliciesFile)
	if err != nil {
		return nil, err
	}
	return access.NewPolicyEngine(policies)
}

type closingPublisher interface {
	messaging.PublisherInterface
	Close() error
}

// newPublisher connects to RabbitMQ behind a circuit breaker. Without a
// broker, events are dropped.
func newPublisher(cfg *config.Config) closingPublisher {
	if cfg.RabbitMQURL == "" {
		return messaging.NopPublisher{}
	}
	pub, err := messaging.NewPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Warn().Err(err).Msg("RabbitMQ unavailable, events will not be published")
		return messaging.NopPublisher{}
	}
	return messaging.NewBreakerPublisher(pub, messaging.DefaultBreakerConfig())
}

func scanPoolConfig(cfg *config.Config) workerpool.Config {
	pool := workerpool.DefaultConfig()
	if cfg.AlertScanWorkers > 0 {
		pool.Workers = cfg.AlertScanWorkers
	}
	return pool
}

func openDB() (*config.Config, *sql.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	conn, err := db.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, conn, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, err := openDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			count, err := db.NewMigrator(conn).Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, err := openDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			statuses, err := db.NewMigrator(conn).Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func scanAlertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan-alerts",
		Short: "Run one medication alert scan over all active tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := openDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			engine, err := loadPolicy(cfg)
			if err != nil {
				return err
			}
			publisher := newPublisher(cfg)
			defer publisher.Close()

			deps := apphttp.Wire(conn, apphttp.Options{Policy: engine, Publisher: publisher})
			scanner := alerts.NewScanner(deps.TenantRepo, deps.MedicationRepo, deps.AlertService, scanPoolConfig(cfg))

			summary, err := scanner.ScanOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Scanned %d tenant(s): %d alert(s) created, %d failed, %d retried in %s\n",
				summary.Tenants, summary.Created, summary.Failed, summary.Retried, summary.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
}
