package db

import (
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	"github.com/haccare/emr-service/internal/config"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Connect opens an instrumented PostgreSQL pool and verifies it with a ping.
// Sessions opened on it act as cfg.DBAppRole.
func Connect(cfg *config.Config) (*sql.DB, error) {
	attrs := otelsql.WithAttributes(
		semconv.DBSystemPostgreSQL,
		semconv.DBName(cfg.DBName),
	)

	db, err := otelsql.Open("postgres", cfg.DSN(), attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := otelsql.RegisterDBStatsMetrics(db, attrs); err != nil {
		log.Warn().Err(err).Msg("failed to register database stats metrics")
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	SetAppRole(cfg.DBAppRole)

	log.Info().
		Str("host", cfg.DBHost).
		Str("database", cfg.DBName).
		Str("app_role", SessionRole()).
		Int("max_open_conns", cfg.DBMaxOpenConns).
		Msg("connected to PostgreSQL")
	return db, nil
}
