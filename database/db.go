// database/db.go - pgx pool setup and schema
package database

import (
	"context"
	"fmt"
	"time"

	"portscope/common"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Annotation tables are primary-keyed on the full 6-tuple identity so the
// same host port on different containers stays separately annotatable.
// container_id stores '' for "no container" so it can participate in the
// primary key.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS notes (
		server_id    TEXT NOT NULL,
		host_ip      TEXT NOT NULL,
		host_port    INTEGER NOT NULL,
		protocol     TEXT NOT NULL,
		container_id TEXT NOT NULL DEFAULT '',
		internal     BOOLEAN NOT NULL DEFAULT FALSE,
		note         TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (server_id, host_ip, host_port, protocol, container_id, internal)
	)`,
	`CREATE TABLE IF NOT EXISTS ignores (
		server_id    TEXT NOT NULL,
		host_ip      TEXT NOT NULL,
		host_port    INTEGER NOT NULL,
		protocol     TEXT NOT NULL,
		container_id TEXT NOT NULL DEFAULT '',
		internal     BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (server_id, host_ip, host_port, protocol, container_id, internal)
	)`,
	`CREATE TABLE IF NOT EXISTS custom_service_names (
		server_id     TEXT NOT NULL,
		host_ip       TEXT NOT NULL,
		host_port     INTEGER NOT NULL,
		protocol      TEXT NOT NULL,
		container_id  TEXT NOT NULL DEFAULT '',
		internal      BOOLEAN NOT NULL DEFAULT FALSE,
		custom_name   TEXT NOT NULL,
		original_name TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (server_id, host_ip, host_port, protocol, container_id, internal)
	)`,
	`CREATE TABLE IF NOT EXISTS scan_logs (
		id        BIGSERIAL PRIMARY KEY,
		server_id TEXT NOT NULL,
		level     TEXT NOT NULL,
		message   TEXT NOT NULL,
		data      JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// InitDBFromEnv connects the shared pgx pool and applies the schema.
func InitDBFromEnv(ctx context.Context) error {
	dsn, err := common.ReadSecretMaybeFile(common.Env("PORTSCOPE_DB_DSN", ""))
	if err != nil {
		return fmt.Errorf("read DSN: %w", err)
	}
	if dsn == "" {
		pass, perr := common.ReadSecretMaybeFile(common.Env("PORTSCOPE_DB_PASS", "portscope"))
		if perr != nil {
			return fmt.Errorf("read DB password: %w", perr)
		}
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			common.Env("PORTSCOPE_DB_USER", "portscope"),
			pass,
			common.Env("PORTSCOPE_DB_HOST", "localhost"),
			common.Env("PORTSCOPE_DB_PORT", "5432"),
			common.Env("PORTSCOPE_DB_NAME", "portscope"),
			common.Env("PORTSCOPE_DB_SSLMODE", "disable"),
		)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping: %w", err)
	}

	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	common.DB = pool
	common.InfoLog("db: connected and schema verified")
	return nil
}
