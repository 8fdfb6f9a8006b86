// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"business-directory/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the SQL connection that backs the moderation audit log.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens the audit database with the configured pool limits.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id            BIGSERIAL PRIMARY KEY,
	event_type    VARCHAR(64)  NOT NULL,
	resource_type VARCHAR(64)  NOT NULL,
	resource_id   VARCHAR(128) NOT NULL,
	details       JSONB,
	created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_log_resource ON audit_log (resource_type, resource_id);`

// Migrate creates the audit table when it does not exist yet.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("failed to migrate audit schema: %w", err)
	}
	return nil
}
