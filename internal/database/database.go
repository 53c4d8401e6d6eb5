// Package database provides the Postgres-backed registry of notification endpoints.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Endpoint represents a row of the endpoints table.
// Type names a channel kind ("email", "slack", ...) and Value one destination for it.
type Endpoint struct {
	EndpointID string    `json:"endpoint_id"`
	Type       string    `json:"type"`
	Value      string    `json:"value"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// schema is applied by EnsureSchema.
const schema = `
CREATE TABLE IF NOT EXISTS endpoints (
	endpoint_id TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	value       TEXT NOT NULL,
	enabled     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (type, value)
)`

// DB wraps a database connection and provides endpoint operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection using the provided DSN.
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database")

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		slog.Info("Closing database connection")
		return db.conn.Close()
	}
	return nil
}

// EnsureSchema creates the endpoints table if it does not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create endpoints table: %w", err)
	}
	return nil
}

// EnabledEndpoints returns all enabled endpoints whose type is one of types.
// An empty types slice returns every enabled endpoint.
func (db *DB) EnabledEndpoints(ctx context.Context, types []string) ([]Endpoint, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if len(types) == 0 {
		rows, err = db.conn.QueryContext(ctx, `
			SELECT endpoint_id, type, value, enabled, created_at, updated_at
			FROM endpoints
			WHERE enabled = TRUE
			ORDER BY type, created_at ASC
		`)
	} else {
		rows, err = db.conn.QueryContext(ctx, `
			SELECT endpoint_id, type, value, enabled, created_at, updated_at
			FROM endpoints
			WHERE type = ANY($1) AND enabled = TRUE
			ORDER BY type, created_at ASC
		`, pq.Array(types))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query endpoints: %w", err)
	}
	defer rows.Close()

	var result []Endpoint
	for rows.Next() {
		var ep Endpoint
		if err := rows.Scan(&ep.EndpointID, &ep.Type, &ep.Value, &ep.Enabled, &ep.CreatedAt, &ep.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint: %w", err)
		}
		result = append(result, ep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating endpoints: %w", err)
	}

	return result, nil
}

// UpsertEndpoint inserts an endpoint or updates the enabled flag of an existing (type, value) pair.
func (db *DB) UpsertEndpoint(ctx context.Context, ep Endpoint) error {
	query := `
		INSERT INTO endpoints (endpoint_id, type, value, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (type, value) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = NOW()
	`
	if _, err := db.conn.ExecContext(ctx, query, ep.EndpointID, ep.Type, ep.Value, ep.Enabled); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("endpoint id already exists: %s", ep.EndpointID)
		}
		return fmt.Errorf("failed to upsert endpoint: %w", err)
	}
	return nil
}
