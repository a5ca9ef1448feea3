package state

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const pingTimeout = 10 * time.Second

// PGConfig is the connection configuration for the production install
// state backend, mirroring the teacher's database.New parameters.
type PGConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// PGStore is the production backend: one row per session key in a
// `sandbox_install_state` table, keyed on session_key.
type PGStore struct {
	pool *pgxpool.Pool
	log  *zerolog.Logger
}

func NewPGStore(ctx context.Context, conf PGConfig, log *zerolog.Logger) (*PGStore, error) {
	host := net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port))
	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		conf.User, url.QueryEscape(conf.Password), host, conf.Name, conf.SSLMode)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse install-state dsn: %w", err)
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "sandboxd"
	poolConfig.ConnConfig.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
		dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
		return dialer.DialContext(ctx, network, addr)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create install-state pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("ping install-state database: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		return nil, err
	}

	log.Info().Msg("install-state database connection established")
	return &PGStore{pool: pool, log: log}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sandbox_install_state (
			session_key TEXT PRIMARY KEY,
			bundle_hash TEXT NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate install-state table: %w", err)
	}
	return nil
}

func (s *PGStore) GetInstalledHash(ctx context.Context, sessionKey string) (string, bool, error) {
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT bundle_hash FROM sandbox_install_state WHERE session_key = $1`, sessionKey,
	).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query install state for %s: %w", sessionKey, err)
	}
	return hash, true, nil
}

func (s *PGStore) SetInstalledHash(ctx context.Context, sessionKey, hash string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sandbox_install_state (session_key, bundle_hash, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_key) DO UPDATE SET bundle_hash = $2, updated_at = now()
	`, sessionKey, hash)
	if err != nil {
		return fmt.Errorf("persist install state for %s: %w", sessionKey, err)
	}
	return nil
}

func (s *PGStore) Close() {
	s.log.Info().Msg("closing install-state database pool")
	s.pool.Close()
}
