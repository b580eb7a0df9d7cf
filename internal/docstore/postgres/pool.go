package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Gunvolt24/resto_sync/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PoolConfig — размер пула и время жизни соединений; нули берут значения по умолчанию.
type PoolConfig struct {
	DSN          string
	MaxConns     int32
	ConnLifetime time.Duration
	ConnIdleTime time.Duration
}

// NewPool — пул pgx с проверкой соединения: недоступная база видна сразу на старте,
// а не на первом запросе.
func NewPool(ctx context.Context, pc PoolConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(pc.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	applyPoolConfig(cfg, pc)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

func applyPoolConfig(cfg *pgxpool.Config, pc PoolConfig) {
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	cfg.MaxConnLifetime = time.Hour
	if pc.ConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.ConnLifetime
	}
	cfg.MaxConnIdleTime = 30 * time.Minute
	if pc.ConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.ConnIdleTime
	}
}

// Migrate — вшитые миграции goose; возвращает число применённых за этот вызов.
func Migrate(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return 0, fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("goose up: %w", err)
	}
	return len(results), nil
}
