//go:build integration

package testutil

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	pgstore "github.com/Gunvolt24/resto_sync/internal/docstore/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "postgres:16-alpine"
	redpandaImage = "docker.redpanda.com/redpandadata/redpanda:v23.3.8"
)

var tcLogger = log.New(os.Stdout, "[resto-tc] ", log.LstdFlags)

// lifecycleLog — строка в лог на создание, готовность и остановку контейнера.
func lifecycleLog() tc.CustomizeRequestOption {
	stage := func(name string) tc.ContainerHook {
		return func(_ context.Context, c tc.Container) error {
			id := c.GetContainerID()
			if len(id) > 12 {
				id = id[:12]
			}
			tcLogger.Printf("%s id=%s", name, id)
			return nil
		}
	}
	return tc.WithLifecycleHooks(tc.ContainerLifecycleHooks{
		PreCreates: []tc.ContainerRequestHook{func(_ context.Context, req tc.ContainerRequest) error {
			tcLogger.Printf("creating image=%s", req.Image)
			return nil
		}},
		PostReadies:   []tc.ContainerHook{stage("ready")},
		PreTerminates: []tc.ContainerHook{stage("terminating")},
	})
}

// PGContainer — Postgres для интеграционных тестов хранилища документов.
type PGContainer struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	DSN       string
	Applied   int // число применённых миграций (WithMigrations)
}

type pgOptions struct{ migrate bool }

type PGOption func(*pgOptions)

// WithMigrations — сразу накатить вшитые миграции goose.
func WithMigrations() PGOption { return func(o *pgOptions) { o.migrate = true } }

func StartPostgresTC(ctx context.Context, opts ...PGOption) (*PGContainer, func(context.Context) error, error) {
	var o pgOptions
	for _, opt := range opts {
		opt(&o)
	}

	pg, err := postgres.Run(ctx, postgresImage,
		lifecycleLog(),
		postgres.WithDatabase("resto"),
		postgres.WithUsername("resto"),
		postgres.WithPassword("resto"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("run postgres: %w", err)
	}
	fail := func(what string, err error) (*PGContainer, func(context.Context) error, error) {
		_ = pg.Terminate(context.Background())
		return nil, nil, fmt.Errorf("%s: %w", what, err)
	}

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fail("conn string", err)
	}
	// тот же путь, что у приложения: настройки пула и ping
	pool, err := pgstore.NewPool(ctx, pgstore.PoolConfig{DSN: dsn, MaxConns: 5})
	if err != nil {
		return fail("new pool", err)
	}

	env := &PGContainer{Container: pg, Pool: pool, DSN: dsn}
	if o.migrate {
		if env.Applied, err = pgstore.Migrate(ctx, pool); err != nil {
			pool.Close()
			return fail("migrate", err)
		}
	}

	stop := func(c context.Context) error {
		pool.Close()
		return pg.Terminate(c)
	}
	return env, stop, nil
}

// KafkaEnv — Redpanda как Kafka-совместимый брокер ленты изменений.
type KafkaEnv struct {
	Container *redpanda.Container
	Brokers   []string
	BaseTopic string
}

func StartKafkaTC(ctx context.Context, baseTopic string) (*KafkaEnv, func(context.Context) error, error) {
	rp, err := redpanda.Run(ctx, redpandaImage,
		lifecycleLog(),
		redpanda.WithAutoCreateTopics(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("run redpanda: %w", err)
	}

	seed, err := rp.KafkaSeedBroker(ctx)
	if err != nil {
		_ = tc.TerminateContainer(rp)
		return nil, nil, fmt.Errorf("seed broker: %w", err)
	}

	env := &KafkaEnv{Container: rp, Brokers: []string{seed}, BaseTopic: baseTopic}
	return env, func(context.Context) error { return tc.TerminateContainer(rp) }, nil
}
