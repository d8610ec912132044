// Package testutils поднимает Postgres и Redis в контейнерах для интеграционных тестов.
//
// Схема БД создаётся теми же встроенными миграциями, что и в проде.
// Контейнеры останавливаются автоматически через t.Cleanup.
package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/SergeiKhy/shortify/internal/config"
	"github.com/SergeiKhy/shortify/internal/migrations"
	"github.com/SergeiKhy/shortify/internal/repository"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

const (
	postgresImage = "postgres:16-alpine"
	redisImage    = "redis:7-alpine"
)

// TestEnvironment подключения к тестовым контейнерам
type TestEnvironment struct {
	DB          *repository.PostgresDB
	Redis       *repository.RedisDB
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig

	pgContainer    tc.Container
	redisContainer tc.Container
}

// SetupTestEnvironment запускает оба контейнера и применяет миграции.
// Тест пропускается в коротком режиме (go test -short).
func SetupTestEnvironment(t testing.TB) *TestEnvironment {
	t.Helper()

	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := &TestEnvironment{}
	t.Cleanup(env.Cleanup)

	env.setupPostgres(t)
	env.setupRedis(t)

	return env
}

func (env *TestEnvironment) setupPostgres(t testing.TB) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		postgresImage,
		tcpostgres.WithDatabase("shortify"),
		tcpostgres.WithUsername("user"),
		tcpostgres.WithPassword("password"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	env.pgContainer = pgContainer

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get postgres host: %v", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get postgres port: %v", err)
	}

	env.DBConfig = config.DBConfig{
		Host:     host,
		Port:     port.Port(),
		User:     "user",
		Password: "password",
		Name:     "shortify",
		SSLMode:  "disable",
		MaxConns: 20,
	}

	migrator, err := migrations.New(env.DBConfig.DSN(), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create migrator: %v", err)
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	env.DB, err = repository.NewPostgresDB(env.DBConfig)
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
}

func (env *TestEnvironment) setupRedis(t testing.TB) {
	t.Helper()
	ctx := context.Background()

	redisContainer, err := tcredis.Run(ctx, redisImage)
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	env.redisContainer = redisContainer

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get redis host: %v", err)
	}
	port, err := redisContainer.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("failed to get redis port: %v", err)
	}

	env.RedisConfig = config.RedisConfig{
		Host:     host,
		Port:     port.Port(),
		CacheTTL: time.Minute,
	}

	env.Redis, err = repository.NewRedisClient(env.RedisConfig)
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
}

// Reset очищает таблицы и кэш между тестами
func (env *TestEnvironment) Reset(t testing.TB) {
	t.Helper()
	ctx := context.Background()

	if _, err := env.DB.Pool.Exec(ctx, `TRUNCATE TABLE clicks, links RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
	if err := env.Redis.Client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
}

// Cleanup закрывает подключения и останавливает контейнеры
func (env *TestEnvironment) Cleanup() {
	ctx := context.Background()

	if env.Redis != nil {
		_ = env.Redis.Close()
	}
	if env.DB != nil {
		env.DB.Close()
	}
	if env.redisContainer != nil {
		_ = env.redisContainer.Terminate(ctx)
	}
	if env.pgContainer != nil {
		_ = env.pgContainer.Terminate(ctx)
	}
}
