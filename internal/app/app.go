// Package app wires the billing service from configuration; both binaries boot through it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/Spok95/studio-billing/internal/billing"
	"github.com/Spok95/studio-billing/internal/config"
	"github.com/Spok95/studio-billing/internal/infra/db"
	"github.com/Spok95/studio-billing/internal/infra/lock"
	"github.com/Spok95/studio-billing/internal/notify"
	"github.com/Spok95/studio-billing/internal/notify/rabbitmq"
	"github.com/Spok95/studio-billing/internal/notify/telegram"
	"github.com/Spok95/studio-billing/migrations"
)

type App struct {
	Config   config.Config
	Log      *slog.Logger
	Pool     *pgxpool.Pool
	Billing  *billing.Service
	Locker   lock.Locker
	Telegram *telegram.Notifier // nil when no token is configured

	closers []func()
}

// RunMigrations applies the embedded goose migrations over lib/pq.
func RunMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer func(sqlDB *sql.DB) { _ = sqlDB.Close() }(sqlDB)

	goose.SetBaseFS(migrations.FS)
	return goose.Up(sqlDB, ".")
}

// New connects every configured backend. Optional ones (Redis, RabbitMQ,
// Telegram) are skipped with a log line when not configured or not reachable.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, pool.Close)
	log.Info("db connected")

	notifiers := notify.Multi{notify.NewLog(log)}

	if cfg.RabbitMQ.URL != "" {
		producer, err := rabbitmq.NewProducer(cfg.RabbitMQ.URL, log)
		if err != nil {
			log.Warn("rabbitmq unavailable, events will not be published", "err", err)
		} else {
			a.closers = append(a.closers, producer.Close)
			notifiers = append(notifiers, rabbitmq.NewNotifier(producer, cfg.RabbitMQ.Exchange))
			log.Info("rabbitmq connected", "exchange", cfg.RabbitMQ.Exchange)
		}
	}

	if cfg.Telegram.Token != "" && cfg.Telegram.AdminChatID != 0 {
		tg, err := telegram.Connect(cfg.Telegram.Token, log, cfg.Telegram.AdminChatID)
		if err != nil {
			log.Warn("telegram unavailable, admin chat will not be notified", "err", err)
		} else {
			a.Telegram = tg
			notifiers = append(notifiers, tg)
		}
	}

	a.Locker = lock.Nop{}
	if cfg.Redis.Addr != "" {
		client := lock.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, job lock disabled", "err", err)
			_ = client.Close()
		} else {
			a.Locker = lock.NewRedisLock(client, owner())
			a.closers = append(a.closers, func() { _ = client.Close() })
		}
	}

	svc, err := billing.New(db.NewStore(pool), log, billing.Options{
		Studio:   cfg.Studio,
		Billing:  cfg.Billing,
		Location: loc,
		Notifier: notifiers,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Billing = svc
	return a, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func owner() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
