// Package main - точка входа фонового воркера Bilim ERP Core.
//
// Воркер отвечает за периодические задачи учебного центра:
// - Вечерний обход посещаемости и автоархивация прогульщиков
// - Ежемесячное начисление KPI-бонусов и штрафов сотрудникам
// - Снятие истёкших заморозок со счетов
// - Сверка балансов с суммой проводок журнала
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bilim-hub/bilim-erp-core/config"
	"github.com/bilim-hub/bilim-erp-core/internal/application/engine"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/ledger"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
	"github.com/bilim-hub/bilim-erp-core/internal/infrastructure/messaging"
	"github.com/bilim-hub/bilim-erp-core/internal/infrastructure/persistence/postgres"
	"github.com/bilim-hub/bilim-erp-core/internal/infrastructure/persistence/redis"
	"github.com/bilim-hub/bilim-erp-core/internal/infrastructure/scheduler"
	"github.com/bilim-hub/bilim-erp-core/internal/infrastructure/scheduler/jobs"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting Bilim ERP worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	conn, err := connectPostgres(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		conn.Close()
	}()

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		log.Info("checking database migrations...")
		migrator := postgres.NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching and sweep locks disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log

	var publisher shared.EventPublisher
	var closeBus func() error

	if redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Cache:          redisCache,
			LocalBusConfig: busConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start redis event bus: %w", err)
		}
		publisher = redisBus
		closeBus = redisBus.Close
	} else {
		localBus := messaging.NewInMemoryEventBus(busConfig)
		publisher = localBus
		closeBus = localBus.Close
	}
	defer func() {
		log.Info("closing event bus...")
		_ = closeBus()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. РЕПОЗИТОРИИ И ДВИЖКИ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories and engines...")

	accountRepo := postgres.NewAccountRepository(conn)
	membershipRepo := postgres.NewMembershipRepository(conn)
	attendanceRepo := postgres.NewAttendanceRepository(conn)
	txRepo := postgres.NewTransactionRepository(conn)
	kpiRepo := postgres.NewKpiRepository(conn)

	ledgerStore := postgres.NewLedgerStore(conn)
	lifecycleStore := postgres.NewLifecycleStore(conn)

	var balanceCache engine.BalanceCache
	if redisCache != nil {
		balanceCache = redis.NewBalanceCache(redisCache)
	}

	registry := ledger.DefaultRegistry()
	ledgerEngine := engine.NewLedgerEngine(ledgerStore, registry, txRepo, publisher, balanceCache, log)
	lifecycleManager := engine.NewLifecycleManager(lifecycleStore, publisher, log)
	streakMonitor := engine.NewStreakMonitor(membershipRepo, attendanceRepo, accountRepo, lifecycleManager, log)
	kpiEngine, err := engine.NewKpiEngine(accountRepo, kpiRepo, ledgerEngine, publisher, log)
	if err != nil {
		return fmt.Errorf("failed to initialize kpi engine: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	if cfg.Scheduler.Enabled {
		sweepLock := func(name string) jobs.Locker {
			if redisCache == nil {
				return nil
			}
			return redis.NewSweepLock(redisCache, name, cfg.Scheduler.JobTimeout)
		}

		streakJob := jobs.NewEvaluateStreaksJob(streakMonitor, sweepLock("evaluate_streaks"), log, cfg.Scheduler.JobTimeout)
		kpiJob := jobs.NewApplyKpiJob(kpiEngine, cfg.Kpi.RulesetID, sweepLock("apply_kpi"), log, cfg.Scheduler.JobTimeout)
		unfreezeJob := jobs.NewUnfreezeAccountsJob(accountRepo, sweepLock("unfreeze_accounts"), log, cfg.Scheduler.JobTimeout)
		verifyJob := jobs.NewVerifyBalancesJob(ledgerEngine, accountRepo, sweepLock("verify_balances"), log, cfg.Scheduler.JobTimeout)

		registrations := []struct {
			job      scheduler.Job
			schedule scheduler.Schedule
		}{
			{job: streakJob, schedule: mustCron(cfg.Scheduler.StreakSweepCron)},
			{job: kpiJob, schedule: mustCron(cfg.Scheduler.KpiCron)},
			{job: unfreezeJob, schedule: mustCron(cfg.Scheduler.UnfreezeCron)},
			{job: verifyJob, schedule: scheduler.NewIntervalSchedule(cfg.Scheduler.VerifyBalancesInterval)},
		}

		for _, r := range registrations {
			if err := sched.Register(r.job, r.schedule); err != nil {
				return fmt.Errorf("failed to register job %s: %w", r.job.Name(), err)
			}
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
				log.Error("scheduler stop failed", "error", err)
			}
		}()
	} else {
		log.Warn("scheduler is disabled, worker will only serve manual runs")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Bilim ERP worker is running", "timezone", cfg.App.Timezone)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// connectPostgres подключается по DATABASE_URL или по отдельным настройкам.
func connectPostgres(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	if cfg.Database.URL != "" {
		return postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.Host = cfg.Database.Host
	pgCfg.Port = cfg.Database.Port
	pgCfg.User = cfg.Database.User
	pgCfg.Password = cfg.Database.Password
	pgCfg.Database = cfg.Database.Name
	pgCfg.SSLMode = cfg.Database.SSLMode
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	return postgres.NewConnection(ctx, pgCfg)
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Observability.LogLevel),
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Observability.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// mustCron парсит cron-выражение из конфигурации; выражения валидируются
// при старте, битое расписание - ошибка деплоя, а не тихий пропуск задач.
func mustCron(expr string) scheduler.Schedule {
	return scheduler.MustParseCron(expr)
}
