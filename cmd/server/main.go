// Package main - точка входа HTTP API ядра геймификации и OBE-аттестации.
//
// Сервер принимает три операции:
// - начисление XP с бонусным множителем и пересчётом уровня
// - обработку ежедневного входа (серия, заморозки, вехи)
// - каскадный пересчёт достижения результатов обучения CLO → PLO → ILO
//
// Побочные эффекты (рейтинг, уведомления, XP за вехи) выполняются
// асинхронно через шину событий.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/obe-hub/gamification-core/config"
	"github.com/obe-hub/gamification-core/internal/application/command"
	"github.com/obe-hub/gamification-core/internal/application/eventhandler"
	"github.com/obe-hub/gamification-core/internal/application/query"
	"github.com/obe-hub/gamification-core/internal/domain/gamification"
	"github.com/obe-hub/gamification-core/internal/domain/notification"
	"github.com/obe-hub/gamification-core/internal/domain/outcome"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/internal/infrastructure/messaging"
	"github.com/obe-hub/gamification-core/internal/infrastructure/persistence/memory"
	"github.com/obe-hub/gamification-core/internal/infrastructure/persistence/postgres"
	"github.com/obe-hub/gamification-core/internal/infrastructure/persistence/projections"
	"github.com/obe-hub/gamification-core/internal/infrastructure/persistence/redis"
	"github.com/obe-hub/gamification-core/internal/infrastructure/scheduler"
	"github.com/obe-hub/gamification-core/internal/infrastructure/scheduler/jobs"
	"github.com/obe-hub/gamification-core/internal/infrastructure/service"
	httpserver "github.com/obe-hub/gamification-core/internal/interface/http"
	"github.com/obe-hub/gamification-core/internal/interface/http/handlers"
	"github.com/obe-hub/gamification-core/pkg/logger"
	"github.com/obe-hub/gamification-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// repositories собирает порты хранилища независимо от драйвера.
type repositories struct {
	ledger        gamification.LedgerRepository
	bonuses       gamification.BonusRepository
	states        gamification.StateRepository
	directory     gamification.StudentDirectory
	academic      outcome.AcademicRepository
	evidence      outcome.EvidenceRepository
	mappings      outcome.MappingRepository
	attainments   outcome.AttainmentRepository
	notifications notification.Repository
	totals        gamification.TotalsReader
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    cfg.Observability.LogFormat,
		AddCaller: !cfg.IsProduction(),
	})
	defer log.Sync()

	log.Info("starting gamification core",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("storage", cfg.Database.Driver),
	)

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ (PostgreSQL или in-memory)
	// ─────────────────────────────────────────────────────────────────────────
	var repos repositories

	switch cfg.Database.Driver {
	case config.StoragePostgres:
		log.Info("connecting to database...")
		conn, err := postgres.NewConnection(ctx, cfg.Database.URL, postgres.PoolOptions{
			MaxConns:          cfg.Database.MaxConns,
			MinConns:          cfg.Database.MinConns,
			MaxConnLifetime:   cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime:   cfg.Database.ConnMaxIdleTime,
			HealthCheckPeriod: postgres.DefaultPoolOptions().HealthCheckPeriod,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			conn.Close()
		}()
		log.Info("database connection established")

		if cfg.Database.AutoMigrate {
			applied, err := postgres.NewMigrator(conn).Migrate(ctx)
			if err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("database schema is up to date", logger.Int("applied", applied))
		}

		health.AddCheck("postgres", handlers.NewPingCheck(conn))

		states := postgres.NewStateRepository(conn)
		repos = repositories{
			ledger:        postgres.NewLedgerRepository(conn),
			bonuses:       postgres.NewBonusRepository(conn),
			states:        states,
			directory:     postgres.NewDirectoryRepository(conn),
			academic:      postgres.NewAcademicRepository(conn),
			evidence:      postgres.NewEvidenceRepository(conn),
			mappings:      postgres.NewMappingRepository(conn),
			attainments:   postgres.NewAttainmentRepository(conn),
			notifications: postgres.NewNotificationRepository(conn),
			totals:        states,
		}

	default:
		log.Warn("using in-memory storage, data is lost on restart")
		store := memory.New()
		repos = repositories{
			ledger:        store.Ledger(),
			bonuses:       store.Bonuses(),
			states:        store.States(),
			directory:     store.Directory(),
			academic:      store.Academic(),
			evidence:      store.Evidence(),
			mappings:      store.Mappings(),
			attainments:   store.Attainments(),
			notifications: store.Notifications(),
			totals:        store.States(),
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (опционально: рейтинг и кэш представлений)
	// ─────────────────────────────────────────────────────────────────────────
	mirror := projections.NewLeaderboardView()
	var leaderboard service.LeaderboardStore = mirror
	var stateCache query.StateViewCache
	var stateViews command.StateViewInvalidator

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...", logger.String("addr", cfg.Redis.Addr))
		redisCfg := redis.DefaultConfig()
		redisCfg.Addr = cfg.Redis.Addr
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		if cfg.Redis.PoolSize > 0 {
			redisCfg.PoolSize = cfg.Redis.PoolSize
		}
		if cfg.Redis.DialTimeout > 0 {
			redisCfg.DialTimeout = cfg.Redis.DialTimeout
		}
		if cfg.Redis.ReadTimeout > 0 {
			redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		}
		if cfg.Redis.WriteTimeout > 0 {
			redisCfg.WriteTimeout = cfg.Redis.WriteTimeout
		}

		cache, err := redis.NewCache(ctx, redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, using in-process leaderboard", logger.Err(err))
		} else {
			defer func() {
				log.Info("closing Redis connection...")
				_ = cache.Close()
			}()

			leaderboard = service.NewLeaderboardService(redis.NewLeaderboardCache(cache), mirror, nil, log)
			if cfg.Features.IsEnabled(config.FeatureCacheStateView, nil) {
				stateCache = cache
				stateViews = cache
			}
			health.AddCheck("redis", handlers.NewPingCheck(cache))
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.AsyncMode = true
	busCfg.WorkerPoolSize = cfg.Gamification.EventWorkers
	busCfg.HandlerTimeout = cfg.Gamification.EventHandlerTimeout
	busCfg.Logger = log
	bus := messaging.NewInMemoryEventBus(busCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. КОМАНДЫ И ЗАПРОСЫ
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.SystemClock{}
	sink := service.NewNotificationService(repos.notifications, log)

	awardXP := command.NewAwardXPHandler(repos.ledger, repos.bonuses, repos.states, bus, clock, log)
	processStreak := command.NewProcessStreakHandler(repos.states, bus, clock, log)
	rollUp := command.NewRollUpHandler(repos.academic, repos.evidence, repos.mappings, repos.attainments, sink, clock, log)
	rebuild := command.NewRebuildXPStateHandler(repos.ledger, repos.states, bus, clock, log)
	if stateViews != nil {
		processStreak.WithStateViewInvalidator(stateViews)
		rebuild.WithStateViewInvalidator(stateViews)
	}

	getState := query.NewGetGamificationStateHandler(repos.states, repos.ledger, leaderboard, stateCache, log)
	getAttainment := query.NewGetStudentAttainmentHandler(repos.attainments, log)
	getLeaderboard := query.NewGetLeaderboardHandler(leaderboard, repos.directory, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ПОДПИСКИ НА СОБЫТИЯ
	// ─────────────────────────────────────────────────────────────────────────
	if err := subscribe(bus, cfg, awardXP, repos.directory, sink, leaderboard, log); err != nil {
		return fmt.Errorf("failed to subscribe event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ФОНОВЫЕ ЗАДАЧИ (пересборка рейтинга)
	// ─────────────────────────────────────────────────────────────────────────
	rebuildJob := jobs.NewRebuildLeaderboardJob(repos.totals, leaderboard, jobs.DefaultRebuildLeaderboardConfig(), log)
	sched := scheduler.New(scheduler.Config{Logger: log})
	if err := sched.Register(rebuildJob, scheduler.Every(cfg.Gamification.LeaderboardRebuildInterval)); err != nil {
		return fmt.Errorf("failed to register jobs: %w", err)
	}
	if _, err := sched.RunNow(ctx, rebuildJob.Name()); err != nil {
		log.Warn("initial leaderboard seed failed", logger.Err(err))
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.EnableRebuild = cfg.Features.IsEnabled(config.FeatureAdminRebuild, nil)
	if cfg.IsDevelopment() {
		serverCfg.Mode = gin.DebugMode
	}

	server := httpserver.NewServer(serverCfg, httpserver.Dependencies{
		AwardXP:              awardXP,
		ProcessStreak:        processStreak,
		RollUp:               rollUp,
		RebuildXPState:       rebuild,
		GetGamificationState: getState,
		GetStudentAttainment: getAttainment,
		GetLeaderboard:       getLeaderboard,
		HealthChecker:        health,
		Logger:               log,
	})
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server stopped", logger.Err(err))
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := server.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("http shutdown: %w", err))
	}

	if err := sched.Stop(); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("scheduler stop: %w", err))
	}

	// Handlers still in flight may write to storage, so drain before the
	// deferred connection closes run.
	if err := stopBus(shutdownCtx, bus); err != nil {
		log.Warn("event bus did not stop cleanly", logger.Err(err))
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("event bus close: %w", err))
	}

	if shutdownErr != nil {
		return shutdownErr
	}
	log.Info("shutdown completed successfully")
	return nil
}

// stopBus closes the bus and waits for in-flight handlers until ctx ends.
// Handlers still running after the deadline are abandoned.
func stopBus(ctx context.Context, bus io.Closer) error {
	done := make(chan error, 1)
	go func() {
		done <- bus.Close()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("handlers still running: %w", ctx.Err())
	}
}

// subscribe wires side effects onto the bus according to feature flags.
func subscribe(
	bus *messaging.InMemoryEventBus,
	cfg *config.Config,
	awarder eventhandler.XPAwarder,
	directory gamification.StudentDirectory,
	sink notification.Sink,
	index eventhandler.LeaderboardIndex,
	log *logger.Logger,
) error {
	onXP := eventhandler.NewOnXPAwardedHandler(index, log)
	if err := bus.Subscribe(shared.EventXPAwarded, onXP.Handle); err != nil {
		return err
	}

	if cfg.Features.IsEnabled(config.FeatureNotifyLevelUp, nil) {
		onLevelUp := eventhandler.NewOnLevelUpHandler(sink, log)
		if err := bus.Subscribe(shared.EventLevelUp, onLevelUp.Handle); err != nil {
			return err
		}
	}

	milestoneCfg := eventhandler.DefaultStreakMilestoneConfig()
	milestoneCfg.NotifyAchiever = cfg.Features.IsEnabled(config.FeatureNotifyStreakSelf, nil)
	milestoneCfg.FanOutConcurrency = cfg.Gamification.FanOutConcurrency
	milestoneCfg.PeerFanOutEnabled = cfg.Features.EnabledFor(config.FeatureNotifyPeerMilestone)

	onMilestone := eventhandler.NewOnStreakMilestoneHandler(awarder, directory, sink, milestoneCfg, log)
	return bus.Subscribe(shared.EventStreakMilestoneReached, onMilestone.Handle)
}

// Compile-time checks for the adapters wired above.
var (
	_ query.StateViewCache          = (*redis.Cache)(nil)
	_ command.StateViewInvalidator  = (*redis.Cache)(nil)
	_ service.LeaderboardStore      = (*redis.LeaderboardCache)(nil)
	_ service.LeaderboardStore      = (*service.LeaderboardService)(nil)
	_ handlers.Pinger               = (*postgres.Connection)(nil)
	_ eventhandler.LeaderboardIndex = (*projections.LeaderboardView)(nil)
)
