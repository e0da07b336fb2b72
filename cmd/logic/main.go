package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"sudooom.draw/internal/config"
	"sudooom.draw/internal/game"
	"sudooom.draw/internal/handler"
	"sudooom.draw/internal/health"
	drawNats "sudooom.draw/internal/nats"
	"sudooom.draw/internal/presence"
	"sudooom.draw/internal/repository"
	"sudooom.draw/internal/room"
	"sudooom.draw/internal/router"
	"sudooom.draw/internal/task"
)

func main() {
	configPath := flag.String("config", os.Getenv("DRAW_CONFIG"), "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.App.LogLevel),
	}))
	slog.SetDefault(logger)

	// 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接 NATS
	natsClient, err := drawNats.NewClient(cfg.NATS, cfg.App.Name)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	var gameOpts []game.Option
	var redisClient *redis.Client
	var db *pgxpool.Pool
	var results handler.ResultQuery

	// 连接 Redis（在线索引）
	if cfg.Redis.Enabled {
		redisClient = connectRedis(cfg.Redis)
		defer redisClient.Close()
		gameOpts = append(gameOpts, game.WithPresence(presence.NewRedisPresence(redisClient, cfg.Redis.PresenceTTL)))
		logger.Info("Connected to Redis", "addr", cfg.Redis.Addr())
	}

	// 连接数据库（结果归档）
	if cfg.Database.Enabled {
		db, err = connectDatabase(ctx, cfg.Database)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		resultRepo := repository.NewResultRepository(db)
		if err := resultRepo.EnsureSchema(ctx); err != nil {
			logger.Error("Failed to ensure schema", "error", err)
			os.Exit(1)
		}
		gameOpts = append(gameOpts, game.WithResultRecorder(resultRepo))
		results = resultRepo
		logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)
	}

	// 启动回合调度器
	scheduler := task.NewScheduler(cfg.Game.SchedulerWorkers, cfg.Game.TickInterval)
	if err := scheduler.Start(); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	triggers := task.NewTriggerScheduler(scheduler)

	// 初始化服务
	rooms := room.NewRoomManager()
	publisher := drawNats.NewEventPublisher(natsClient.Conn())
	gameOpts = append(gameOpts, game.WithRevealGrace(cfg.Game.RevealGrace))
	gameService := game.NewGameService(rooms, publisher, triggers, gameOpts...)

	// 启动订阅者
	eventHandler := handler.NewEventHandler(gameService)
	subscriber := drawNats.NewEventSubscriber(natsClient.Conn(), eventHandler, drawNats.SubscriberConfig{
		WorkerCount:  cfg.NATS.WorkerCount,
		BufferSize:   cfg.NATS.BufferSize,
		RoomResolver: rooms.RoomKeyByConnection,
	})
	if err := subscriber.Start(ctx); err != nil {
		logger.Error("Failed to start subscriber", "error", err)
		os.Exit(1)
	}

	// 启动 HTTP 服务
	healthChecker := health.NewChecker(natsClient, redisClient, db, rooms, health.WithScheduler(scheduler))
	engine := router.SetupRouter(cfg.HTTP, handler.NewRoomHandler(rooms, results), healthChecker)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: engine,
	}
	go func() {
		logger.Info("HTTP server started", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	logger.Info("Logic service started", "name", cfg.App.Name)

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	subscriber.Stop()
	scheduler.Stop()
	cancel()
	if err := natsClient.Drain(); err != nil {
		logger.Warn("Failed to drain NATS", "error", err)
	}
	logger.Info("Logic service stopped", "pendingTriggers", triggers.Pending(), "rooms", rooms.Count())
}

// parseLevel 解析日志级别，无法识别时使用 info
func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// connectRedis 连接 Redis
func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// connectDatabase 连接 PostgreSQL
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	return pgxpool.NewWithConfig(ctx, poolConfig)
}
