package health

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	statusConnected     = "connected"
	statusDisconnected  = "disconnected"
	statusNotConfigured = "not configured"
)

// Status 健康状态
type Status struct {
	Service  string `json:"service"`
	NATS     string `json:"nats"`
	Redis    string `json:"redis"`
	Database string `json:"database"`
	Rooms    int    `json:"rooms"`

	Scheduler map[string]any `json:"scheduler,omitempty"`
}

// Healthy NATS 已连接且已配置的依赖都可用
func (s *Status) Healthy() bool {
	return s.NATS == statusConnected &&
		s.Redis != statusDisconnected &&
		s.Database != statusDisconnected
}

// ConnChecker NATS 连接状态
type ConnChecker interface {
	IsConnected() bool
}

// RoomCounter 房间计数器接口
type RoomCounter interface {
	Count() int
}

// StatsProvider 回合调度器统计
type StatsProvider interface {
	GetStats() map[string]any
}

// Checker 健康检查器
type Checker struct {
	nc          ConnChecker
	redisClient *redis.Client
	db          *pgxpool.Pool
	rooms       RoomCounter
	scheduler   StatsProvider
}

// Option 健康检查器选项
type Option func(*Checker)

// WithScheduler 在健康状态中附带调度器统计
func WithScheduler(p StatsProvider) Option {
	return func(h *Checker) {
		h.scheduler = p
	}
}

// NewChecker 创建健康检查器，redisClient 与 db 可以为 nil（未启用）
func NewChecker(nc ConnChecker, redisClient *redis.Client, db *pgxpool.Pool, rooms RoomCounter, opts ...Option) *Checker {
	h := &Checker{
		nc:          nc,
		redisClient: redisClient,
		db:          db,
		rooms:       rooms,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Check 执行健康检查
func (h *Checker) Check(ctx context.Context) *Status {
	status := &Status{
		Service:  "draw-logic",
		NATS:     statusDisconnected,
		Redis:    statusNotConfigured,
		Database: statusNotConfigured,
	}

	// 检查 NATS
	if h.nc != nil && h.nc.IsConnected() {
		status.NATS = statusConnected
	}

	// 检查 Redis
	if h.redisClient != nil {
		redisCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		status.Redis = statusDisconnected
		if err := h.redisClient.Ping(redisCtx).Err(); err == nil {
			status.Redis = statusConnected
		}
	}

	// 检查数据库
	if h.db != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		status.Database = statusDisconnected
		if err := h.db.Ping(dbCtx); err == nil {
			status.Database = statusConnected
		}
	}

	if h.rooms != nil {
		status.Rooms = h.rooms.Count()
	}
	if h.scheduler != nil {
		status.Scheduler = h.scheduler.GetStats()
	}

	return status
}

// IsHealthy 检查是否健康
func (h *Checker) IsHealthy(ctx context.Context) bool {
	return h.Check(ctx).Healthy()
}
