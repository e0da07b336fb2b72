package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/nats-io/nats.go"

	"sudooom.draw/pkg/proto"
)

// EventHandler 上行事件处理接口
type EventHandler interface {
	Handle(ctx context.Context, evt *proto.UpstreamEvent)
}

// SubscriberConfig Worker 配置
type SubscriberConfig struct {
	WorkerCount int // Worker 数量，同一房间的事件总是落在同一个 Worker
	BufferSize  int // 每个 Worker 的缓冲区大小

	// RoomResolver 由连接反查房间，用于没有房间信息的断开事件
	RoomResolver func(connID string) (string, bool)
}

// EventSubscriber 上行事件订阅器
// 按房间哈希分片到固定 Worker，保证同一房间内事件按到达顺序处理
type EventSubscriber struct {
	nc           *nats.Conn
	handler      EventHandler
	logger       *slog.Logger
	subscription *nats.Subscription
	config       SubscriberConfig
	mu           sync.RWMutex
	shards       []chan *proto.UpstreamEvent
	wg           sync.WaitGroup
	cancelFunc   context.CancelFunc
}

// NewEventSubscriber 创建上行事件订阅器
func NewEventSubscriber(nc *nats.Conn, handler EventHandler, config SubscriberConfig) *EventSubscriber {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 16
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1024
	}

	return &EventSubscriber{
		nc:      nc,
		handler: handler,
		logger:  slog.Default().With("component", "EventSubscriber"),
		config:  config,
	}
}

// Start 启动订阅
func (s *EventSubscriber) Start(ctx context.Context) error {
	workerCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	s.startWorkers(workerCtx)

	// 队列组实现多实例负载均衡
	sub, err := s.nc.QueueSubscribe(proto.SubjectLogicUpstream, proto.QueueGroupLogic, func(msg *nats.Msg) {
		s.dispatch(msg.Data)
	})
	if err != nil {
		cancel()
		s.stopWorkers()
		return err
	}

	s.subscription = sub
	s.logger.Info("NATS subscriber started",
		"subject", proto.SubjectLogicUpstream,
		"workerCount", s.config.WorkerCount,
		"bufferSize", s.config.BufferSize,
	)
	return nil
}

func (s *EventSubscriber) startWorkers(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shards = make([]chan *proto.UpstreamEvent, s.config.WorkerCount)
	for i := range s.shards {
		s.shards[i] = make(chan *proto.UpstreamEvent, s.config.BufferSize)
		s.wg.Add(1)
		go s.worker(ctx, s.shards[i])
	}
}

// dispatch 解码并投递到房间所属分片
func (s *EventSubscriber) dispatch(data []byte) {
	var evt proto.UpstreamEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		s.logger.Error("Failed to unmarshal event", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.shards) == 0 {
		return
	}

	shard := s.shards[shardFor(s.shardKey(&evt), len(s.shards))]
	select {
	case shard <- &evt:
	default:
		s.logger.Warn("Shard buffer full, dropping event", "event", evt.Event, "roomKey", evt.RoomKey, "bufferSize", s.config.BufferSize)
	}
}

// worker 工作协程
func (s *EventSubscriber) worker(ctx context.Context, events <-chan *proto.UpstreamEvent) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			s.handler.Handle(ctx, evt)
		}
	}
}

// shardKey 断开事件没有房间信息时先反查房间，查不到再按连接分片
func (s *EventSubscriber) shardKey(evt *proto.UpstreamEvent) string {
	if evt.RoomKey != "" {
		return evt.RoomKey
	}
	if s.config.RoomResolver != nil {
		if roomKey, ok := s.config.RoomResolver(evt.ConnID); ok {
			return roomKey
		}
	}
	return evt.ConnID
}

// shardFor 计算分片下标
func shardFor(key string, n int) int {
	return int(xxhash.Sum64String(key) % uint64(n))
}

// Stop 停止订阅
func (s *EventSubscriber) Stop() error {
	if s.subscription != nil {
		if err := s.subscription.Unsubscribe(); err != nil {
			s.logger.Error("Failed to unsubscribe", "error", err)
		}
	}

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.stopWorkers()

	s.logger.Info("NATS subscriber stopped")
	return nil
}

func (s *EventSubscriber) stopWorkers() {
	s.mu.Lock()
	for _, shard := range s.shards {
		close(shard)
	}
	s.shards = nil
	s.mu.Unlock()

	s.wg.Wait()
}

// GetBufferUsage 获取缓冲区使用情况（用于监控）
func (s *EventSubscriber) GetBufferUsage() (current int, capacity int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, shard := range s.shards {
		current += len(shard)
		capacity += cap(shard)
	}
	return current, capacity
}
