package presence

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPresence 基于 Redis 的房间在线索引
// 网关据此把连接路由到房间；进程内会话存储仍是唯一的权威数据。
type RedisPresence struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisPresence 创建在线索引
func NewRedisPresence(client redis.Cmdable, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisPresence{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "RedisPresence"),
	}
}

// Enter 登记连接进入房间
func (p *RedisPresence) Enter(ctx context.Context, roomKey string, connID string) error {
	membersKey := BuildRoomMembersKey(roomKey)

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, membersKey, connID)
		pipe.Expire(ctx, membersKey, p.ttl)
		pipe.Set(ctx, BuildConnRoomKey(connID), roomKey, p.ttl)
		return nil
	})
	if err != nil {
		return err
	}

	p.logger.Debug("Presence entered", "roomKey", roomKey, "connId", connID)
	return nil
}

// Exit 移除连接；房间已关闭时删除整个集合
func (p *RedisPresence) Exit(ctx context.Context, roomKey string, connID string, roomClosed bool) error {
	membersKey := BuildRoomMembersKey(roomKey)

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if roomClosed {
			pipe.Del(ctx, membersKey)
		} else {
			pipe.SRem(ctx, membersKey, connID)
		}
		pipe.Del(ctx, BuildConnRoomKey(connID))
		return nil
	})
	if err != nil {
		return err
	}

	p.logger.Debug("Presence exited", "roomKey", roomKey, "connId", connID, "roomClosed", roomClosed)
	return nil
}
