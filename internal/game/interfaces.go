package game

import (
	"context"
	"time"

	"sudooom.draw/internal/model"
	"sudooom.draw/internal/task"
)

// Broadcaster 房间事件广播
type Broadcaster interface {
	// BroadcastToRoom 发送给房间内所有订阅者
	BroadcastToRoom(ctx context.Context, roomKey string, event string, data any) error
	// BroadcastToOthers 发送给房间内除 exceptConnID 外的订阅者
	BroadcastToOthers(ctx context.Context, roomKey string, exceptConnID string, event string, data any) error
}

// TriggerArmer 回合定时触发
type TriggerArmer interface {
	Arm(roomKey string, kind task.TriggerKind, firesAt time.Time, fn func(ctx context.Context) error) (task.Trigger, error)
	Disarm(roomKey string)
}

// Presence 房间成员在线索引（供网关路由）
type Presence interface {
	Enter(ctx context.Context, roomKey string, connID string) error
	Exit(ctx context.Context, roomKey string, connID string, roomClosed bool) error
}

// ResultRecorder 对局结果归档
type ResultRecorder interface {
	RecordResults(ctx context.Context, roomKey string, finishedAt time.Time, standings []model.Participant) error
}

type noopPresence struct{}

func (noopPresence) Enter(context.Context, string, string) error      { return nil }
func (noopPresence) Exit(context.Context, string, string, bool) error { return nil }

type noopRecorder struct{}

func (noopRecorder) RecordResults(context.Context, string, time.Time, []model.Participant) error {
	return nil
}
