package task

import (
	"context"
	"time"
)

// TaskFunc 到期回调
type TaskFunc func(ctx context.Context) error

// Task 时间轮中的一个回合定时任务
type Task struct {
	ID      string      `json:"id"`
	RoomKey string      `json:"roomKey"`
	Kind    TriggerKind `json:"kind,omitempty"`
	Delay   int         `json:"delay"`   // 延迟 tick 数（>= 1）
	Circle  int         `json:"circle"`  // 剩余圈数，为 0 时到期
	FiresAt time.Time   `json:"firesAt"` // 截止时间，零值表示只按 Delay 计
	Fn      TaskFunc    `json:"-"`
	ArmedAt time.Time   `json:"armedAt"`
}

// NewTask 创建任务
func NewTask(id, roomKey string, delay int, fn TaskFunc) *Task {
	return &Task{
		ID:      id,
		RoomKey: roomKey,
		Delay:   delay,
		Fn:      fn,
		ArmedAt: time.Now(),
	}
}

// WithKind 标记触发类型
func (t *Task) WithKind(kind TriggerKind) *Task {
	t.Kind = kind
	return t
}

// WithDeadline 按截止时间触发，Delay 由时间轮换算
func (t *Task) WithDeadline(firesAt time.Time) *Task {
	t.FiresAt = firesAt
	return t
}

// Execute 执行任务
func (t *Task) Execute(ctx context.Context) error {
	if t.Fn == nil {
		return nil
	}
	return t.Fn(ctx)
}
