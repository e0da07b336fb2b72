package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TriggerKind 回合定时触发类型
type TriggerKind string

const (
	TriggerRevealLeaderboard TriggerKind = "reveal-leaderboard"
	TriggerAdvanceTurn       TriggerKind = "advance-turn"
)

// Trigger 已登记的触发记录
type Trigger struct {
	RoomKey string
	Kind    TriggerKind
	FiresAt time.Time
	TaskID  string
}

type triggerKey struct {
	roomKey string
	kind    TriggerKind
}

// TriggerScheduler 按 (房间, 类型) 管理定时触发
// 同一 key 重复登记时新触发覆盖旧触发：旧任务从时间轮移除，
// 即使旧任务已被取出执行，也会因 ID 不再是当前值而被丢弃。
// 触发执行或被覆盖后记录即删除。
type TriggerScheduler struct {
	scheduler *Scheduler
	mu        sync.Mutex
	triggers  map[triggerKey]Trigger
	logger    *slog.Logger
}

// NewTriggerScheduler 创建触发调度器
func NewTriggerScheduler(scheduler *Scheduler) *TriggerScheduler {
	return &TriggerScheduler{
		scheduler: scheduler,
		triggers:  make(map[triggerKey]Trigger),
		logger:    slog.Default().With("component", "TriggerScheduler"),
	}
}

// Arm 登记触发，在 firesAt 执行 fn
func (ts *TriggerScheduler) Arm(roomKey string, kind TriggerKind, firesAt time.Time, fn func(ctx context.Context) error) (Trigger, error) {
	key := triggerKey{roomKey: roomKey, kind: kind}
	trigger := Trigger{
		RoomKey: roomKey,
		Kind:    kind,
		FiresAt: firesAt,
		TaskID:  uuid.NewString(),
	}

	task := NewTask(trigger.TaskID, roomKey, 1, func(ctx context.Context) error {
		if !ts.claim(key, trigger.TaskID) {
			return ErrStaleTrigger
		}
		return fn(ctx)
	}).WithKind(kind).WithDeadline(firesAt)

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if prev, ok := ts.triggers[key]; ok {
		_ = ts.scheduler.RemoveTask(prev.TaskID)
		ts.logger.Debug("Trigger superseded", "roomKey", roomKey, "kind", kind, "taskId", prev.TaskID)
	}
	if err := ts.scheduler.AddTask(task); err != nil {
		delete(ts.triggers, key)
		return Trigger{}, err
	}
	ts.triggers[key] = trigger

	ts.logger.Debug("Trigger armed", "roomKey", roomKey, "kind", kind, "firesAt", firesAt, "delay", task.Delay)
	return trigger, nil
}

// claim 执行前确认任务仍是当前触发，并删除记录
func (ts *TriggerScheduler) claim(key triggerKey, taskID string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	cur, ok := ts.triggers[key]
	if !ok || cur.TaskID != taskID {
		return false
	}
	delete(ts.triggers, key)
	return true
}

// Disarm 移除房间的全部触发
func (ts *TriggerScheduler) Disarm(roomKey string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for key, trigger := range ts.triggers {
		if key.roomKey != roomKey {
			continue
		}
		_ = ts.scheduler.RemoveTask(trigger.TaskID)
		delete(ts.triggers, key)
	}
}

// Lookup 查询当前登记的触发
func (ts *TriggerScheduler) Lookup(roomKey string, kind TriggerKind) (Trigger, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	trigger, ok := ts.triggers[triggerKey{roomKey: roomKey, kind: kind}]
	return trigger, ok
}

// Pending 当前登记的触发数量
func (ts *TriggerScheduler) Pending() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	return len(ts.triggers)
}
