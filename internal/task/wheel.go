package task

import (
	"sync"
	"time"
)

const (
	// SlotCount 时间轮槽位数量
	SlotCount = 60
)

// TimeWheel 时间轮
// 每个槽位代表一次 tick，超过一圈的任务通过 Circle 记录剩余圈数。
type TimeWheel struct {
	slots       [SlotCount]*Slot // 槽位
	currentSlot int              // 当前槽位索引
	slotMu      sync.RWMutex     // 当前槽位索引锁
	index       map[string]int   // taskID -> 槽位
	indexMu     sync.Mutex
	interval    time.Duration
	ticker      *time.Ticker
	now         func() time.Time
}

// NewTimeWheel 创建时间轮，interval 为每个槽位的时长
func NewTimeWheel(interval time.Duration) *TimeWheel {
	if interval <= 0 {
		interval = time.Second
	}
	tw := &TimeWheel{
		currentSlot: 0,
		index:       make(map[string]int),
		interval:    interval,
		ticker:      time.NewTicker(interval),
		now:         time.Now,
	}

	for i := 0; i < SlotCount; i++ {
		tw.slots[i] = NewSlot()
	}

	return tw
}

// TicksUntil 把时长换算为 tick 数，向上取整，至少为 1
func (tw *TimeWheel) TicksUntil(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	ticks := int((d + tw.interval - 1) / tw.interval)
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

// AddTask 添加任务到时间轮
// 设置了 FiresAt 的任务按截止时间计算 Delay，覆盖调用方给出的值。
func (tw *TimeWheel) AddTask(task *Task) error {
	if !task.FiresAt.IsZero() {
		task.Delay = tw.TicksUntil(task.FiresAt.Sub(tw.now()))
	}
	if task.Delay < 1 {
		task.Delay = 1
	}

	// 持有读锁直到任务入槽，避免与 Tick 交错导致任务多等一圈
	tw.slotMu.RLock()
	defer tw.slotMu.RUnlock()

	tw.placeLocked(task, task.Delay)
	return nil
}

// placeLocked 把任务放到 currentSlot 之后第 ticks 个槽位，调用方需持有 slotMu
func (tw *TimeWheel) placeLocked(task *Task, ticks int) {
	targetSlot := (tw.currentSlot + ticks) % SlotCount
	task.Circle = (ticks - 1) / SlotCount

	tw.indexMu.Lock()
	if prev, ok := tw.index[task.ID]; ok {
		tw.slots[prev].RemoveTask(task.ID)
	}
	tw.index[task.ID] = targetSlot
	tw.indexMu.Unlock()

	tw.slots[targetSlot].AddTask(task)
}

// RemoveTask 从时间轮删除任务
func (tw *TimeWheel) RemoveTask(taskID string) bool {
	tw.indexMu.Lock()
	slot, ok := tw.index[taskID]
	if ok {
		delete(tw.index, taskID)
	}
	tw.indexMu.Unlock()

	if !ok {
		return false
	}
	return tw.slots[slot].RemoveTask(taskID)
}

// Tick 推进时间轮 (由调度器调用)，返回到期任务
// tick 相位与登记时刻不对齐，槽位到期但未到 FiresAt 的任务重新入槽，不会提前执行。
func (tw *TimeWheel) Tick() []*Task {
	tw.slotMu.Lock()
	defer tw.slotMu.Unlock()

	tw.currentSlot = (tw.currentSlot + 1) % SlotCount
	expired := tw.slots[tw.currentSlot].Expire()
	if len(expired) == 0 {
		return nil
	}

	now := tw.now()
	var due []*Task
	for _, task := range expired {
		if !task.FiresAt.IsZero() && now.Before(task.FiresAt) {
			// 已被 RemoveTask 摘除的任务不再入槽
			tw.indexMu.Lock()
			_, tracked := tw.index[task.ID]
			tw.indexMu.Unlock()
			if tracked {
				tw.placeLocked(task, tw.TicksUntil(task.FiresAt.Sub(now)))
			}
			continue
		}
		due = append(due, task)
	}

	tw.indexMu.Lock()
	for _, task := range due {
		delete(tw.index, task.ID)
	}
	tw.indexMu.Unlock()

	return due
}

// GetCurrentSlot 获取当前槽位索引
func (tw *TimeWheel) GetCurrentSlot() int {
	tw.slotMu.RLock()
	defer tw.slotMu.RUnlock()

	return tw.currentSlot
}

// Stop 停止时间轮
func (tw *TimeWheel) Stop() {
	tw.ticker.Stop()
}

// GetTicker 获取定时器
func (tw *TimeWheel) GetTicker() *time.Ticker {
	return tw.ticker
}

// GetTotalTaskCount 获取所有槽位的任务总数
func (tw *TimeWheel) GetTotalTaskCount() int {
	total := 0
	for i := 0; i < SlotCount; i++ {
		total += tw.slots[i].Count()
	}
	return total
}
