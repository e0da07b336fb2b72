package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const testTick = 10 * time.Millisecond

// TestNewTask 测试创建任务
func TestNewTask(t *testing.T) {
	fn := func(ctx context.Context) error {
		return nil
	}

	task := NewTask("task-1", "room-1", 5, fn).WithKind(TriggerAdvanceTurn)

	if task.ID != "task-1" {
		t.Errorf("期望 ID = task-1, 实际 = %s", task.ID)
	}
	if task.RoomKey != "room-1" {
		t.Errorf("期望 RoomKey = room-1, 实际 = %s", task.RoomKey)
	}
	if task.Delay != 5 {
		t.Errorf("期望 Delay = 5, 实际 = %d", task.Delay)
	}
	if task.Kind != TriggerAdvanceTurn {
		t.Errorf("期望 Kind = advance-turn, 实际 = %v", task.Kind)
	}
}

// TestSlotAddAndRemove 测试槽位添加和删除
func TestSlotAddAndRemove(t *testing.T) {
	slot := NewSlot()

	slot.AddTask(NewTask("task-1", "room-1", 5, nil))
	slot.AddTask(NewTask("task-2", "room-2", 5, nil))

	if slot.Count() != 2 {
		t.Errorf("期望任务数 = 2, 实际 = %d", slot.Count())
	}

	if !slot.RemoveTask("task-1") {
		t.Error("期望删除成功")
	}
	if slot.Count() != 1 {
		t.Errorf("期望任务数 = 1, 实际 = %d", slot.Count())
	}

	if slot.RemoveTask("task-not-exist") {
		t.Error("期望删除失败")
	}
}

// TestSlotExpire 测试到期任务取出，未到期任务圈数减一
func TestSlotExpire(t *testing.T) {
	slot := NewSlot()

	due := NewTask("task-due", "room-1", 5, nil)
	later := NewTask("task-later", "room-2", 65, nil)
	later.Circle = 1

	slot.AddTask(due)
	slot.AddTask(later)

	tasks := slot.Expire()
	if len(tasks) != 1 || tasks[0].ID != "task-due" {
		t.Fatalf("期望只取出 task-due, 实际 = %v", tasks)
	}
	if later.Circle != 0 {
		t.Errorf("期望 Circle = 0, 实际 = %d", later.Circle)
	}
	if slot.Count() != 1 {
		t.Errorf("期望剩余任务数 = 1, 实际 = %d", slot.Count())
	}

	tasks = slot.Expire()
	if len(tasks) != 1 || tasks[0].ID != "task-later" {
		t.Fatalf("期望取出 task-later, 实际 = %v", tasks)
	}

	if tasks = slot.Expire(); tasks != nil {
		t.Errorf("期望 nil, 实际 = %v", tasks)
	}
}

// TestTimeWheelAddTask 测试时间轮添加任务
func TestTimeWheelAddTask(t *testing.T) {
	wheel := NewTimeWheel(time.Second)
	defer wheel.Stop()

	if err := wheel.AddTask(NewTask("task-1", "room-1", 5, nil)); err != nil {
		t.Errorf("添加任务失败: %v", err)
	}
	if wheel.GetTotalTaskCount() != 1 {
		t.Errorf("期望总任务数 = 1, 实际 = %d", wheel.GetTotalTaskCount())
	}

	// 同一 ID 重新添加会替换旧任务
	if err := wheel.AddTask(NewTask("task-1", "room-1", 7, nil)); err != nil {
		t.Errorf("添加任务失败: %v", err)
	}
	if wheel.GetTotalTaskCount() != 1 {
		t.Errorf("期望总任务数 = 1, 实际 = %d", wheel.GetTotalTaskCount())
	}
}

// TestTimeWheelTick 测试时间轮推进
func TestTimeWheelTick(t *testing.T) {
	wheel := NewTimeWheel(time.Second)
	defer wheel.Stop()

	wheel.AddTask(NewTask("task-1", "room-1", 1, nil))

	tasks := wheel.Tick()
	if len(tasks) != 1 {
		t.Fatalf("期望获取1个任务, 实际 = %d", len(tasks))
	}
	if tasks[0].ID != "task-1" {
		t.Errorf("期望任务ID = task-1, 实际 = %s", tasks[0].ID)
	}
	if wheel.RemoveTask("task-1") {
		t.Error("已到期的任务不应再能删除")
	}
}

// TestTimeWheelZeroDelay 延迟不足一秒按一秒处理
func TestTimeWheelZeroDelay(t *testing.T) {
	wheel := NewTimeWheel(time.Second)
	defer wheel.Stop()

	task := NewTask("task-0", "room-1", 0, nil)
	wheel.AddTask(task)

	if task.Delay != 1 {
		t.Errorf("期望 Delay = 1, 实际 = %d", task.Delay)
	}
	if tasks := wheel.Tick(); len(tasks) != 1 {
		t.Errorf("期望第一次推进取出任务, 实际 = %d", len(tasks))
	}
}

// TestTimeWheelMultiCircle 超过一圈的任务在正确的 tick 到期
func TestTimeWheelMultiCircle(t *testing.T) {
	wheel := NewTimeWheel(time.Second)
	defer wheel.Stop()

	wheel.AddTask(NewTask("task-75", "room-1", 75, nil))
	wheel.AddTask(NewTask("task-60", "room-2", 60, nil))

	fired := map[string]int{}
	for tick := 1; tick <= 130; tick++ {
		for _, task := range wheel.Tick() {
			fired[task.ID] = tick
		}
	}

	if fired["task-75"] != 75 {
		t.Errorf("期望 task-75 在第 75 次推进到期, 实际 = %d", fired["task-75"])
	}
	if fired["task-60"] != 60 {
		t.Errorf("期望 task-60 在第 60 次推进到期, 实际 = %d", fired["task-60"])
	}
	if wheel.GetTotalTaskCount() != 0 {
		t.Errorf("期望时间轮为空, 实际 = %d", wheel.GetTotalTaskCount())
	}
}

// TestTimeWheelRemoveTask 删除后不会到期
func TestTimeWheelRemoveTask(t *testing.T) {
	wheel := NewTimeWheel(time.Second)
	defer wheel.Stop()

	wheel.AddTask(NewTask("task-1", "room-1", 2, nil))
	if !wheel.RemoveTask("task-1") {
		t.Fatal("期望删除成功")
	}

	for i := 0; i < SlotCount; i++ {
		if tasks := wheel.Tick(); len(tasks) != 0 {
			t.Fatalf("期望无任务到期, 实际 = %v", tasks)
		}
	}
}

// TestSchedulerStartStop 测试调度器启动和停止
func TestSchedulerStartStop(t *testing.T) {
	scheduler := NewScheduler(5, testTick)

	if err := scheduler.Start(); err != nil {
		t.Fatalf("启动调度器失败: %v", err)
	}
	if !scheduler.IsRunning() {
		t.Error("期望调度器运行中")
	}

	// 重复启动应该失败
	if err := scheduler.Start(); err == nil {
		t.Error("期望重复启动失败")
	}

	scheduler.Stop()
	if scheduler.IsRunning() {
		t.Error("期望调度器已停止")
	}

	// 停止后不再接受任务
	if err := scheduler.AddTask(NewTask("task-1", "room-1", 1, nil)); err != ErrSchedulerNotRunning {
		t.Errorf("期望 ErrSchedulerNotRunning, 实际 = %v", err)
	}
}

// TestSchedulerAddRemoveTask 测试添加和删除任务
func TestSchedulerAddRemoveTask(t *testing.T) {
	scheduler := NewScheduler(5, time.Second)
	scheduler.Start()
	defer scheduler.Stop()

	fn := func(ctx context.Context) error {
		return nil
	}

	if err := scheduler.AddTask(NewTask("task-1", "room-1", 5, fn)); err != nil {
		t.Errorf("添加任务失败: %v", err)
	}
	if err := scheduler.AddTask(NewTask("", "room-1", 5, fn)); err == nil {
		t.Error("期望空 ID 添加失败")
	}

	stats := scheduler.GetStats()
	if stats["totalTaskCount"] != 1 {
		t.Errorf("期望 totalTaskCount = 1, 实际 = %v", stats["totalTaskCount"])
	}
	if stats["tickInterval"] != "1s" || stats["running"] != true {
		t.Errorf("统计信息不符: %v", stats)
	}

	if err := scheduler.RemoveTask("task-1"); err != nil {
		t.Errorf("删除任务失败: %v", err)
	}
	if err := scheduler.RemoveTask("task-not-exist"); err == nil {
		t.Error("期望删除失败")
	}
}

// TestSchedulerTaskExecution 测试任务执行
func TestSchedulerTaskExecution(t *testing.T) {
	scheduler := NewScheduler(5, testTick)
	scheduler.Start()
	defer scheduler.Stop()

	var executed atomic.Int32
	var mu sync.Mutex
	var results []string

	record := func(roomKey string) TaskFunc {
		return func(ctx context.Context) error {
			mu.Lock()
			results = append(results, roomKey)
			mu.Unlock()
			executed.Add(1)
			return nil
		}
	}

	for i := 1; i <= 5; i++ {
		roomKey := fmt.Sprintf("room-%d", i)
		scheduler.AddTask(NewTask(fmt.Sprintf("task-%d", i), roomKey, 1, record(roomKey)))
	}

	waitFor(t, func() bool { return executed.Load() == 5 })

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 5 {
		t.Errorf("期望5个结果, 实际 = %d", len(results))
	}
}

// TestSchedulerConcurrent 测试并发安全
func TestSchedulerConcurrent(t *testing.T) {
	scheduler := NewScheduler(10, testTick)
	scheduler.Start()
	defer scheduler.Stop()

	var executed atomic.Int32

	fn := func(ctx context.Context) error {
		executed.Add(1)
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			scheduler.AddTask(NewTask(fmt.Sprintf("task-%d", id), "room", 1+id%3, fn))
		}(i)
	}
	wg.Wait()

	waitFor(t, func() bool { return executed.Load() == 100 })
}

// TestWorkerPoolPanicRecover 测试 panic 恢复
func TestWorkerPoolPanicRecover(t *testing.T) {
	scheduler := NewScheduler(5, testTick)
	scheduler.Start()
	defer scheduler.Stop()

	var executed atomic.Int32

	panicFn := func(ctx context.Context) error {
		executed.Add(1)
		panic("测试 panic")
	}
	normalFn := func(ctx context.Context) error {
		executed.Add(1)
		return nil
	}

	scheduler.AddTask(NewTask("task-panic", "room-1", 1, panicFn))
	scheduler.AddTask(NewTask("task-normal", "room-2", 1, normalFn))

	// 两个任务都应该被执行 (panic 被恢复)
	waitFor(t, func() bool { return executed.Load() == 2 })
}

// waitFor 轮询等待条件成立
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(testTick)
	}
	t.Fatal("等待超时")
}

// BenchmarkSchedulerAddTask 性能测试: 添加任务
func BenchmarkSchedulerAddTask(b *testing.B) {
	scheduler := NewScheduler(10, time.Second)
	scheduler.Start()
	defer scheduler.Stop()

	fn := func(ctx context.Context) error {
		return nil
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		scheduler.AddTask(NewTask(fmt.Sprintf("task-%d", i), "room", 1+i%120, fn))
	}
}

// BenchmarkTimeWheelTick 性能测试: 时间轮推进
func BenchmarkTimeWheelTick(b *testing.B) {
	wheel := NewTimeWheel(time.Second)
	defer wheel.Stop()

	for i := 0; i < 100; i++ {
		wheel.AddTask(NewTask(fmt.Sprintf("task-%d", i), "room", 1+i, nil))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wheel.Tick()
	}
}
