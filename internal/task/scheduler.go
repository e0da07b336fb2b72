package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrSchedulerNotRunning = errors.New("SCHEDULER_NOT_RUNNING")
	ErrStaleTrigger        = errors.New("STALE_TRIGGER")
)

// Scheduler 任务调度器
// 时钟协程每个 tick 推进时间轮，把到期任务交给工作协程池执行。
type Scheduler struct {
	wheel      *TimeWheel
	workerPool *WorkerPool
	stopCh     chan struct{}
	wg         sync.WaitGroup
	logger     *slog.Logger
	running    bool
	runningMu  sync.RWMutex
}

// NewScheduler 创建任务调度器
func NewScheduler(workerCount int, tickInterval time.Duration) *Scheduler {
	return &Scheduler{
		wheel:      NewTimeWheel(tickInterval),
		workerPool: NewWorkerPool(workerCount),
		stopCh:     make(chan struct{}),
		logger:     slog.Default().With("component", "Scheduler"),
	}
}

// Start 启动调度器
func (s *Scheduler) Start() error {
	s.runningMu.Lock()
	if s.running {
		s.runningMu.Unlock()
		return fmt.Errorf("调度器已经在运行中")
	}
	s.running = true
	s.runningMu.Unlock()

	s.workerPool.Start()

	s.wg.Add(1)
	go s.tickLoop()

	s.logger.Info("任务调度器已启动")
	return nil
}

// tickLoop 时钟循环协程
func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := s.wheel.GetTicker()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.onTick()
		}
	}
}

// onTick 推进时间轮并提交到期任务
func (s *Scheduler) onTick() {
	tasks := s.wheel.Tick()
	if len(tasks) == 0 {
		return
	}

	s.logger.Debug("时钟触发",
		"currentSlot", s.wheel.GetCurrentSlot(),
		"taskCount", len(tasks))

	s.workerPool.SubmitBatch(tasks)
}

// Stop 停止调度器，未到期的任务被丢弃
func (s *Scheduler) Stop() {
	s.runningMu.Lock()
	if !s.running {
		s.runningMu.Unlock()
		return
	}
	s.running = false
	s.runningMu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.wheel.Stop()
	s.workerPool.Stop()

	s.logger.Info("任务调度器已停止")
}

// AddTask 添加任务
func (s *Scheduler) AddTask(task *Task) error {
	s.runningMu.RLock()
	defer s.runningMu.RUnlock()

	if !s.running {
		return ErrSchedulerNotRunning
	}
	if task == nil {
		return fmt.Errorf("任务不能为空")
	}
	if task.ID == "" {
		return fmt.Errorf("任务ID不能为空")
	}

	if err := s.wheel.AddTask(task); err != nil {
		return err
	}

	s.logger.Debug("添加任务",
		"taskId", task.ID,
		"roomKey", task.RoomKey,
		"kind", task.Kind,
		"delay", task.Delay)
	return nil
}

// RemoveTask 删除任务
func (s *Scheduler) RemoveTask(taskID string) error {
	if taskID == "" {
		return fmt.Errorf("任务ID不能为空")
	}
	if !s.wheel.RemoveTask(taskID) {
		return fmt.Errorf("任务不存在: %s", taskID)
	}
	return nil
}

// IsRunning 检查调度器是否运行中
func (s *Scheduler) IsRunning() bool {
	s.runningMu.RLock()
	defer s.runningMu.RUnlock()

	return s.running
}

// GetStats 获取调度器统计信息
func (s *Scheduler) GetStats() map[string]any {
	return map[string]any{
		"running":        s.IsRunning(),
		"currentSlot":    s.wheel.GetCurrentSlot(),
		"totalTaskCount": s.wheel.GetTotalTaskCount(),
		"workerCount":    s.workerPool.workerCount,
		"tickInterval":   s.wheel.interval.String(),
	}
}
