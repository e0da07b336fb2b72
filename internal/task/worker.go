package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// WorkerPool 工作协程池，执行到期任务
type WorkerPool struct {
	workerCount int
	taskChan    chan *Task
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	logger      *slog.Logger
}

// NewWorkerPool 创建工作协程池
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 4
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workerCount: workerCount,
		taskChan:    make(chan *Task, workerCount*2),
		ctx:         ctx,
		cancel:      cancel,
		logger:      slog.Default().With("component", "WorkerPool"),
	}
}

// Start 启动工作协程池
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.logger.Info("工作协程池已启动", "workerCount", wp.workerCount)
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return

		case task := <-wp.taskChan:
			if task == nil {
				continue
			}
			wp.executeTask(id, task)
		}
	}
}

// executeTask 执行任务，panic 会被恢复
func (wp *WorkerPool) executeTask(workerID int, task *Task) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("任务执行 panic",
				"workerId", workerID,
				"taskId", task.ID,
				"roomKey", task.RoomKey,
				"kind", task.Kind,
				"panic", r)
		}
	}()

	err := task.Execute(wp.ctx)
	switch {
	case err == nil:
		wp.logger.Debug("任务执行成功", "workerId", workerID, "taskId", task.ID, "roomKey", task.RoomKey)
	case errors.Is(err, ErrStaleTrigger):
		wp.logger.Debug("任务已失效", "taskId", task.ID, "roomKey", task.RoomKey)
	default:
		wp.logger.Error("任务执行失败",
			"workerId", workerID,
			"taskId", task.ID,
			"roomKey", task.RoomKey,
			"kind", task.Kind,
			"error", err)
	}
}

// Submit 提交任务，通道已满时阻塞等待
func (wp *WorkerPool) Submit(task *Task) {
	select {
	case wp.taskChan <- task:
	case <-wp.ctx.Done():
		wp.logger.Warn("工作池已关闭,任务提交失败", "taskId", task.ID)
	default:
		wp.logger.Warn("任务通道已满,任务可能延迟执行", "taskId", task.ID)
		select {
		case wp.taskChan <- task:
		case <-wp.ctx.Done():
		}
	}
}

// SubmitBatch 批量提交任务
func (wp *WorkerPool) SubmitBatch(tasks []*Task) {
	for _, task := range tasks {
		wp.Submit(task)
	}
}

// Stop 停止工作协程池
func (wp *WorkerPool) Stop() {
	wp.cancel()
	wp.wg.Wait()
	wp.logger.Info("工作协程池已停止")
}
