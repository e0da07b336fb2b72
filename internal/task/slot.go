package task

import "sync"

// Slot 时间轮槽位
type Slot struct {
	mu    sync.Mutex       // 槽内互斥锁
	tasks map[string]*Task // 任务映射 (key: taskID)
}

// NewSlot 创建新槽位
func NewSlot() *Slot {
	return &Slot{
		tasks: make(map[string]*Task),
	}
}

// AddTask 添加任务到槽位
func (s *Slot) AddTask(task *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.ID] = task
}

// RemoveTask 从槽位删除任务
func (s *Slot) RemoveTask(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[taskID]; exists {
		delete(s.tasks, taskID)
		return true
	}
	return false
}

// Expire 取出到期任务（Circle 为 0），其余任务圈数减一后留在槽位
func (s *Slot) Expire() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tasks) == 0 {
		return nil
	}

	var due []*Task
	for id, task := range s.tasks {
		if task.Circle > 0 {
			task.Circle--
			continue
		}
		due = append(due, task)
		delete(s.tasks, id)
	}
	return due
}

// Count 获取槽位任务数量
func (s *Slot) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.tasks)
}
