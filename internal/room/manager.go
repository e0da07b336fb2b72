package room

import (
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"sudooom.draw/internal/model"
)

// 猜中得分上限，每经过一秒递减 1
const maxGuessScore = 100

// RoomManager 房间管理器（会话存储）
// 持有全部房间以及连接到房间的索引，是成员与游戏进度的唯一数据来源。
// 同一房间的操作由 RoomInstance 的互斥锁串行化，不同房间之间没有共享锁。
//
// 房间不存在等情况按可恢复处理：记录日志并返回哨兵错误，不做任何修改。
//
// 使用示例：
//
//	manager := NewRoomManager()
//	manager.Join(participant, connID)
//	player, ok := manager.GetNextPlayer(roomKey)
type RoomManager struct {
	rooms     sync.Map // roomKey -> *RoomInstance
	connRooms sync.Map // connID -> roomKey

	now    func() time.Time
	logger *slog.Logger
}

// Option RoomManager 配置项
type Option func(*RoomManager)

// WithClock 指定时钟（用于计分）
func WithClock(now func() time.Time) Option {
	return func(m *RoomManager) {
		m.now = now
	}
}

// NewRoomManager 创建房间管理器
func NewRoomManager(opts ...Option) *RoomManager {
	m := &RoomManager{
		now:    time.Now,
		logger: slog.Default().With("component", "RoomManager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LeaveResult 离开房间结果
type LeaveResult struct {
	RoomKey     string
	Participant model.Participant
	RoomClosed  bool // 房间因无人而销毁
}

// TurnOutcome 回合推进结果
type TurnOutcome struct {
	Finished   bool               // 所有轮次结束，回到大厅
	NextPlayer *model.Participant // 下一位作画者（Finished 时为 nil）
	Game       model.GameState
	Members    []model.Participant // Finished 时按累计得分排序
}

// lock 获取并锁定房间，房间不存在或已销毁时返回 false
func (m *RoomManager) lock(roomKey string) (*RoomInstance, bool) {
	val, ok := m.rooms.Load(roomKey)
	if !ok {
		return nil, false
	}
	r := val.(*RoomInstance)
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, false
	}
	return r, true
}

// lockOrCreate 获取或创建房间并锁定
// 若取到的实例正在销毁，移除后重试
func (m *RoomManager) lockOrCreate(roomKey string) *RoomInstance {
	for {
		val, ok := m.rooms.Load(roomKey)
		if !ok {
			val, _ = m.rooms.LoadOrStore(roomKey, newRoomInstance(roomKey))
		}
		r := val.(*RoomInstance)
		r.mu.Lock()
		if !r.closed {
			return r
		}
		r.mu.Unlock()
		m.rooms.CompareAndDelete(roomKey, r)
	}
}

// Join 加入房间
// 连接已在其他房间时先完整离开原房间，离开结果通过 prev 返回（moved 为 true），
// 调用方据此清理原房间的在线索引与定时触发。房主加入会重置整局游戏状态。
func (m *RoomManager) Join(p model.Participant, connID string) (prev LeaveResult, moved bool) {
	roomKey := p.RoomKey
	if cur, ok := m.connRooms.Load(connID); ok && cur.(string) != roomKey {
		result, err := m.Leave(connID)
		if err != nil {
			m.logger.Warn("Failed to leave previous room", "connId", connID, "roomKey", cur, "error", err)
		} else {
			prev, moved = result, true
		}
	}

	r := m.lockOrCreate(roomKey)
	defer r.mu.Unlock()

	p.ConnectionID = connID
	r.putMemberLocked(&p)
	r.setScoreLocked(connID, 0)

	if p.IsAdmin {
		r.resetGameLocked()
	}
	if !slices.Contains(r.game.TurnOrder, connID) {
		r.game.TurnOrder = append(r.game.TurnOrder, connID)
	}
	r.ensureSingleAdminLocked(connID)

	m.connRooms.Store(connID, roomKey)

	m.logger.Info("Participant joined room", "roomKey", roomKey, "connId", connID, "admin", p.IsAdmin)
	return prev, moved
}

// Leave 离开房间
// 当前作画者离开时下标取模保持有效；房主离开时移交给最早加入的成员；
// 最后一名成员离开时销毁房间。无论房间是否存在都会清除连接索引。
func (m *RoomManager) Leave(connID string) (LeaveResult, error) {
	val, ok := m.connRooms.Load(connID)
	if !ok {
		return LeaveResult{}, ErrNotInRoom
	}
	roomKey := val.(string)

	r, ok := m.lock(roomKey)
	if !ok {
		m.connRooms.CompareAndDelete(connID, roomKey)
		m.logger.Warn("Room not found on leave", "roomKey", roomKey, "connId", connID)
		return LeaveResult{RoomKey: roomKey}, ErrRoomNotFound
	}
	defer r.mu.Unlock()

	// 持有房间锁时清除连接索引，避免与同一房间的 Join 交错丢失索引
	m.connRooms.CompareAndDelete(connID, roomKey)

	p, empty := r.removeLocked(connID)
	if p == nil {
		return LeaveResult{RoomKey: roomKey}, ErrNotInRoom
	}

	result := LeaveResult{RoomKey: roomKey, Participant: *p}
	if empty {
		r.closed = true
		m.rooms.CompareAndDelete(roomKey, r)
		result.RoomClosed = true
		m.logger.Info("Removed room", "roomKey", roomKey)
	}

	m.logger.Info("Participant left room", "roomKey", roomKey, "connId", connID)
	return result, nil
}

// UpdateConfiguration 更新游戏配置
func (m *RoomManager) UpdateConfiguration(roomKey string, cfg model.Configuration) error {
	r, ok := m.lock(roomKey)
	if !ok {
		m.logger.Warn("Room not found", "op", "UpdateConfiguration", "roomKey", roomKey)
		return ErrRoomNotFound
	}
	defer r.mu.Unlock()

	r.game.DrawTime = cfg.DrawTime
	r.game.Hints = cfg.Hints
	r.game.Rounds = cfg.Rounds
	r.game.WordCount = cfg.WordCount
	r.game.WordMode = cfg.WordMode
	return nil
}

// SetPhase 切换游戏阶段，进入选词阶段时清空本轮计分板
func (m *RoomManager) SetPhase(roomKey string, phase model.Phase) error {
	r, ok := m.lock(roomKey)
	if !ok {
		m.logger.Warn("Room not found", "op", "SetPhase", "roomKey", roomKey)
		return ErrRoomNotFound
	}
	defer r.mu.Unlock()

	r.setPhaseLocked(phase)
	return nil
}

// SetCurrentRound 设置当前轮数
func (m *RoomManager) SetCurrentRound(roomKey string, round int) error {
	r, ok := m.lock(roomKey)
	if !ok {
		m.logger.Warn("Room not found", "op", "SetCurrentRound", "roomKey", roomKey)
		return ErrRoomNotFound
	}
	defer r.mu.Unlock()

	r.game.CurrentRound = round
	return nil
}

// SetWord 设置本轮词语
func (m *RoomManager) SetWord(roomKey string, word string) error {
	r, ok := m.lock(roomKey)
	if !ok {
		m.logger.Warn("Room not found", "op", "SetWord", "roomKey", roomKey)
		return ErrRoomNotFound
	}
	defer r.mu.Unlock()

	r.game.Word = word
	return nil
}

// SetStartTime 设置本阶段开始时间
func (m *RoomManager) SetStartTime(roomKey string, startedAt time.Time) error {
	r, ok := m.lock(roomKey)
	if !ok {
		m.logger.Warn("Room not found", "op", "SetStartTime", "roomKey", roomKey)
		return ErrRoomNotFound
	}
	defer r.mu.Unlock()

	r.game.StartTime = startedAt.UnixMilli()
	return nil
}

// RecordGuessScore 记录猜中得分
// 得分 = max(0, 100 - 已用秒数)，同时累加到成员总分。同一成员重复猜中不做拦截。
// roomHint 为客户端声明的房间，仅用于日志比对，以连接索引为准。
func (m *RoomManager) RecordGuessScore(connID string, roomHint string) (int, error) {
	val, ok := m.connRooms.Load(connID)
	if !ok {
		m.logger.Warn("Connection not in any room", "op", "RecordGuessScore", "connId", connID, "roomHint", roomHint)
		return 0, ErrNotInRoom
	}
	roomKey := val.(string)
	if roomHint != "" && roomHint != roomKey {
		m.logger.Debug("Room hint mismatch", "connId", connID, "roomKey", roomKey, "roomHint", roomHint)
	}

	r, ok := m.lock(roomKey)
	if !ok {
		m.logger.Warn("Room not found", "op", "RecordGuessScore", "roomKey", roomKey)
		return 0, ErrRoomNotFound
	}
	defer r.mu.Unlock()

	p, ok := r.members[connID]
	if !ok {
		return 0, ErrNotInRoom
	}

	elapsed := math.Max(0, float64(m.now().UnixMilli()-r.game.StartTime)/1000)
	score := max(0, maxGuessScore-int(math.Min(math.Floor(elapsed), maxGuessScore)))

	r.setScoreLocked(connID, score)
	p.Score += score
	return score, nil
}

// AdjustDrawerScore 点赞/点踩当前作画者，得分 ±1
// 作画者按 TurnOrder[CurrentTurn] 确定，不信任客户端传入的作画者
func (m *RoomManager) AdjustDrawerScore(roomKey string, liked bool) error {
	r, ok := m.lock(roomKey)
	if !ok {
		m.logger.Warn("Room not found", "op", "AdjustDrawerScore", "roomKey", roomKey)
		return ErrRoomNotFound
	}
	defer r.mu.Unlock()

	drawer, ok := r.playerAtLocked(r.game.CurrentTurn)
	if !ok {
		m.logger.Warn("Drawer not found", "roomKey", roomKey, "currentTurn", r.game.CurrentTurn)
		return ErrDrawerNotFound
	}

	delta := -1
	if liked {
		delta = 1
	}
	r.setScoreLocked(drawer.ConnectionID, r.scores[drawer.ConnectionID]+delta)
	drawer.Score += delta
	return nil
}

// BeginDrawing 进入作画阶段：设置阶段、词语与开始时间
func (m *RoomManager) BeginDrawing(roomKey string, word string, startedAt time.Time) (model.GameState, error) {
	r, ok := m.lock(roomKey)
	if !ok {
		m.logger.Warn("Room not found", "op", "BeginDrawing", "roomKey", roomKey)
		return model.GameState{}, ErrRoomNotFound
	}
	defer r.mu.Unlock()

	r.setPhaseLocked(model.PhaseLive)
	r.game.Word = word
	r.game.StartTime = startedAt.UnixMilli()
	return r.game.Clone(), nil
}

// RequestWordSelection 进入选词阶段并返回最新状态与成员
func (m *RoomManager) RequestWordSelection(roomKey string) (model.GameState, []model.Participant, error) {
	r, ok := m.lock(roomKey)
	if !ok {
		m.logger.Warn("Room not found", "op", "RequestWordSelection", "roomKey", roomKey)
		return model.GameState{}, nil, ErrRoomNotFound
	}
	defer r.mu.Unlock()

	r.setPhaseLocked(model.PhaseWordSelection)
	return r.game.Clone(), r.membersLocked(false), nil
}

// RevealLeaderboard 揭晓本轮排行榜
// armedStart 为定时任务登记时的开始时间，不一致说明已进入新的回合
func (m *RoomManager) RevealLeaderboard(roomKey string, armedStart int64) ([]model.LeaderboardEntry, error) {
	r, ok := m.lock(roomKey)
	if !ok {
		return nil, ErrRoomNotFound
	}
	defer r.mu.Unlock()

	if r.game.Phase != model.PhaseLive || r.game.StartTime != armedStart {
		return nil, ErrStaleTurn
	}
	return r.leaderboardLocked(), nil
}

// AdvanceTurn 作画结束后推进回合
// 最后一位作画者结束时：未到总轮数则轮数 +1 继续选词，否则回到大厅并将轮数归零。
// 其余情况直接进入下一位作画者的选词阶段。
func (m *RoomManager) AdvanceTurn(roomKey string, armedStart int64) (TurnOutcome, error) {
	r, ok := m.lock(roomKey)
	if !ok {
		return TurnOutcome{}, ErrRoomNotFound
	}
	defer r.mu.Unlock()

	if r.game.Phase != model.PhaseLive || r.game.StartTime != armedStart {
		return TurnOutcome{}, ErrStaleTurn
	}
	n := len(r.game.TurnOrder)
	if n == 0 {
		return TurnOutcome{}, ErrNoParticipants
	}

	if r.game.CurrentTurn == n-1 {
		if r.game.CurrentRound < r.game.Rounds {
			r.game.CurrentRound++
		} else {
			r.setPhaseLocked(model.PhaseLobby)
			r.game.CurrentRound = 0
			return TurnOutcome{
				Finished: true,
				Game:     r.game.Clone(),
				Members:  r.membersLocked(true),
			}, nil
		}
	}

	r.setPhaseLocked(model.PhaseWordSelection)
	outcome := TurnOutcome{}
	if next, ok := r.nextPlayerLocked(); ok {
		p := *next
		outcome.NextPlayer = &p
	}
	outcome.Game = r.game.Clone()
	outcome.Members = r.membersLocked(false)
	return outcome, nil
}

// GetGameState 获取游戏状态
func (m *RoomManager) GetGameState(roomKey string) (model.GameState, bool) {
	r, ok := m.lock(roomKey)
	if !ok {
		return model.GameState{}, false
	}
	defer r.mu.Unlock()
	return r.game.Clone(), true
}

// RoomKeyByConnection 获取连接所在房间
func (m *RoomManager) RoomKeyByConnection(connID string) (string, bool) {
	val, ok := m.connRooms.Load(connID)
	if !ok {
		return "", false
	}
	return val.(string), true
}

// GetParticipant 根据连接获取成员
func (m *RoomManager) GetParticipant(connID string) (model.Participant, bool) {
	roomKey, ok := m.RoomKeyByConnection(connID)
	if !ok {
		return model.Participant{}, false
	}
	r, ok := m.lock(roomKey)
	if !ok {
		return model.Participant{}, false
	}
	defer r.mu.Unlock()

	p, ok := r.members[connID]
	if !ok {
		return model.Participant{}, false
	}
	return *p, true
}

// GetRoomSnapshot 获取房间快照
func (m *RoomManager) GetRoomSnapshot(roomKey string) (*model.RoomSnapshot, bool) {
	r, ok := m.lock(roomKey)
	if !ok {
		return nil, false
	}
	defer r.mu.Unlock()
	return r.snapshotLocked(), true
}

// GetCurrentPlayer 获取当前作画者
func (m *RoomManager) GetCurrentPlayer(roomKey string) (model.Participant, bool) {
	r, ok := m.lock(roomKey)
	if !ok {
		return model.Participant{}, false
	}
	defer r.mu.Unlock()

	p, ok := r.playerAtLocked(r.game.CurrentTurn)
	if !ok {
		return model.Participant{}, false
	}
	return *p, true
}

// GetNextPlayer 推进到下一位作画者并返回
// 注意：会修改 CurrentTurn，每次推进回合只应调用一次
func (m *RoomManager) GetNextPlayer(roomKey string) (model.Participant, bool) {
	r, ok := m.lock(roomKey)
	if !ok {
		return model.Participant{}, false
	}
	defer r.mu.Unlock()

	p, ok := r.nextPlayerLocked()
	if !ok {
		return model.Participant{}, false
	}
	return *p, true
}

// GetLeaderboard 获取本轮排行榜
func (m *RoomManager) GetLeaderboard(roomKey string) []model.LeaderboardEntry {
	r, ok := m.lock(roomKey)
	if !ok {
		return []model.LeaderboardEntry{}
	}
	defer r.mu.Unlock()
	return r.leaderboardLocked()
}

// GetMembers 获取成员列表，byScore 为 true 时按累计得分降序
func (m *RoomManager) GetMembers(roomKey string, byScore bool) []model.Participant {
	r, ok := m.lock(roomKey)
	if !ok {
		return []model.Participant{}
	}
	defer r.mu.Unlock()
	return r.membersLocked(byScore)
}

// Count 返回当前房间数
func (m *RoomManager) Count() int {
	count := 0
	m.rooms.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}
