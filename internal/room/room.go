package room

import (
	"cmp"
	"slices"
	"sync"

	"sudooom.draw/internal/model"
)

// RoomInstance 房间实例对象
// 在内存中管理单个房间的成员、游戏状态与本轮计分，使用独立的 Mutex 保证并发安全。
// 所有带 Locked 后缀的方法要求调用方已持有 mu。
//
// 成员与计分板都保留插入顺序：
// 房主移交选择最早加入的成员，排行榜同分时按计分板写入顺序排列。
type RoomInstance struct {
	mu sync.Mutex

	key         string
	members     map[string]*model.Participant // 连接ID -> 成员
	memberOrder []string                      // 成员加入顺序
	game        model.GameState
	scores      map[string]int // 连接ID -> 本轮得分
	scoreOrder  []string       // 计分板写入顺序
	closed      bool           // 房间已销毁（最后一名成员离开）
}

// newRoomInstance 创建房间实例
func newRoomInstance(key string) *RoomInstance {
	return &RoomInstance{
		key:         key,
		members:     make(map[string]*model.Participant),
		memberOrder: make([]string, 0),
		game:        model.NewGameState(),
		scores:      make(map[string]int),
		scoreOrder:  make([]string, 0),
	}
}

// putMemberLocked 插入或覆盖成员，覆盖时保留原有顺序
func (r *RoomInstance) putMemberLocked(p *model.Participant) {
	if _, exists := r.members[p.ConnectionID]; !exists {
		r.memberOrder = append(r.memberOrder, p.ConnectionID)
	}
	r.members[p.ConnectionID] = p
}

// deleteMemberLocked 删除成员
func (r *RoomInstance) deleteMemberLocked(connID string) {
	delete(r.members, connID)
	if i := slices.Index(r.memberOrder, connID); i >= 0 {
		r.memberOrder = slices.Delete(r.memberOrder, i, i+1)
	}
}

// setScoreLocked 写入本轮得分
func (r *RoomInstance) setScoreLocked(connID string, score int) {
	if _, exists := r.scores[connID]; !exists {
		r.scoreOrder = append(r.scoreOrder, connID)
	}
	r.scores[connID] = score
}

// deleteScoreLocked 删除本轮得分
func (r *RoomInstance) deleteScoreLocked(connID string) {
	if _, exists := r.scores[connID]; !exists {
		return
	}
	delete(r.scores, connID)
	if i := slices.Index(r.scoreOrder, connID); i >= 0 {
		r.scoreOrder = slices.Delete(r.scoreOrder, i, i+1)
	}
}

// clearScoresLocked 清空计分板
func (r *RoomInstance) clearScoresLocked() {
	r.scores = make(map[string]int)
	r.scoreOrder = make([]string, 0)
}

// resetGameLocked 重置游戏状态，作画顺序按当前成员加入顺序重建
func (r *RoomInstance) resetGameLocked() {
	r.game = model.NewGameState()
	r.game.TurnOrder = append(r.game.TurnOrder, r.memberOrder...)
}

// setPhaseLocked 切换阶段，进入选词阶段时清空计分板
func (r *RoomInstance) setPhaseLocked(phase model.Phase) {
	r.game.Phase = phase
	if phase == model.PhaseWordSelection {
		r.clearScoresLocked()
	}
}

// ensureSingleAdminLocked 保证非空房间恰好有一名房主
// keep 非空时保留该成员的房主身份，其余成员降级
func (r *RoomInstance) ensureSingleAdminLocked(keep string) {
	admin := ""
	if p, ok := r.members[keep]; ok && p.IsAdmin {
		admin = keep
	}
	for _, connID := range r.memberOrder {
		p := r.members[connID]
		if !p.IsAdmin {
			continue
		}
		if admin == "" {
			admin = connID
			continue
		}
		if connID != admin {
			p.IsAdmin = false
		}
	}
	if admin == "" && len(r.memberOrder) > 0 {
		r.members[r.memberOrder[0]].IsAdmin = true
	}
}

// removeLocked 移除成员并维护作画顺序与房主
// 返回被移除的成员，以及房间是否已无成员
func (r *RoomInstance) removeLocked(connID string) (*model.Participant, bool) {
	p, ok := r.members[connID]
	if !ok {
		return nil, len(r.members) == 0
	}

	r.deleteMemberLocked(connID)
	r.deleteScoreLocked(connID)

	if pos := slices.Index(r.game.TurnOrder, connID); pos >= 0 {
		r.game.TurnOrder = slices.Delete(slices.Clone(r.game.TurnOrder), pos, pos+1)
		n := max(1, len(r.game.TurnOrder))
		// 当前作画者离开时下标取模；其他成员离开导致下标越界时同样取模
		if pos == r.game.CurrentTurn || r.game.CurrentTurn >= n {
			r.game.CurrentTurn %= n
		}
	}

	if p.IsAdmin && len(r.memberOrder) > 0 {
		r.members[r.memberOrder[0]].IsAdmin = true
	}

	return p, len(r.members) == 0
}

// playerAtLocked 获取作画顺序中指定下标的成员
func (r *RoomInstance) playerAtLocked(index int) (*model.Participant, bool) {
	if index < 0 || index >= len(r.game.TurnOrder) {
		return nil, false
	}
	p, ok := r.members[r.game.TurnOrder[index]]
	return p, ok
}

// nextPlayerLocked 推进到下一位作画者并返回
func (r *RoomInstance) nextPlayerLocked() (*model.Participant, bool) {
	n := len(r.game.TurnOrder)
	if n == 0 {
		return nil, false
	}
	r.game.CurrentTurn = (r.game.CurrentTurn + 1) % n
	return r.playerAtLocked(r.game.CurrentTurn)
}

// membersLocked 成员列表拷贝，byScore 为 true 时按累计得分降序（同分保持加入顺序）
func (r *RoomInstance) membersLocked(byScore bool) []model.Participant {
	out := make([]model.Participant, 0, len(r.memberOrder))
	for _, connID := range r.memberOrder {
		out = append(out, *r.members[connID])
	}
	if byScore {
		slices.SortStableFunc(out, func(a, b model.Participant) int {
			return cmp.Compare(b.Score, a.Score)
		})
	}
	return out
}

// leaderboardLocked 本轮排行榜，按得分降序（同分保持计分板写入顺序）
func (r *RoomInstance) leaderboardLocked() []model.LeaderboardEntry {
	out := make([]model.LeaderboardEntry, 0, len(r.scoreOrder))
	for _, connID := range r.scoreOrder {
		entry := model.LeaderboardEntry{Name: "Unknown", Score: r.scores[connID]}
		if p, ok := r.members[connID]; ok {
			entry.ID = p.ID
			entry.Emoji = p.Emoji
			if p.Name != "" {
				entry.Name = p.Name
			}
		}
		out = append(out, entry)
	}
	slices.SortStableFunc(out, func(a, b model.LeaderboardEntry) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// snapshotLocked 深拷贝房间快照
func (r *RoomInstance) snapshotLocked() *model.RoomSnapshot {
	snapshot := &model.RoomSnapshot{
		Key:        r.key,
		Members:    make(map[string]model.Participant, len(r.members)),
		Game:       r.game.Clone(),
		Scoreboard: make(map[string]int, len(r.scores)),
	}
	for connID, p := range r.members {
		snapshot.Members[connID] = *p
	}
	for connID, score := range r.scores {
		snapshot.Scoreboard[connID] = score
	}
	return snapshot
}
