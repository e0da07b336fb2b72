package game

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sudooom.draw/internal/model"
	"sudooom.draw/internal/room"
	"sudooom.draw/internal/task"
	"sudooom.draw/pkg/proto"
)

// DefaultRevealGrace 揭晓排行榜到下一位选词之间的间隔
const DefaultRevealGrace = 10 * time.Second

// GameService 游戏服务
// 把上行事件转换为会话存储的修改，再向房间广播派生视图；
// 选定词语后登记两个定时触发（揭晓排行榜、推进回合）。
// 广播总是在房间锁释放之后进行。
type GameService struct {
	rooms       *room.RoomManager
	broadcaster Broadcaster
	triggers    TriggerArmer
	presence    Presence
	recorder    ResultRecorder
	revealGrace time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// Option GameService 配置项
type Option func(*GameService)

// WithPresence 设置在线索引
func WithPresence(p Presence) Option {
	return func(s *GameService) {
		if p != nil {
			s.presence = p
		}
	}
}

// WithResultRecorder 设置结果归档
func WithResultRecorder(r ResultRecorder) Option {
	return func(s *GameService) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithRevealGrace 设置揭晓排行榜后的等待时间
func WithRevealGrace(d time.Duration) Option {
	return func(s *GameService) {
		if d > 0 {
			s.revealGrace = d
		}
	}
}

// WithClock 设置时钟
func WithClock(now func() time.Time) Option {
	return func(s *GameService) {
		s.now = now
	}
}

// NewGameService 创建游戏服务
func NewGameService(rooms *room.RoomManager, broadcaster Broadcaster, triggers TriggerArmer, opts ...Option) *GameService {
	s := &GameService{
		rooms:       rooms,
		broadcaster: broadcaster,
		triggers:    triggers,
		presence:    noopPresence{},
		recorder:    noopRecorder{},
		revealGrace: DefaultRevealGrace,
		now:         time.Now,
		logger:      slog.Default().With("component", "GameService"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join 加入房间并广播给房间所有人（包括加入者）
// 连接原本在其他房间时，原房间按离开处理：清理索引与触发，并通知原房间其他成员。
func (s *GameService) Join(ctx context.Context, connID string, p model.Participant) {
	if prev, moved := s.rooms.Join(p, connID); moved {
		s.afterLeave(ctx, connID, prev)
		if !prev.RoomClosed {
			s.toOthers(ctx, prev.RoomKey, connID, proto.EventLeft, s.roomUpdate(prev.RoomKey, prev.Participant))
		}
	}
	if err := s.presence.Enter(ctx, p.RoomKey, connID); err != nil {
		s.logger.Warn("Failed to register presence", "roomKey", p.RoomKey, "connId", connID, "error", err)
	}

	s.toRoom(ctx, p.RoomKey, proto.EventJoined, s.roomUpdate(p.RoomKey, p))
}

// Leave 主动离开房间并广播给其他成员
func (s *GameService) Leave(ctx context.Context, connID string, p model.Participant) {
	roomKey := p.RoomKey
	if result, ok := s.leave(ctx, connID); ok && result.RoomKey != "" {
		roomKey = result.RoomKey
	}

	s.toOthers(ctx, roomKey, connID, proto.EventLeft, s.roomUpdate(roomKey, p))
}

// Disconnect 连接断开，成员信息由连接反查
func (s *GameService) Disconnect(ctx context.Context, connID string) {
	p, found := s.rooms.GetParticipant(connID)
	result, ok := s.leave(ctx, connID)
	if !found || !ok {
		return
	}

	s.toOthers(ctx, result.RoomKey, connID, proto.EventLeft, s.roomUpdate(result.RoomKey, p))
}

// leave 离开房间并清理在线索引与定时触发
func (s *GameService) leave(ctx context.Context, connID string) (room.LeaveResult, bool) {
	result, err := s.rooms.Leave(connID)
	if err != nil {
		s.logger.Debug("Leave had no effect", "connId", connID, "error", err)
		return result, false
	}

	s.afterLeave(ctx, connID, result)
	return result, true
}

// afterLeave 房间销毁时撤销定时触发，并同步在线索引
func (s *GameService) afterLeave(ctx context.Context, connID string, result room.LeaveResult) {
	if result.RoomClosed {
		s.triggers.Disarm(result.RoomKey)
	}
	if err := s.presence.Exit(ctx, result.RoomKey, connID, result.RoomClosed); err != nil {
		s.logger.Warn("Failed to remove presence", "roomKey", result.RoomKey, "connId", connID, "error", err)
	}
}

// UpdateConfiguration 更新配置并回显给其他成员
func (s *GameService) UpdateConfiguration(ctx context.Context, connID string, cfg model.Configuration) {
	if err := s.rooms.UpdateConfiguration(cfg.RoomKey, cfg); err != nil {
		return
	}
	s.toOthers(ctx, cfg.RoomKey, connID, proto.EventConfigurationUpdated, cfg)
}

// RequestWordSelection 进入选词阶段
func (s *GameService) RequestWordSelection(ctx context.Context, p model.Participant) {
	game, members, err := s.rooms.RequestWordSelection(p.RoomKey)
	if err != nil {
		return
	}

	s.toRoom(ctx, p.RoomKey, proto.EventWordSelection, proto.WordSelectionView{
		CurrentTurn: &p,
		GameState:   &game,
		RoomMembers: members,
	})
}

// WordSelected 作画者选定词语：进入作画阶段、广播开始并登记定时触发
func (s *GameService) WordSelected(ctx context.Context, ws proto.WordSelected) {
	roomKey := ws.CurrentTurn.RoomKey
	startedAt := s.now()

	game, err := s.rooms.BeginDrawing(roomKey, ws.Word, startedAt)
	if err != nil {
		return
	}

	s.toRoom(ctx, roomKey, proto.EventGameStarted, ws)

	if game.DrawTime <= 0 {
		s.logger.Warn("Draw time not positive, rounds will not advance", "roomKey", roomKey, "drawTime", game.DrawTime)
		return
	}
	s.armRound(roomKey, game.StartTime, game.DrawTime)
}

// armRound 登记揭晓排行榜与推进回合两个触发
func (s *GameService) armRound(roomKey string, startMillis int64, drawTime int) {
	revealAt := time.UnixMilli(startMillis).Add(time.Duration(drawTime) * time.Second)
	nextAt := revealAt.Add(s.revealGrace)

	if _, err := s.triggers.Arm(roomKey, task.TriggerRevealLeaderboard, revealAt, func(ctx context.Context) error {
		return s.RevealLeaderboard(ctx, roomKey, startMillis)
	}); err != nil {
		s.logger.Error("Failed to arm leaderboard trigger", "roomKey", roomKey, "error", err)
	}

	if _, err := s.triggers.Arm(roomKey, task.TriggerAdvanceTurn, nextAt, func(ctx context.Context) error {
		return s.AdvanceTurn(ctx, roomKey, startMillis)
	}); err != nil {
		s.logger.Error("Failed to arm advance trigger", "roomKey", roomKey, "error", err)
	}
}

// RevealLeaderboard 作画时间结束，广播本轮排行榜
// startMillis 为登记时的回合开始时间，房间已销毁或回合已变化时不做任何事
func (s *GameService) RevealLeaderboard(ctx context.Context, roomKey string, startMillis int64) error {
	board, err := s.rooms.RevealLeaderboard(roomKey, startMillis)
	if err != nil {
		return staleOr(err)
	}

	s.toRoom(ctx, roomKey, proto.EventLeaderBoard, board)
	return nil
}

// AdvanceTurn 推进到下一位作画者或结束整局
func (s *GameService) AdvanceTurn(ctx context.Context, roomKey string, startMillis int64) error {
	outcome, err := s.rooms.AdvanceTurn(roomKey, startMillis)
	if err != nil {
		return staleOr(err)
	}

	if outcome.Finished {
		s.logger.Info("Game finished", "roomKey", roomKey, "players", len(outcome.Members))
		s.toRoom(ctx, roomKey, proto.EventResult, outcome.Members)
		if err := s.recorder.RecordResults(ctx, roomKey, s.now(), outcome.Members); err != nil {
			s.logger.Warn("Failed to record results", "roomKey", roomKey, "error", err)
		}
		return nil
	}

	s.toRoom(ctx, roomKey, proto.EventWordSelection, proto.WordSelectionView{
		CurrentTurn: outcome.NextPlayer,
		GameState:   &outcome.Game,
		RoomMembers: outcome.Members,
	})
	return nil
}

// WordGuessed 记录猜中得分并通知其他成员
func (s *GameService) WordGuessed(ctx context.Context, connID string, p model.Participant) {
	if _, err := s.rooms.RecordGuessScore(connID, p.RoomKey); err != nil {
		return
	}
	s.toOthers(ctx, p.RoomKey, connID, proto.EventWordGuessed, p)
}

// Like 点赞/点踩当前作画者
func (s *GameService) Like(ctx context.Context, like proto.Like) {
	roomKey := like.User.RoomKey
	if err := s.rooms.AdjustDrawerScore(roomKey, like.IsLiked); err != nil {
		return
	}
	s.toRoom(ctx, roomKey, proto.EventLike, like)
}

// Relay 纯转发，不修改房间状态
func (s *GameService) Relay(ctx context.Context, roomKey string, connID string, event string, payload any, includeSender bool) {
	if includeSender {
		s.toRoom(ctx, roomKey, event, payload)
		return
	}
	s.toOthers(ctx, roomKey, connID, event, payload)
}

// roomUpdate 构建加入/离开视图，房间已销毁时游戏状态与作画者为空
func (s *GameService) roomUpdate(roomKey string, p model.Participant) proto.RoomUpdate {
	update := proto.RoomUpdate{
		User:    p,
		Members: s.rooms.GetMembers(roomKey, false),
	}
	if game, ok := s.rooms.GetGameState(roomKey); ok {
		update.GameState = &game
	}
	if current, ok := s.rooms.GetCurrentPlayer(roomKey); ok {
		update.CurrentTurn = &current
	}
	return update
}

func (s *GameService) toRoom(ctx context.Context, roomKey string, event string, data any) {
	if err := s.broadcaster.BroadcastToRoom(ctx, roomKey, event, data); err != nil {
		s.logger.Warn("Failed to broadcast to room", "roomKey", roomKey, "event", event, "error", err)
	}
}

func (s *GameService) toOthers(ctx context.Context, roomKey string, connID string, event string, data any) {
	if err := s.broadcaster.BroadcastToOthers(ctx, roomKey, connID, event, data); err != nil {
		s.logger.Warn("Failed to broadcast to room", "roomKey", roomKey, "event", event, "error", err)
	}
}

// staleOr 房间消失或回合已变化属于预期竞争，转换为失效触发
func staleOr(err error) error {
	if errors.Is(err, room.ErrRoomNotFound) || errors.Is(err, room.ErrStaleTurn) || errors.Is(err, room.ErrNoParticipants) {
		return errors.Join(task.ErrStaleTrigger, err)
	}
	return err
}
