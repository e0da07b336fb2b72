package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"sudooom.draw/internal/game"
	"sudooom.draw/internal/model"
	"sudooom.draw/pkg/proto"
)

// ActionFunc 单个上行事件的处理函数
type ActionFunc func(ctx context.Context, evt *proto.UpstreamEvent) error

// EventHandler 上行事件处理器
// 按事件名称分发到 GameService；绘画类事件只做转发。
type EventHandler struct {
	actions     map[string]ActionFunc
	gameService *game.GameService
	logger      *slog.Logger
}

// NewEventHandler 创建上行事件处理器
func NewEventHandler(gameService *game.GameService) *EventHandler {
	h := &EventHandler{
		actions:     make(map[string]ActionFunc),
		gameService: gameService,
		logger:      slog.Default().With("component", "EventHandler"),
	}

	h.registerActions()

	return h
}

// registerActions 注册各事件处理函数
func (h *EventHandler) registerActions() {
	h.actions[proto.EventJoin] = h.handleJoin
	h.actions[proto.EventLeave] = h.handleLeave
	h.actions[proto.EventDisconnect] = h.handleDisconnect
	h.actions[proto.EventUpdateConfiguration] = h.handleUpdateConfiguration
	h.actions[proto.EventWordSelection] = h.handleWordSelection
	h.actions[proto.EventWordSelected] = h.handleWordSelected
	h.actions[proto.EventWordGuessed] = h.handleWordGuessed
	h.actions[proto.EventLike] = h.handleLike
	h.actions[proto.EventTyping] = h.handleTyping
	h.actions[proto.EventSend] = h.handleSend

	// 纯转发
	h.actions[proto.EventDrawing] = h.relay(false)
	h.actions[proto.EventStop] = h.relay(false)
	h.actions[proto.EventClear] = h.relay(false)
	h.actions[proto.EventRestart] = h.relay(true)
}

// Handle 处理上行事件
func (h *EventHandler) Handle(ctx context.Context, evt *proto.UpstreamEvent) {
	action, ok := h.actions[evt.Event]
	if !ok {
		h.logger.Warn("Unknown event", "event", evt.Event, "roomKey", evt.RoomKey, "connId", evt.ConnID)
		return
	}

	if err := action(ctx, evt); err != nil {
		h.logger.Warn("Failed to handle event", "event", evt.Event, "roomKey", evt.RoomKey, "connId", evt.ConnID, "error", err)
	}
}

func (h *EventHandler) handleJoin(ctx context.Context, evt *proto.UpstreamEvent) error {
	p, err := decodeParticipant(evt)
	if err != nil {
		return err
	}
	h.gameService.Join(ctx, evt.ConnID, p)
	return nil
}

func (h *EventHandler) handleLeave(ctx context.Context, evt *proto.UpstreamEvent) error {
	p, err := decodeParticipant(evt)
	if err != nil {
		return err
	}
	h.gameService.Leave(ctx, evt.ConnID, p)
	return nil
}

func (h *EventHandler) handleDisconnect(ctx context.Context, evt *proto.UpstreamEvent) error {
	h.gameService.Disconnect(ctx, evt.ConnID)
	return nil
}

func (h *EventHandler) handleUpdateConfiguration(ctx context.Context, evt *proto.UpstreamEvent) error {
	var cfg model.Configuration
	if err := decode(evt, &cfg); err != nil {
		return err
	}
	if cfg.RoomKey == "" {
		cfg.RoomKey = evt.RoomKey
	}
	h.gameService.UpdateConfiguration(ctx, evt.ConnID, cfg)
	return nil
}

func (h *EventHandler) handleWordSelection(ctx context.Context, evt *proto.UpstreamEvent) error {
	p, err := decodeParticipant(evt)
	if err != nil {
		return err
	}
	h.gameService.RequestWordSelection(ctx, p)
	return nil
}

func (h *EventHandler) handleWordSelected(ctx context.Context, evt *proto.UpstreamEvent) error {
	var ws proto.WordSelected
	if err := decode(evt, &ws); err != nil {
		return err
	}
	if ws.CurrentTurn.RoomKey == "" {
		ws.CurrentTurn.RoomKey = evt.RoomKey
	}
	h.gameService.WordSelected(ctx, ws)
	return nil
}

func (h *EventHandler) handleWordGuessed(ctx context.Context, evt *proto.UpstreamEvent) error {
	p, err := decodeParticipant(evt)
	if err != nil {
		return err
	}
	h.gameService.WordGuessed(ctx, evt.ConnID, p)
	return nil
}

func (h *EventHandler) handleLike(ctx context.Context, evt *proto.UpstreamEvent) error {
	var like proto.Like
	if err := decode(evt, &like); err != nil {
		return err
	}
	if like.User.RoomKey == "" {
		like.User.RoomKey = evt.RoomKey
	}
	h.gameService.Like(ctx, like)
	return nil
}

func (h *EventHandler) handleTyping(ctx context.Context, evt *proto.UpstreamEvent) error {
	var typing proto.Typing
	if err := decode(evt, &typing); err != nil {
		return err
	}
	roomKey := firstNonEmpty(typing.RoomKey, evt.RoomKey)
	h.gameService.Relay(ctx, roomKey, evt.ConnID, proto.EventTyping, proto.TypingView{User: typing.User, Typing: typing.Typing}, false)
	return nil
}

func (h *EventHandler) handleSend(ctx context.Context, evt *proto.UpstreamEvent) error {
	var msg proto.ChatMessage
	if err := decode(evt, &msg); err != nil {
		return err
	}
	roomKey := firstNonEmpty(msg.RoomKey, evt.RoomKey)
	h.gameService.Relay(ctx, roomKey, evt.ConnID, proto.EventReceive, proto.ChatView{User: msg.User, Message: msg.Message}, false)
	return nil
}

// relay 原样转发载荷
func (h *EventHandler) relay(includeSender bool) ActionFunc {
	return func(ctx context.Context, evt *proto.UpstreamEvent) error {
		if evt.RoomKey == "" {
			return fmt.Errorf("relay %s: missing room", evt.Event)
		}
		var payload any
		if len(evt.Payload) > 0 {
			payload = evt.Payload
		}
		h.gameService.Relay(ctx, evt.RoomKey, evt.ConnID, evt.Event, payload, includeSender)
		return nil
	}
}

// decodeParticipant 解析成员载荷，缺省房间取信封中的房间
func decodeParticipant(evt *proto.UpstreamEvent) (model.Participant, error) {
	var p model.Participant
	if err := decode(evt, &p); err != nil {
		return model.Participant{}, err
	}
	if p.RoomKey == "" {
		p.RoomKey = evt.RoomKey
	}
	if p.RoomKey == "" {
		return model.Participant{}, fmt.Errorf("%s: missing room", evt.Event)
	}
	return p, nil
}

func decode(evt *proto.UpstreamEvent, v any) error {
	if len(evt.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", evt.Event)
	}
	if err := json.Unmarshal(evt.Payload, v); err != nil {
		return fmt.Errorf("%s: decode payload: %w", evt.Event, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
