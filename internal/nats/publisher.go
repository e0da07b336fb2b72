package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"sudooom.draw/pkg/proto"
)

// Publisher 发布接口，*nats.Conn 满足该接口
type Publisher interface {
	Publish(subj string, data []byte) error
}

// EventPublisher 房间事件发布器
// 所有下行事件发布到同一主题，由网关按房间扇出
type EventPublisher struct {
	pub     Publisher
	subject string
	logger  *slog.Logger
}

// NewEventPublisher 创建事件发布器
func NewEventPublisher(pub Publisher) *EventPublisher {
	return &EventPublisher{
		pub:     pub,
		subject: proto.SubjectGatewayDownstream,
		logger:  slog.Default().With("component", "EventPublisher"),
	}
}

// BroadcastToRoom 发送给房间内所有成员
func (p *EventPublisher) BroadcastToRoom(ctx context.Context, roomKey string, event string, data any) error {
	return p.publish(roomKey, "", event, data)
}

// BroadcastToOthers 发送给房间内除 exceptConnID 外的成员
func (p *EventPublisher) BroadcastToOthers(ctx context.Context, roomKey string, exceptConnID string, event string, data any) error {
	return p.publish(roomKey, exceptConnID, event, data)
}

func (p *EventPublisher) publish(roomKey, exceptConnID, event string, data any) error {
	payload, err := encodePayload(data)
	if err != nil {
		p.logger.Error("Failed to marshal payload", "event", event, "roomKey", roomKey, "error", err)
		return err
	}

	msg, err := json.Marshal(&proto.DownstreamEvent{
		Event:         event,
		RoomKey:       roomKey,
		ExcludeConnID: exceptConnID,
		Payload:       payload,
	})
	if err != nil {
		p.logger.Error("Failed to marshal event", "event", event, "roomKey", roomKey, "error", err)
		return err
	}

	if err := p.pub.Publish(p.subject, msg); err != nil {
		p.logger.Error("Failed to publish event", "event", event, "roomKey", roomKey, "error", err)
		return err
	}

	p.logger.Debug("Published event", "event", event, "roomKey", roomKey, "subject", p.subject)
	return nil
}

// encodePayload 已编码的载荷原样透传
func encodePayload(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, fmt.Errorf("payload is not valid json")
		}
		return v, nil
	default:
		return json.Marshal(v)
	}
}
