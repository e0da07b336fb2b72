package proto

// NATS Subject 默认值
const (
	// SubjectLogicUpstream Gateway -> Logic 上行事件
	SubjectLogicUpstream = "draw.logic.upstream"

	// SubjectGatewayDownstream Logic -> 全部 Gateway 房间事件
	SubjectGatewayDownstream = "draw.gateway.downstream"

	// QueueGroupLogic Logic 服务队列组名称
	QueueGroupLogic = "draw-logic-group"
)
