package proto

import (
	"encoding/json"

	"sudooom.draw/internal/model"
)

// ============== 事件名称 ==============

// 上行事件 (Gateway -> Logic)
const (
	EventJoin                = "join"
	EventLeave               = "leave"
	EventDisconnect          = "disconnect"
	EventUpdateConfiguration = "update-configuration"
	EventWordSelection       = "word-selection"
	EventWordSelected        = "word-selected"
	EventWordGuessed         = "word-guessed"
	EventLike                = "like"
	EventDrawing             = "drawing"
	EventStop                = "stop"
	EventClear               = "clear"
	EventRestart             = "restart"
	EventTyping              = "typing"
	EventSend                = "send"
)

// 下行事件 (Logic -> Gateway)，与上行同名的事件不再重复定义
const (
	EventJoined               = "joined"
	EventLeft                 = "left"
	EventConfigurationUpdated = "configuration-updated"
	EventGameStarted          = "game-started"
	EventLeaderBoard          = "leader-board"
	EventResult               = "result"
	EventReceive              = "receive"
)

// ============== 上行消息 (Gateway -> Logic) ==============

// UpstreamEvent 上行事件封装
type UpstreamEvent struct {
	Event   string          `json:"event"`   // 事件名称
	RoomKey string          `json:"room"`    // 房间标识
	ConnID  string          `json:"connId"`  // 发送方连接ID
	Payload json.RawMessage `json:"payload"` // 事件载荷（原样透传）
}

// WordSelected 作画者选定词语
type WordSelected struct {
	CurrentTurn model.Participant `json:"currentTurn"`
	Word        string            `json:"word"`
}

// Like 点赞/点踩作画者
type Like struct {
	IsLiked     bool              `json:"isLiked"`
	CurrentTurn model.Participant `json:"currentTurn"`
	User        model.Participant `json:"user"`
}

// Typing 输入状态
type Typing struct {
	RoomKey string            `json:"room"`
	User    model.Participant `json:"user"`
	Typing  bool              `json:"typing"`
}

// ChatMessage 聊天消息
type ChatMessage struct {
	RoomKey string            `json:"room"`
	User    model.Participant `json:"user"`
	Message string            `json:"message"`
}

// ============== 下行消息 (Logic -> Gateway) ==============

// DownstreamEvent 下行事件封装
// ExcludeConnID 非空时网关跳过该连接（"发送给除发送者外的房间成员"）
type DownstreamEvent struct {
	Event         string          `json:"event"`
	RoomKey       string          `json:"room"`
	ExcludeConnID string          `json:"excludeConnId,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// RoomUpdate 成员加入/离开后的房间视图
type RoomUpdate struct {
	User        model.Participant   `json:"user"`
	Members     []model.Participant `json:"members"`
	GameState   *model.GameState    `json:"gameState"`
	CurrentTurn *model.Participant  `json:"currentTurn"`
}

// WordSelectionView 选词阶段视图
type WordSelectionView struct {
	CurrentTurn *model.Participant  `json:"currentTurn"`
	GameState   *model.GameState    `json:"gameState"`
	RoomMembers []model.Participant `json:"roomMembers"`
}

// TypingView 输入状态转发
type TypingView struct {
	User   model.Participant `json:"user"`
	Typing bool              `json:"typing"`
}

// ChatView 聊天消息转发
type ChatView struct {
	User    model.Participant `json:"user"`
	Message string            `json:"message"`
}
