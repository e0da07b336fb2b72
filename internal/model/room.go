package model

// RoomSnapshot 房间只读快照
type RoomSnapshot struct {
	Key        string                 `json:"room"`        // 房间标识
	Members    map[string]Participant `json:"users"`       // 连接ID -> 成员
	Game       GameState              `json:"gameState"`   // 游戏状态
	Scoreboard map[string]int         `json:"leaderBoard"` // 连接ID -> 本轮得分
}
