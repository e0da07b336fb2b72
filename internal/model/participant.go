package model

// Participant 房间成员
type Participant struct {
	ID           string `json:"id"`           // 客户端用户ID
	ConnectionID string `json:"connectionId"` // 连接ID（房间内唯一）
	RoomKey      string `json:"room"`         // 所在房间
	IsAdmin      bool   `json:"admin"`        // 是否房主
	Name         string `json:"name"`         // 显示名称
	Score        int    `json:"score"`        // 累计得分
	Emoji        string `json:"emoji"`        // 头像表情
}

// LeaderboardEntry 本轮排行榜条目
type LeaderboardEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Emoji string `json:"emoji"`
}
