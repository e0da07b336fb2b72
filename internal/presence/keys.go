package presence

import (
	"fmt"
	"time"
)

const (
	// RoomMembersKeyPrefix 房间在线连接集合 Key 前缀
	RoomMembersKeyPrefix = "draw:room:"

	// ConnRoomKeyPrefix 连接所属房间 Key 前缀
	ConnRoomKeyPrefix = "draw:conn:"

	// DefaultTTL 在线索引默认过期时间
	DefaultTTL = 24 * time.Hour
)

// BuildRoomMembersKey 构建房间在线连接集合 Key
// Key: draw:room:{roomKey}:members
func BuildRoomMembersKey(roomKey string) string {
	return fmt.Sprintf("%s%s:members", RoomMembersKeyPrefix, roomKey)
}

// BuildConnRoomKey 构建连接所属房间 Key
// Key: draw:conn:{connId}:room
func BuildConnRoomKey(connID string) string {
	return fmt.Sprintf("%s%s:room", ConnRoomKeyPrefix, connID)
}
