package room

import "errors"

// 房间错误定义

var (
	ErrRoomNotFound   = errors.New("ROOM_NOT_FOUND")
	ErrNotInRoom      = errors.New("NOT_IN_ROOM")
	ErrDrawerNotFound = errors.New("DRAWER_NOT_FOUND")
	ErrNoParticipants = errors.New("NO_PARTICIPANTS")
	ErrStaleTurn      = errors.New("STALE_TURN")
)
