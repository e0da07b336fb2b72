package handler

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"sudooom.draw/internal/model"
	"sudooom.draw/pkg/response"
)

const (
	defaultResultLimit = 50
	maxResultLimit     = 500
)

// RoomQuery 房间快照查询
type RoomQuery interface {
	GetRoomSnapshot(roomKey string) (*model.RoomSnapshot, bool)
}

// ResultQuery 历史结果查询
type ResultQuery interface {
	FindByRoom(ctx context.Context, roomKey string, limit int) ([]model.GameResult, error)
}

// RoomHandler 房间 HTTP 处理器
type RoomHandler struct {
	rooms   RoomQuery
	results ResultQuery
	logger  *slog.Logger
}

// NewRoomHandler 创建房间处理器，results 为 nil 时历史结果接口不可用
func NewRoomHandler(rooms RoomQuery, results ResultQuery) *RoomHandler {
	return &RoomHandler{
		rooms:   rooms,
		results: results,
		logger:  slog.Default().With("component", "RoomHandler"),
	}
}

// HasResults 是否启用了历史结果查询
func (h *RoomHandler) HasResults() bool {
	return h.results != nil
}

// GetRoom 获取房间快照
// GET /room/:id
func (h *RoomHandler) GetRoom(c *gin.Context) {
	snapshot, ok := h.rooms.GetRoomSnapshot(c.Param("id"))
	if !ok {
		response.Error(c, response.CodeRoomNotFound)
		return
	}

	response.Success(c, snapshot)
}

// GetResults 获取房间历史结果
// GET /room/:id/results?limit=50
func (h *RoomHandler) GetResults(c *gin.Context) {
	limit := defaultResultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.ErrorWithMsg(c, response.CodeInvalidParams, "limit must be a positive integer")
			return
		}
		limit = min(n, maxResultLimit)
	}

	results, err := h.results.FindByRoom(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.logger.Error("Failed to query results", "roomKey", c.Param("id"), "error", err)
		response.Error(c, response.CodeDBError)
		return
	}
	if results == nil {
		results = []model.GameResult{}
	}

	response.Success(c, results)
}
