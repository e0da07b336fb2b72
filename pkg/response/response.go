package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// 错误码常量
const (
	CodeSuccess = 0

	// 房间相关 20000-20999
	CodeRoomNotFound = 20001

	// 参数相关 40000-40999
	CodeInvalidParams = 40001

	// 系统错误 50000-50999
	CodeServerError = 50000
	CodeDBError     = 50001
)

var codeMessages = map[int]string{
	CodeSuccess:       "success",
	CodeRoomNotFound:  "Room not found!",
	CodeInvalidParams: "参数校验失败",
	CodeServerError:   "服务器内部错误",
	CodeDBError:       "数据库错误",
}

// Success 成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应，data 为空对象
func Error(c *gin.Context, code int) {
	message := codeMessages[code]
	if message == "" {
		message = "unknown error"
	}
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    gin.H{},
	})
}

// ErrorWithMsg 自定义错误消息
func ErrorWithMsg(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    gin.H{},
	})
}
