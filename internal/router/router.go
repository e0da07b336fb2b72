package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sudooom.draw/internal/config"
	"sudooom.draw/internal/handler"
	"sudooom.draw/internal/health"
	"sudooom.draw/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(
	cfg config.HTTPConfig,
	roomHandler *handler.RoomHandler,
	healthChecker *health.Checker,
) *gin.Engine {
	// 设置 Gin 模式
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	r := gin.New()

	// 全局中间件
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Server is live")
	})

	room := r.Group("/room")
	{
		room.GET("/:id", roomHandler.GetRoom)
		if roomHandler.HasResults() {
			room.GET("/:id/results", roomHandler.GetResults)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		status := healthChecker.Check(c.Request.Context())
		code := http.StatusOK
		if !status.Healthy() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
	r.GET("/ready", func(c *gin.Context) {
		if healthChecker.IsHealthy(c.Request.Context()) {
			c.String(http.StatusOK, "OK")
			return
		}
		c.String(http.StatusServiceUnavailable, "Not Ready")
	})

	return r
}
