package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/hokm-game/internal/auth"
	"github.com/wfunc/hokm-game/internal/game"
	"github.com/wfunc/hokm-game/internal/middleware"
	ws "github.com/wfunc/hokm-game/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	roomHandler    *RoomHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(db *gorm.DB, rooms *game.RoomService, hub *ws.Hub, tokens *auth.TokenManager, log *zap.Logger) *Router {
	// 创建Gin引擎
	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	// 创建处理器
	roomHandler := NewRoomHandler(rooms, log)
	wsHandler := NewWebSocketHandler(hub, log)

	// 创建中间件
	authMiddleware := middleware.NewAuthMiddleware(tokens)

	router := &Router{
		engine:         engine,
		db:             db,
		roomHandler:    roomHandler,
		wsHandler:      wsHandler,
		authMiddleware: authMiddleware,
		log:            log,
	}

	// 设置路由
	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	{
		rooms := v1.Group("/rooms")
		{
			// 建房和入座不需要会话令牌
			rooms.POST("", r.roomHandler.CreateRoom)
			rooms.POST("/:room_id/join", r.roomHandler.JoinRoom)

			// 入座后的动作都需要令牌
			session := rooms.Group("")
			session.Use(r.authMiddleware.RequireSession())
			{
				session.GET("/:room_id", r.roomHandler.GetState)
				session.POST("/:room_id/switch-seat", r.roomHandler.SwitchSeat)
				session.POST("/:room_id/hokm", r.roomHandler.SetHokm)
				session.POST("/:room_id/play", r.roomHandler.PlayCard)
				session.POST("/:room_id/leave", r.roomHandler.LeaveRoom)
			}
		}
	}

	// WebSocket路由，令牌可以放在query参数里
	ws := r.engine.Group("/ws")
	ws.Use(r.authMiddleware.RequireSession())
	{
		ws.GET("/rooms/:room_id", r.wsHandler.HandleConnection)
	}

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	if r.db != nil {
		sqlDB, err := r.db.DB()
		if err != nil {
			c.JSON(500, gin.H{
				"status":  "unhealthy",
				"message": "数据库连接失败",
			})
			return
		}
		if err := sqlDB.Ping(); err != nil {
			c.JSON(500, gin.H{
				"status":  "unhealthy",
				"message": "数据库ping失败",
			})
			return
		}
	}

	c.JSON(200, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// Run 运行服务器
func (r *Router) Run(addr string) error {
	r.log.Info("Starting API server", zap.String("address", addr))
	return r.engine.Run(addr)
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
