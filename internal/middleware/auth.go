package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/hokm-game/internal/auth"
)

// AuthMiddleware 会话令牌认证中间件
type AuthMiddleware struct {
	tokens *auth.TokenManager
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(tokens *auth.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
	}
}

// RequireSession 需要房间会话令牌的中间件
func (m *AuthMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "NO_TOKEN",
				"message": "缺少会话令牌",
			})
			c.Abort()
			return
		}

		claims, err := m.tokens.Validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "INVALID_TOKEN",
				"message": "无效的会话令牌",
				"details": err.Error(),
			})
			c.Abort()
			return
		}

		// 将会话信息存入上下文
		c.Set("roomID", claims.RoomID)
		c.Set("playerID", claims.PlayerID)
		c.Set("playerName", claims.Name)
		c.Set("token", token)

		c.Next()
	}
}

// extractToken 从请求中提取令牌
func (m *AuthMiddleware) extractToken(c *gin.Context) string {
	// 1. 从Authorization Header获取 (Bearer Token)
	bearerToken := c.GetHeader("Authorization")
	if bearerToken != "" {
		parts := strings.Split(bearerToken, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	// 2. 从X-Access-Token Header获取
	if token := c.GetHeader("X-Access-Token"); token != "" {
		return token
	}

	// 3. 从Query参数获取（WebSocket握手时无法带Header）
	if token := c.Query("token"); token != "" {
		return token
	}

	return ""
}

// GetRoomID 从上下文获取房间ID
func GetRoomID(c *gin.Context) (string, bool) {
	if roomID, exists := c.Get("roomID"); exists {
		if id, ok := roomID.(string); ok {
			return id, true
		}
	}
	return "", false
}

// GetPlayerID 从上下文获取玩家ID
func GetPlayerID(c *gin.Context) (string, bool) {
	if playerID, exists := c.Get("playerID"); exists {
		if id, ok := playerID.(string); ok {
			return id, true
		}
	}
	return "", false
}

// GetPlayerName 从上下文获取玩家昵称
func GetPlayerName(c *gin.Context) (string, bool) {
	if name, exists := c.Get("playerName"); exists {
		if n, ok := name.(string); ok {
			return n, true
		}
	}
	return "", false
}
