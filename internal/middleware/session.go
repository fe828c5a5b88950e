package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionCookie 浏览器会话 cookie 名称
const SessionCookie = "tm_session"

// sessionKey 上下文键
const sessionKey = "sessionID"

// Session 为每个浏览器分配匿名会话标识。
//
// 会话标识是邮箱协调器的索引：同一浏览器的轮询、推送和操作
// 都落在同一个协调器上。与登录态无关，匿名用户同样有会话。
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookie)
		if err != nil || id == "" {
			id = uuid.New().String()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, id, 0, "/", "", false, true)
		}
		c.Set(sessionKey, id)
		c.Next()
	}
}

// SessionID 读取当前请求的会话标识
func SessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}
