package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/webclient/internal/auth"
	jwtpkg "tempmail/webclient/internal/auth/jwt"
	"tempmail/webclient/internal/config"
	"tempmail/webclient/internal/filters"
	"tempmail/webclient/internal/health"
	"tempmail/webclient/internal/inbox"
	"tempmail/webclient/internal/middleware"
	"tempmail/webclient/internal/monitoring"
	"tempmail/webclient/internal/registrar"
	"tempmail/webclient/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config           *config.Config
	InboxManager     *inbox.Manager
	RegistrarService *registrar.Service
	FiltersService   *filters.Service
	AuthService      *auth.Service
	JWTManager       *jwtpkg.Manager
	WebSocketHub     *websocket.Hub
	Metrics          *monitoring.Metrics
	HealthChecker    *health.HealthChecker
	Logger           *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(1 * 1024 * 1024))
	router.Use(deps.Metrics.Middleware())

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	inboxHandler := NewInboxHandler(deps.InboxManager, deps.Metrics, deps.Logger)
	customEmailHandler := NewCustomEmailHandler(deps.RegistrarService, deps.InboxManager, deps.Metrics, deps.Logger)
	filtersHandler := NewFiltersHandler(deps.FiltersService, deps.Metrics, deps.Logger)
	authHandler := NewAuthHandler(deps.AuthService, deps.JWTManager, deps.Logger)

	// 创建中间件
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)
	adminAuth := middleware.NewAdminAuth(deps.AuthService)
	mutationLimit := middleware.NewRateLimiter(5, 10)

	// 健康检查与指标
	router.GET("/healthz", gin.WrapH(deps.HealthChecker.Handler()))
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	// V1 API
	v1 := router.Group("/v1")
	v1.Use(middleware.Session())
	{
		// ========== 收件箱 ==========
		inboxRoutes := v1.Group("/inbox")
		{
			inboxRoutes.GET("", inboxHandler.State)
			inboxRoutes.GET("/domains", inboxHandler.Domains)
			inboxRoutes.POST("/generate", mutationLimit.Limit(), inboxHandler.Generate)
			inboxRoutes.GET("/messages", inboxHandler.Messages)
			inboxRoutes.POST("/messages/:id/read", inboxHandler.MarkRead)
			inboxRoutes.POST("/copy", inboxHandler.Copy)
		}

		// ========== 自定义邮箱 ==========
		// 未登录也允许进入处理器，由注册服务返回明确的认证错误。
		v1.POST("/custom-emails", jwtAuth.OptionalAuth(), mutationLimit.Limit(), customEmailHandler.Register)

		// ========== 认证 ==========
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", mutationLimit.Limit(), authHandler.Register)
			authRoutes.POST("/login", mutationLimit.Limit(), authHandler.Login)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
		}

		// ========== 管理后台：过滤规则 ==========
		adminRoutes := v1.Group("/admin")
		adminRoutes.Use(jwtAuth.RequireAuth(), adminAuth.RequireAdmin())
		{
			adminRoutes.GET("/filters", filtersHandler.List)
			adminRoutes.POST("/filters", filtersHandler.Create)
			adminRoutes.PATCH("/filters/:id", filtersHandler.Toggle)
			adminRoutes.DELETE("/filters/:id", filtersHandler.Delete)
		}

		// ========== WebSocket ==========
		v1.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub, middleware.SessionID))
	}

	return router
}
