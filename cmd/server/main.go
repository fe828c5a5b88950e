package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tempmail/webclient/internal/auth"
	jwtpkg "tempmail/webclient/internal/auth/jwt"
	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/backend/hybrid"
	"tempmail/webclient/internal/backend/memory"
	"tempmail/webclient/internal/backend/postgres"
	"tempmail/webclient/internal/backend/redis"
	sqlstore "tempmail/webclient/internal/backend/sql"
	"tempmail/webclient/internal/config"
	"tempmail/webclient/internal/domain"
	"tempmail/webclient/internal/filters"
	"tempmail/webclient/internal/health"
	"tempmail/webclient/internal/inbox"
	"tempmail/webclient/internal/logger"
	"tempmail/webclient/internal/monitoring"
	"tempmail/webclient/internal/notify"
	"tempmail/webclient/internal/pool"
	"tempmail/webclient/internal/registrar"
	httptransport "tempmail/webclient/internal/transport/http"
	"tempmail/webclient/internal/websocket"
)

// main 启动临时邮箱 Web 客户端服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting tempmail web client",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化后端存储客户端
	var store backend.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = initializeBackend(cfg, log)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize backend client: %v", err))
		}
		log.Info("using database backend",
			zap.String("type", cfg.Database.Type),
			zap.String("push_mode", cfg.Push.Mode),
		)
	} else {
		store = memory.NewStore()
		log.Info("using in-memory backend (development mode)")
	}

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(store, log)

	// 通知投递协程池
	workers := pool.NewWorkerPool(4, 256, log)

	// WebSocket Hub：每个会话的通知与剪贴板都经由它下发
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, metrics, log)

	// 收件箱管理器：每个浏览器会话一个协调器
	manager := inbox.NewManager(store,
		func(sessionID string) notify.Sink {
			return notify.NewFanout(workers, wsHub.Sink(sessionID), notify.NewLogSink(log))
		},
		func(sessionID string) inbox.Clipboard {
			return wsHub.Clipboard(sessionID)
		},
		inbox.ManagerOptions{
			Coordinator: inbox.Options{
				PollInterval:    cfg.Inbox.PollInterval,
				HistoryLimit:    cfg.Inbox.HistoryLimit,
				LocalPartLength: cfg.Inbox.LocalPartLength,
				DomainRetry: inbox.RetryPolicy{
					MaxTries:        cfg.Inbox.DomainRetryMaxTries,
					InitialInterval: cfg.Inbox.DomainRetryInterval,
				},
			},
			DomainTTL: cfg.Inbox.DomainCacheTTL,
			IdleTTL:   cfg.Inbox.SessionIdleTTL,
		},
		log,
	)

	// 服务层
	serviceSink := notify.NewFanout(workers, notify.NewLogSink(log))
	registrarService := registrar.NewService(store, serviceSink, log)
	filtersService := filters.NewService(store, serviceSink, log)
	authService := auth.NewService(store)
	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	// 创建默认管理员用户（仅用于开发测试）
	if cfg.Log.Development {
		createDefaultAdmin(store, log)
	}

	// HTTP 路由
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:           cfg,
		InboxManager:     manager,
		RegistrarService: registrarService,
		FiltersService:   filtersService,
		AuthService:      authService,
		JWTManager:       jwtManager,
		WebSocketHub:     wsHub,
		Metrics:          metrics,
		HealthChecker:    healthChecker,
		Logger:           log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers.Start(ctx)
	manager.Start(ctx)

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		manager.Close()
		workers.Stop()
		if err := store.Close(); err != nil {
			log.Warn("backend close warning", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeBackend 初始化数据库后端与推送通道的组合客户端。
//
// 推送通道按 push.mode 选择；留空时 PostgreSQL 用 LISTEN/NOTIFY，
// 其余数据库用 Redis 发布订阅。
func initializeBackend(cfg *config.Config, log *zap.Logger) (backend.Store, error) {
	sqlStore, err := sqlstore.NewStore(
		cfg.Database.Type,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sql store: %w", err)
	}

	mode := cfg.Push.Mode
	if mode == "" {
		if cfg.Database.Type == "postgres" {
			mode = "postgres"
		} else {
			mode = "redis"
		}
	}

	var push hybrid.Pusher
	switch mode {
	case "postgres":
		push, err = postgres.New(&cfg.Database, log)
	case "redis":
		push, err = redis.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, log)
	default:
		err = fmt.Errorf("unsupported push mode: %s", mode)
	}
	if err != nil {
		sqlStore.Close()
		return nil, fmt.Errorf("failed to create push channel: %w", err)
	}

	return hybrid.New(sqlStore, push, log), nil
}

// createDefaultAdmin 创建默认管理员用户（仅用于开发测试）
func createDefaultAdmin(store backend.Store, log *zap.Logger) {
	email := "admin@tempmail.local"
	password := "Admin123456!"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 检查管理员是否已存在
	if _, err := store.GetUserByEmail(ctx, email); err == nil {
		log.Info("默认管理员用户已存在，跳过创建", zap.String("email", email))
		return
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		log.Error("无法哈希密码", zap.Error(err))
		return
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         domain.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := store.CreateUser(ctx, user); err != nil {
		log.Error("创建默认管理员失败", zap.Error(err))
		return
	}

	log.Warn("默认管理员用户已创建（仅用于开发环境）",
		zap.String("email", email),
		zap.String("password", password),
	)
}
