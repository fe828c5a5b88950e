// Package health 提供后端数据服务的健康检查端点。
package health

import (
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"tempmail/webclient/internal/backend"
)

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	store  backend.Store
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store backend.Store, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		logger: logger,
	}

	// 后端连通性决定存活状态：后端不可用时实例应被摘除，
	// 轮询和推送都已经失效
	hc.health.AddLivenessCheck("backend", func() error {
		return hc.store.Health()
	})
	hc.health.AddReadinessCheck("backend", func() error {
		return hc.store.Health()
	})

	return hc
}

// Handler 返回健康检查处理器
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// CheckHealth 执行健康检查并返回各组件状态
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if err := hc.store.Health(); err != nil {
		results["backend"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["backend"] = "OK"
	}
	results["timestamp"] = time.Now().Format(time.RFC3339)

	return results
}
