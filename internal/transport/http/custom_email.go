package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/domain"
	"tempmail/webclient/internal/inbox"
	"tempmail/webclient/internal/middleware"
	"tempmail/webclient/internal/monitoring"
	"tempmail/webclient/internal/registrar"
)

// CustomEmailHandler 处理自定义地址登记请求
type CustomEmailHandler struct {
	registrar *registrar.Service
	manager   *inbox.Manager
	metrics   *monitoring.Metrics
	log       *zap.Logger
}

// NewCustomEmailHandler 创建自定义地址处理器
func NewCustomEmailHandler(reg *registrar.Service, manager *inbox.Manager, metrics *monitoring.Metrics, log *zap.Logger) *CustomEmailHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CustomEmailHandler{
		registrar: reg,
		manager:   manager,
		metrics:   metrics,
		log:       log,
	}
}

type customEmailRequest struct {
	Username string `json:"username"`
	Domain   string `json:"domain" binding:"required"`
}

// Register 登记自定义地址并设为会话的活跃地址
// @Summary 创建自定义邮箱
// @Description 校验并登记自定义地址，成功后立即切换为活跃地址
// @Tags 自定义邮箱
// @Accept json
// @Produce json
// @Param request body customEmailRequest true "自定义地址"
// @Success 201 {object} Response "创建成功"
// @Failure 400 {object} Response "参数校验失败"
// @Failure 401 {object} Response "未登录或登录已过期"
// @Failure 409 {object} Response "地址已被占用"
// @Failure 500 {object} Response "后端写入失败"
// @Router /v1/custom-emails [post]
func (h *CustomEmailHandler) Register(c *gin.Context) {
	var req customEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	// 登录是可选中间件，未登录时 userID 为空串，由登记服务拒绝
	userID := c.GetString("userID")

	address, err := h.registrar.Register(c.Request.Context(), req.Username, req.Domain, userID)
	if err != nil {
		h.reject(c, err)
		return
	}

	// 登记成功的地址接管当前会话
	h.manager.Get(middleware.SessionID(c)).SetAddress(address)

	if h.metrics != nil {
		h.metrics.CustomAddressesRegistered.Inc()
	}
	Created(c, gin.H{"address": address})
}

func (h *CustomEmailHandler) reject(c *gin.Context, err error) {
	reason := "persistence"
	defer func() {
		if h.metrics != nil {
			h.metrics.CustomAddressRejections.WithLabelValues(reason).Inc()
		}
	}()

	switch {
	case errors.Is(err, registrar.ErrUsernameRequired):
		reason = "validation"
		BadRequest(c, GetErrorMessage(registrar.ErrUsernameRequired))
	case errors.Is(err, domain.ErrInvalidLocalPart),
		errors.Is(err, domain.ErrLocalPartTooLong),
		errors.Is(err, domain.ErrInvalidDomain):
		reason = "validation"
		BadRequest(c, GetErrorMessage(err))
	case errors.Is(err, registrar.ErrAuthRequired):
		reason = "auth"
		Unauthorized(c, GetErrorMessage(registrar.ErrAuthRequired))
	case errors.Is(err, registrar.ErrAuthExpired):
		reason = "auth"
		Unauthorized(c, GetErrorMessage(registrar.ErrAuthExpired))
	case errors.Is(err, backend.ErrAddressExists):
		reason = "conflict"
		Conflict(c, GetErrorMessage(backend.ErrAddressExists))
	default:
		h.log.Error("custom address registration failed", zap.Error(err))
		InternalError(c, GetErrorMessage(registrar.ErrPersistence))
	}
}
