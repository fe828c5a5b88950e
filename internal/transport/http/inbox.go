package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/inbox"
	"tempmail/webclient/internal/middleware"
	"tempmail/webclient/internal/monitoring"
)

// InboxHandler 处理邮箱会话相关的 HTTP 请求。
//
// 所有操作都落在请求会话自己的协调器上，会话之间互不可见。
type InboxHandler struct {
	manager *inbox.Manager
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewInboxHandler 创建邮箱会话处理器
func NewInboxHandler(manager *inbox.Manager, metrics *monitoring.Metrics, log *zap.Logger) *InboxHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &InboxHandler{
		manager: manager,
		metrics: metrics,
		log:     log,
	}
}

func (h *InboxHandler) coordinator(c *gin.Context) *inbox.Coordinator {
	coord := h.manager.Get(middleware.SessionID(c))
	h.metrics.SessionsActive.Set(float64(h.manager.Len()))
	return coord
}

// inboxState 会话状态快照
type inboxState struct {
	Address  string      `json:"address"`
	History  []string    `json:"history"`
	Domains  interface{} `json:"domains"`
	Messages interface{} `json:"messages"`
}

// State 获取会话当前状态
// @Summary 获取邮箱会话状态
// @Description 返回活跃地址、历史地址、可用域名和邮件快照
// @Tags 邮箱
// @Produce json
// @Success 200 {object} Response "会话状态"
// @Router /v1/inbox [get]
func (h *InboxHandler) State(c *gin.Context) {
	coord := h.coordinator(c)
	Success(c, inboxState{
		Address:  coord.Address(),
		History:  coord.History(),
		Domains:  coord.Domains(),
		Messages: coord.Messages(),
	})
}

// Domains 查询可用域名
// @Summary 获取可用域名列表
// @Tags 邮箱
// @Produce json
// @Success 200 {object} Response "域名列表"
// @Router /v1/inbox/domains [get]
func (h *InboxHandler) Domains(c *gin.Context) {
	domains, err := h.coordinator(c).ListActiveDomains(c.Request.Context())
	if err != nil {
		// 协调器已发过通知，这里照常返回空列表让前端降级展示
		h.log.Warn("domain listing failed", zap.Error(err))
	}
	Success(c, domains)
}

// Generate 生成新的随机地址
// @Summary 生成随机邮箱地址
// @Description 随机选择域名和本地部分生成新地址，旧地址进入历史
// @Tags 邮箱
// @Produce json
// @Success 201 {object} Response "新地址"
// @Failure 422 {object} Response "暂无可用域名"
// @Router /v1/inbox/generate [post]
func (h *InboxHandler) Generate(c *gin.Context) {
	coord := h.coordinator(c)

	// 域名缓存为空时先拉一次再试
	if len(coord.Domains()) == 0 {
		if _, err := coord.ListActiveDomains(c.Request.Context()); err != nil {
			UnprocessableEntity(c, GetErrorMessage(inbox.ErrNoDomains))
			return
		}
	}

	address, err := coord.GenerateAddress()
	if err != nil {
		if errors.Is(err, inbox.ErrNoDomains) {
			UnprocessableEntity(c, GetErrorMessage(inbox.ErrNoDomains))
			return
		}
		h.log.Error("failed to generate address", zap.Error(err))
		InternalError(c, MsgGenerateFailed)
		return
	}

	if h.metrics != nil {
		h.metrics.AddressesGenerated.Inc()
	}
	Created(c, gin.H{"address": address, "history": coord.History()})
}

// Messages 拉取活跃地址的邮件列表
// @Summary 获取邮件列表
// @Description 返回活跃地址的全部邮件，按接收时间降序
// @Tags 邮箱
// @Produce json
// @Success 200 {object} Response "邮件列表"
// @Router /v1/inbox/messages [get]
func (h *InboxHandler) Messages(c *gin.Context) {
	messages := h.coordinator(c).RefreshMessages(c.Request.Context())
	if h.metrics != nil {
		h.metrics.RefreshesTotal.Inc()
	}
	Success(c, messages)
}

// MarkRead 标记邮件为已读
// @Summary 标记邮件已读
// @Tags 邮箱
// @Produce json
// @Param id path string true "邮件 ID"
// @Success 200 {object} Response "标记成功"
// @Failure 404 {object} Response "邮件不存在"
// @Router /v1/inbox/messages/{id}/read [post]
func (h *InboxHandler) MarkRead(c *gin.Context) {
	messageID := c.Param("id")

	err := h.coordinator(c).MarkMessageRead(c.Request.Context(), messageID)
	if err != nil {
		switch {
		case errors.Is(err, inbox.ErrNoActiveAddress):
			UnprocessableEntity(c, GetErrorMessage(inbox.ErrNoActiveAddress))
		case errors.Is(err, backend.ErrMessageNotFound):
			NotFound(c, "邮件不存在")
		default:
			h.log.Error("failed to mark message read",
				zap.String("message_id", messageID),
				zap.Error(err))
			InternalError(c, MsgMarkReadFailed)
		}
		return
	}
	Success(c, nil)
}

// Copy 复制活跃地址到剪贴板
// @Summary 复制邮箱地址
// @Description 通过实时通道驱动前端把活跃地址写入剪贴板
// @Tags 邮箱
// @Produce json
// @Success 200 {object} Response "复制指令已下发"
// @Router /v1/inbox/copy [post]
func (h *InboxHandler) Copy(c *gin.Context) {
	if err := h.coordinator(c).CopyAddress(); err != nil {
		h.log.Warn("failed to copy address", zap.Error(err))
		InternalError(c, "复制邮箱地址失败")
		return
	}
	Success(c, nil)
}
