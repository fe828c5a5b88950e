package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/domain"
	"tempmail/webclient/internal/filters"
	"tempmail/webclient/internal/monitoring"
)

// FiltersHandler 处理管理端过滤规则请求。
//
// 路由都挂在 RequireAdmin 之后，处理器只关心业务错误。
type FiltersHandler struct {
	filters *filters.Service
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewFiltersHandler 创建过滤规则处理器
func NewFiltersHandler(svc *filters.Service, metrics *monitoring.Metrics, log *zap.Logger) *FiltersHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &FiltersHandler{
		filters: svc,
		metrics: metrics,
		log:     log,
	}
}

type createFilterRequest struct {
	FilterType string `json:"filterType" binding:"required"`
	Pattern    string `json:"pattern" binding:"required"`
}

type toggleFilterRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// List 获取全部过滤规则
// @Summary 获取过滤规则列表
// @Tags 过滤规则
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "规则列表"
// @Router /v1/admin/filters [get]
func (h *FiltersHandler) List(c *gin.Context) {
	list, err := h.filters.List(c.Request.Context())
	if err != nil {
		InternalError(c, MsgFilterListFailed)
		return
	}
	Success(c, list)
}

// Create 新增过滤规则
// @Summary 创建过滤规则
// @Tags 过滤规则
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createFilterRequest true "过滤规则"
// @Success 201 {object} Response "创建后的完整列表"
// @Failure 400 {object} Response "参数错误"
// @Router /v1/admin/filters [post]
func (h *FiltersHandler) Create(c *gin.Context) {
	var req createFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	filter := &domain.Filter{
		ID:         uuid.New().String(),
		FilterType: domain.FilterType(req.FilterType),
		Pattern:    req.Pattern,
		IsActive:   true,
		CreatedBy:  c.GetString("userID"),
	}

	list, err := h.filters.Create(c.Request.Context(), filter)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidFilterType), errors.Is(err, domain.ErrEmptyPattern):
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to create filter", zap.Error(err))
			InternalError(c, MsgFilterCreateFailed)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.FilterOperations.WithLabelValues("create").Inc()
	}
	Created(c, list)
}

// Toggle 切换过滤规则启用状态
// @Summary 切换过滤规则状态
// @Tags 过滤规则
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "规则 ID"
// @Param request body toggleFilterRequest true "目标状态"
// @Success 200 {object} Response "变更后的完整列表"
// @Failure 404 {object} Response "规则不存在"
// @Router /v1/admin/filters/{id} [patch]
func (h *FiltersHandler) Toggle(c *gin.Context) {
	var req toggleFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	list, err := h.filters.Toggle(c.Request.Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		if errors.Is(err, backend.ErrFilterNotFound) {
			NotFound(c, GetErrorMessage(backend.ErrFilterNotFound))
			return
		}
		h.log.Error("failed to toggle filter",
			zap.String("filter_id", c.Param("id")),
			zap.Error(err))
		InternalError(c, MsgFilterToggleFailed)
		return
	}

	if h.metrics != nil {
		h.metrics.FilterOperations.WithLabelValues("toggle").Inc()
	}
	Success(c, list)
}

// Delete 删除过滤规则
// @Summary 删除过滤规则
// @Tags 过滤规则
// @Produce json
// @Security BearerAuth
// @Param id path string true "规则 ID"
// @Success 200 {object} Response "变更后的完整列表"
// @Failure 404 {object} Response "规则不存在"
// @Router /v1/admin/filters/{id} [delete]
func (h *FiltersHandler) Delete(c *gin.Context) {
	list, err := h.filters.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, backend.ErrFilterNotFound) {
			NotFound(c, GetErrorMessage(backend.ErrFilterNotFound))
			return
		}
		h.log.Error("failed to delete filter",
			zap.String("filter_id", c.Param("id")),
			zap.Error(err))
		InternalError(c, MsgFilterDeleteFailed)
		return
	}

	if h.metrics != nil {
		h.metrics.FilterOperations.WithLabelValues("delete").Inc()
	}
	Success(c, list)
}
