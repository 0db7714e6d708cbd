package handler

import (
	"github.com/gin-gonic/gin"

	"ai-platform-server/internal/middleware"
	"ai-platform-server/internal/service"
	"ai-platform-server/pkg/response"
)

// ConversationHandler 对话管理请求处理器
// 所有接口都要求认证，操作范围限定在当前用户的对话
type ConversationHandler struct {
	convService *service.ConversationService
}

// NewConversationHandler 创建 ConversationHandler 实例
func NewConversationHandler(convService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{
		convService: convService,
	}
}

// Create 创建新对话
// @Summary 创建新对话
// @Tags 对话
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body service.CreateConversationRequest true "创建信息"
// @Success 201 {object} response.Response{data=model.Conversation}
// @Router /api/v1/conversations [post]
func (h *ConversationHandler) Create(c *gin.Context) {
	var req service.CreateConversationRequest
	// 允许空请求体，标题缺省使用默认值
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	conv, err := h.convService.Create(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.InternalError(c, "创建对话失败")
		return
	}

	response.Created(c, conv)
}

// List 获取对话列表
// @Summary 获取对话列表
// @Description 按最后更新时间倒序，附带最新一条消息作为预览
// @Tags 对话
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response{data=[]service.ConversationSummary}
// @Router /api/v1/conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	summaries, err := h.convService.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.InternalError(c, "获取对话列表失败")
		return
	}

	response.Success(c, summaries)
}

// Get 获取对话详情
// @Summary 获取对话详情
// @Description 返回对话及其全部消息（按时间正序）
// @Tags 对话
// @Security Bearer
// @Produce json
// @Param id path string true "对话ID"
// @Success 200 {object} response.Response{data=model.Conversation}
// @Router /api/v1/conversations/{id} [get]
func (h *ConversationHandler) Get(c *gin.Context) {
	conv, err := h.convService.Get(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		switch err {
		case service.ErrConversationNotFound:
			response.ConversationNotFound(c)
		default:
			response.InternalError(c, "获取对话失败")
		}
		return
	}

	response.Success(c, conv)
}

// UpdateTitle 更新对话标题
// @Summary 更新对话标题
// @Tags 对话
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path string true "对话ID"
// @Param body body service.UpdateTitleRequest true "新标题"
// @Success 200 {object} response.Response{data=model.Conversation}
// @Router /api/v1/conversations/{id} [patch]
func (h *ConversationHandler) UpdateTitle(c *gin.Context) {
	var req service.UpdateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	conv, err := h.convService.UpdateTitle(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), &req)
	if err != nil {
		switch err {
		case service.ErrConversationNotFound:
			response.ConversationNotFound(c)
		default:
			response.InternalError(c, "更新对话失败")
		}
		return
	}

	response.Success(c, conv)
}

// Delete 删除对话
// @Summary 删除对话
// @Description 删除对话及其全部消息
// @Tags 对话
// @Security Bearer
// @Produce json
// @Param id path string true "对话ID"
// @Success 200 {object} response.Response
// @Router /api/v1/conversations/{id} [delete]
func (h *ConversationHandler) Delete(c *gin.Context) {
	err := h.convService.Delete(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		switch err {
		case service.ErrConversationNotFound:
			response.ConversationNotFound(c)
		default:
			response.InternalError(c, "删除对话失败")
		}
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}
