package handler

import (
	"github.com/gin-gonic/gin"

	"ai-platform-server/internal/middleware"
	"ai-platform-server/internal/service"
	"ai-platform-server/pkg/response"
)

// UserHandler 用户请求处理器
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler 创建 UserHandler 实例
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// GetProfile 获取当前用户信息
// @Summary 获取当前用户信息
// @Description 根据会话返回当前用户的公开信息
// @Tags 用户
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response{data=model.User}
// @Router /api/v1/users/me [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID := middleware.GetUserID(c)

	user, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		switch err {
		case service.ErrUserNotFound:
			response.UserNotFound(c)
		default:
			response.InternalError(c, "获取用户信息失败")
		}
		return
	}

	response.Success(c, user)
}
