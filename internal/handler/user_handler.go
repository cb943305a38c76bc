package handler

import (
	"github.com/go-orz/orz"
	"github.com/labstack/echo/v4"
	"github.com/vendops/vendwatch/internal/service"
	"go.uber.org/zap"
)

type UserHandler struct {
	logger      *zap.Logger
	userService *service.UserService
}

func NewUserHandler(logger *zap.Logger, userService *service.UserService) *UserHandler {
	return &UserHandler{
		logger:      logger,
		userService: userService,
	}
}

// Paging 用户分页查询
func (h *UserHandler) Paging(c echo.Context) error {
	name := c.QueryParam("name")

	pr := orz.GetPageRequest(c, "created_at", "name")

	builder := orz.NewPageBuilder(h.userService.UserRepo).
		PageRequest(pr).
		Contains("name", name)

	ctx := c.Request().Context()
	page, err := builder.Execute(ctx)
	if err != nil {
		return err
	}

	return orz.Ok(c, orz.Map{
		"items": page.Items,
		"total": page.Total,
	})
}

// Create 创建用户
func (h *UserHandler) Create(c echo.Context) error {
	var req service.UserRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.userService.CreateUser(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return orz.Ok(c, user)
}

// Update 更新用户
func (h *UserHandler) Update(c echo.Context) error {
	var req service.UserRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.userService.UpdateUser(c.Request().Context(), c.Param("id"), &req)
	if err != nil {
		return err
	}
	return orz.Ok(c, user)
}

// Delete 删除用户
func (h *UserHandler) Delete(c echo.Context) error {
	if err := h.userService.DeleteUser(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return orz.Ok(c, nil)
}
