package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"pharmacy-service/internal/middleware"
	"pharmacy-service/internal/repository"
	"pharmacy-service/internal/service"
	"pharmacy-service/pkg/logger"
	"pharmacy-service/pkg/query"
	"pharmacy-service/pkg/response"
)

// BlockUserRequest toggles a user's blocked flag
type BlockUserRequest struct {
	IsBlocked *bool `json:"is_blocked" validate:"required"`
}

type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Me returns the caller's profile
func (h *UserHandler) Me(c echo.Context) error {
	user, err := h.users.Me(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Profile retrieved successfully", user)
}

// List returns users matching the query string
func (h *UserHandler) List(c echo.Context) error {
	users, meta, err := h.users.List(c.Request().Context(), query.FromEcho(c, repository.UserFilterKeys()...))
	if err != nil {
		return err
	}
	return response.Paginated(c, "Users retrieved successfully", users, meta)
}

// Block blocks or unblocks a user
func (h *UserHandler) Block(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req BlockUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.users.SetBlocked(c.Request().Context(), id, *req.IsBlocked)
	if err != nil {
		return err
	}

	logger.FromContext(c).Info("User block status changed",
		zap.Uint("user_id", id),
		zap.Bool("is_blocked", user.IsBlocked))
	return response.JSON(c, http.StatusOK, "User status updated successfully", user)
}
