package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"pharmacy-service/internal/middleware"
	"pharmacy-service/internal/service"
	"pharmacy-service/pkg/apperror"
	"pharmacy-service/pkg/logger"
	"pharmacy-service/pkg/response"
)

const refreshCookieName = "refreshToken"

// LoginRequest defines the structure for login requests
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest defines the structure for registration requests
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// RefreshRequest carries a refresh token in the body when no cookie is sent
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest defines the structure for password change requests
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// AuthHandler serves the /auth routes
type AuthHandler struct {
	auth          *service.AuthService
	secureCookie  bool
	refreshMaxAge time.Duration
}

func NewAuthHandler(auth *service.AuthService, secureCookie bool, refreshMaxAge time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, secureCookie: secureCookie, refreshMaxAge: refreshMaxAge}
}

// Login authenticates a user and returns the access token
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromContext(c)

	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.setRefreshCookie(c, result.RefreshToken, h.refreshMaxAge)
	log.Info("User logged in", zap.Uint("user_id", result.User.ID))
	return response.JSON(c, http.StatusOK, "User logged in successfully", result)
}

// Register creates a customer account and logs it in
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.auth.Register(c.Request().Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	h.setRefreshCookie(c, result.RefreshToken, h.refreshMaxAge)
	return response.JSON(c, http.StatusCreated, "User registered successfully", result)
}

// Logout clears the refresh cookie
func (h *AuthHandler) Logout(c echo.Context) error {
	h.setRefreshCookie(c, "", -1)
	return response.JSON(c, http.StatusOK, "User logged out successfully", nil)
}

// RefreshToken issues a new access token from the cookie or body refresh token
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	token := ""
	if cookie, err := c.Cookie(refreshCookieName); err == nil {
		token = cookie.Value
	}
	if token == "" {
		var req RefreshRequest
		if err := c.Bind(&req); err == nil {
			token = req.RefreshToken
		}
	}

	accessToken, err := h.auth.Refresh(c.Request().Context(), token)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Access token retrieved successfully", echo.Map{
		"accessToken": accessToken,
	})
}

// ChangePassword replaces the caller's password
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == 0 {
		return apperror.Unauthorized("You are not authorized")
	}

	var req ChangePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.auth.ChangePassword(c.Request().Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Password changed successfully", nil)
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, value string, maxAge time.Duration) {
	cookie := &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
	} else {
		cookie.MaxAge = int(maxAge.Seconds())
	}
	c.SetCookie(cookie)
}
