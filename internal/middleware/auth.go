package middleware

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"pharmacy-service/internal/model"
	"pharmacy-service/internal/repository"
	"pharmacy-service/pkg/apperror"
	"pharmacy-service/pkg/jwtutil"
	"pharmacy-service/pkg/logger"
	"pharmacy-service/prometheus"
)

const claimsKey = "user"

// JWTAuthMiddleware validates the bearer access token, re-checks the account
// behind it and stores its claims
func JWTAuthMiddleware(jwtUtil *jwtutil.JWTUtil, users repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing authorization header")
				prometheus.RecordAuthError("missing_token")
				return apperror.Unauthorized("You are not authorized")
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				log.Warn("Invalid authorization header format")
				prometheus.RecordAuthError("invalid_auth_format")
				return apperror.Unauthorized("Invalid authorization format, expected Bearer token")
			}

			claims, err := jwtUtil.ValidateAccessToken(parts[1])
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return apperror.Unauthorized("Invalid or expired token")
			}

			user, err := users.FindByID(c.Request().Context(), claims.UserID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				log.Error("Failed to load token user", zap.Uint("user_id", claims.UserID), zap.Error(err))
				return err
			}
			if err != nil || user.IsDeleted {
				log.Warn("Token for missing or deleted user", zap.Uint("user_id", claims.UserID))
				prometheus.RecordAuthError("user_not_found")
				return apperror.Unauthorized("You are not authorized")
			}
			if user.IsBlocked || user.Status != model.UserStatusActive {
				log.Warn("Token for blocked account", zap.Uint("user_id", claims.UserID))
				prometheus.RecordAuthError("blocked")
				return apperror.Forbidden("Your account is blocked")
			}
			// The stored role wins over the one signed into the token.
			claims.Role = string(user.Role)

			c.Set(claimsKey, claims)
			log.Debug("JWT token validated successfully",
				zap.Uint("user_id", claims.UserID),
				zap.String("role", claims.Role))

			return next(c)
		}
	}
}

// RequireRoles admits only authenticated callers holding one of roles.
// It must run after JWTAuthMiddleware.
func RequireRoles(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := Claims(c)
			if !ok {
				return apperror.Unauthorized("You are not authorized")
			}
			for _, role := range roles {
				if claims.Role == string(role) {
					return next(c)
				}
			}
			logger.FromContext(c).Warn("Role not permitted",
				zap.Uint("user_id", claims.UserID),
				zap.String("role", claims.Role),
				zap.String("path", c.Path()))
			return apperror.Forbidden("You do not have permission to access this resource")
		}
	}
}

// Authorize chains token validation and the role gate
func Authorize(jwtUtil *jwtutil.JWTUtil, users repository.UserRepository, roles ...model.Role) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{JWTAuthMiddleware(jwtUtil, users), RequireRoles(roles...)}
}

// Claims returns the token claims stored by JWTAuthMiddleware
func Claims(c echo.Context) (*jwtutil.UserClaims, bool) {
	claims, ok := c.Get(claimsKey).(*jwtutil.UserClaims)
	return claims, ok
}

// UserID returns the authenticated user's id, or 0
func UserID(c echo.Context) uint {
	if claims, ok := Claims(c); ok {
		return claims.UserID
	}
	return 0
}
