package response

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"pharmacy-service/pkg/apperror"
	"pharmacy-service/pkg/logger"
)

// Envelope is the uniform body of every API response
type Envelope struct {
	StatusCode int         `json:"statusCode"`
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Meta       interface{} `json:"meta,omitempty"`
}

// JSON writes a successful envelope
func JSON(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Envelope{
		StatusCode: status,
		Success:    true,
		Message:    message,
		Data:       data,
	})
}

// Paginated writes a successful envelope with a pagination meta block
func Paginated(c echo.Context, message string, data interface{}, meta interface{}) error {
	return c.JSON(http.StatusOK, Envelope{
		StatusCode: http.StatusOK,
		Success:    true,
		Message:    message,
		Data:       data,
		Meta:       meta,
	})
}

// ErrorHandler renders every returned error as a failed envelope
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	log := logger.FromContext(c)

	status := http.StatusInternalServerError
	message := "Something went wrong"

	var appErr *apperror.Error
	var httpErr *echo.HTTPError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &appErr):
		status = appErr.StatusCode
		message = appErr.Message
	case errors.As(err, &validationErrs):
		status = http.StatusBadRequest
		message = validationMessage(validationErrs)
	case errors.As(err, &httpErr):
		status = httpErr.Code
		if m, ok := httpErr.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(status)
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error("Unhandled error", zap.Error(err))
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, Envelope{
			StatusCode: status,
			Success:    false,
			Message:    message,
		})
	}
	if writeErr != nil {
		log.Error("Failed to write error response", zap.Error(writeErr))
	}
}

func validationMessage(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "email":
			parts = append(parts, fe.Field()+" must be a valid email")
		case "oneof":
			parts = append(parts, fe.Field()+" must be one of ["+fe.Param()+"]")
		case "min", "gte":
			parts = append(parts, fe.Field()+" must be at least "+fe.Param())
		case "gt":
			parts = append(parts, fe.Field()+" must be greater than "+fe.Param())
		case "max", "lte":
			parts = append(parts, fe.Field()+" must be at most "+fe.Param())
		default:
			parts = append(parts, fe.Field()+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
