package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"pharmacy-service/pkg/apperror"
)

// bindAndValidate binds the request body into req and runs its validate tags
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperror.BadRequest("Invalid request data")
	}
	return c.Validate(req)
}

// paramID parses a positive numeric path parameter
func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.BadRequest("Invalid %s", name)
	}
	return uint(id), nil
}

// queryInt returns the integer query parameter or 0 when absent or invalid
func queryInt(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return v
}
