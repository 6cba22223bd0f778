// Package echomw binds formskema validation to echo handlers.
package echomw

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reoring/formskema"
	"github.com/reoring/formskema/middleware"
)

// ValidateForm parses the posted form and validates it with v. Invalid forms
// are answered with 422 and the field-error payload.
func ValidateForm(v formskema.Validator, cfg middleware.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			out, err := middleware.Check(c.Request(), v, cfg)
			if errors.Is(err, middleware.ErrBadRequest) {
				return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
			}
			if err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
			}
			if out.Payload != nil {
				return c.JSON(http.StatusUnprocessableEntity, out.Payload)
			}
			ctx := middleware.ContextWithResult(c.Request().Context(), out.Result)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// GetResult fetches the validated Result from echo.Context.
func GetResult(c echo.Context) (formskema.Result, bool) {
	return middleware.ResultFromContext(c.Request().Context())
}
