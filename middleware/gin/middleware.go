// Package ginmw binds formskema validation to gin handlers.
package ginmw

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reoring/formskema"
	"github.com/reoring/formskema/middleware"
)

// ValidateForm parses the posted form and validates it with v. Invalid forms
// abort with 422 and the field-error payload; on success the Result is stored
// in the request context.
func ValidateForm(v formskema.Validator, cfg middleware.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := middleware.Check(c.Request, v, cfg)
		if err != nil {
			status := http.StatusServiceUnavailable
			if errors.Is(err, middleware.ErrBadRequest) {
				status = http.StatusBadRequest
			}
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
			return
		}
		if out.Payload != nil {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, out.Payload)
			return
		}
		c.Request = c.Request.WithContext(middleware.ContextWithResult(c.Request.Context(), out.Result))
		c.Next()
	}
}

// GetResult fetches the validated Result from gin.Context.
func GetResult(c *gin.Context) (formskema.Result, bool) {
	return middleware.ResultFromContext(c.Request.Context())
}
