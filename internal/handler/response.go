package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/clinicops/clinic-api/internal/model"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// Error records err on the context for the error middleware to render.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// PermissionGuard produces middleware that gates a route on a
// (resource, action) pair from the permission matrix.
type PermissionGuard func(model.Resource, model.Action) gin.HandlerFunc

// ContextIdentity is the gin context key holding the authenticated caller.
const ContextIdentity = "identity"

// IdentityFromContext returns the identity set by the auth middleware.
func IdentityFromContext(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(ContextIdentity)
	if !ok {
		return model.Identity{}, false
	}
	identity, ok := v.(model.Identity)
	return identity, ok
}
