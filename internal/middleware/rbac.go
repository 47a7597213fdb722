package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicops/clinic-api/internal/handler"
	"github.com/clinicops/clinic-api/internal/model"
	"github.com/clinicops/clinic-api/internal/service/rbac"
	"github.com/clinicops/clinic-api/pkg/metrics"
)

type RBACMiddleware struct {
	rbacSvc *rbac.Service
	metrics *metrics.Metrics
}

func NewRBACMiddleware(rbacSvc *rbac.Service, metrics *metrics.Metrics) *RBACMiddleware {
	return &RBACMiddleware{
		rbacSvc: rbacSvc,
		metrics: metrics,
	}
}

// RequirePermission gates the route on the permission matrix. Denials
// carry no detail beyond "insufficient permission": a missing role and a
// missing permission are indistinguishable to the caller.
func (m *RBACMiddleware) RequirePermission(resource model.Resource, action model.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := handler.IdentityFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing identity"))
			c.Abort()
			return
		}

		m.metrics.AuthorizationChecks.WithLabelValues(string(resource), string(action)).Inc()

		allowed, err := m.rbacSvc.Allowed(c.Request.Context(), identity, resource, action)
		if err != nil {
			c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to check permission"))
			c.Abort()
			return
		}

		if !allowed {
			m.metrics.AuthorizationDenials.WithLabelValues(string(resource), string(action)).Inc()
			c.JSON(http.StatusForbidden, handler.NewErrorResponse("insufficient permission"))
			c.Abort()
			return
		}

		c.Next()
	}
}
