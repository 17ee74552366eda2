package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/permissions"
	"github.com/sitework/sitework/pkg/logger"
	"github.com/sitework/sitework/pkg/metrics"
	"github.com/sitework/sitework/pkg/response"
)

// RequirePermission aborts with 403 unless the caller's role grants perm. It
// runs before any handler reads the request body.
func RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := CurrentProfile(c)
		if p == nil {
			response.Abort(c, apperr.KindUnauthorized, "authentication required")
			return
		}
		if !permissions.Can(p.Role, perm) {
			metrics.PermissionDenied.WithLabelValues(perm).Inc()
			logger.With(logger.Fields{"user": p.ID, "role": p.Role, "permission": perm}).Infof("permission denied")
			response.Abort(c, apperr.KindForbidden, "insufficient permissions")
			return
		}
		c.Next()
	}
}
