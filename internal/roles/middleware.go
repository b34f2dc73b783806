package roles

import (
	"net/http"

	"onevizn-platform/internal/authserver"

	"github.com/gin-gonic/gin"
)

// RequireMinRole gates a route on the same hierarchy predicate the admin
// shell uses client-side. The token middleware must run earlier in the
// chain so identity is present in context.
func RequireMinRole(minRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		held, err := authserver.HeldRoles(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "roles required"})
			return
		}

		if !HasMinRole(held, minRole) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
