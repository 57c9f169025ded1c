package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/policy"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

// RequireAction rejects the request early when the caller may never perform
// action, whatever the target. Ownership checks stay in the services.
func RequireAction(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if !policy.MayEver(actor, action) {
			response.Error(c, policy.Denied(action))
			return
		}
		c.Next()
	}
}
