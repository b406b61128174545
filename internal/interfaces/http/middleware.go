package http

import (
	"github.com/gin-gonic/gin"

	"github.com/fourvoice/billing-backend/internal/domain/entity"
	"github.com/fourvoice/billing-backend/internal/domain/workflow"
)

const actorContextKey = "actor"

// actorMiddleware resolves the acting user from request headers. Session auth
// sits in front of this service; the headers carry the already-authenticated
// identity. Unknown or missing roles default to employee, never admin.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := workflow.Role(c.GetHeader("X-User-Role"))
		if role != workflow.RoleAdmin && role != workflow.RoleEmployee {
			role = workflow.RoleEmployee
		}

		c.Set(actorContextKey, entity.Actor{
			ID:   c.GetHeader("X-User-ID"),
			Role: role,
		})
		c.Next()
	}
}

// currentActor returns the actor resolved by the middleware
func currentActor(c *gin.Context) entity.Actor {
	if v, ok := c.Get(actorContextKey); ok {
		if actor, ok := v.(entity.Actor); ok {
			return actor
		}
	}
	return entity.Actor{Role: workflow.RoleEmployee}
}
