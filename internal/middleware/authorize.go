package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/almufid-api/internal/authz"
	"github.com/noah-isme/almufid-api/internal/models"
	appErrors "github.com/noah-isme/almufid-api/pkg/errors"
	"github.com/noah-isme/almufid-api/pkg/response"
)

// Authorize runs the access decision for the given action at the route
// boundary. Ownership-sensitive operations are re-checked inside the
// services once the record is loaded; this gate handles role and
// approval scoping.
func Authorize(action authz.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := Actor(c)
		if authz.Decide(actor, action, authz.Resource{}).Allowed() {
			c.Next()
			return
		}

		switch {
		case actor == nil:
			response.Error(c, appErrors.ErrUnauthorized)
		case actor.ApprovalStatus != models.ApprovalApproved:
			response.Error(c, appErrors.Clone(appErrors.ErrPendingApproval, "account is awaiting admin approval"))
		default:
			response.Error(c, appErrors.ErrForbidden)
		}
		c.Abort()
	}
}
