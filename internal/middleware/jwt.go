package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/almufid-api/internal/authz"
	"github.com/noah-isme/almufid-api/internal/models"
	"github.com/noah-isme/almufid-api/internal/service"
	appErrors "github.com/noah-isme/almufid-api/pkg/errors"
	"github.com/noah-isme/almufid-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// JWT protects routes by requiring a valid access token.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// Claims returns the JWT claims stored by the JWT middleware, or nil.
func Claims(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// Actor converts the stored claims into the principal the decision
// function evaluates. Returns nil for unauthenticated requests.
func Actor(c *gin.Context) *authz.Actor {
	claims := Claims(c)
	if claims == nil {
		return nil
	}
	return &authz.Actor{
		ID:             claims.UserID,
		Role:           claims.Role,
		ApprovalStatus: claims.ApprovalStatus,
	}
}
