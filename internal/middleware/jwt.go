package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-presence-api/internal/service"
	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
	"github.com/noah-isme/sma-presence-api/pkg/response"
)

// ContextClaimsKey is the gin context key storing the token claims.
const ContextClaimsKey = "gatewayClaims"

type tokenValidator interface {
	ValidateToken(token string) (*service.Claims, error)
}

// JWT protects routes by requiring a valid gateway access token.
func JWT(auth tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			return
		}

		claims, err := auth.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

// ClaimsFromContext returns the claims set by JWT, if any.
func ClaimsFromContext(c *gin.Context) *service.Claims {
	value, exists := c.Get(ContextClaimsKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*service.Claims)
	return claims
}
