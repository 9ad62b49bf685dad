package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AdminMiddleware gates mutating endpoints behind the admin key. Only a
// bcrypt hash of the key is configured; the plaintext never leaves the
// request. A JWT minted through the token endpoint is accepted as an
// alternative, since minting one already required the key.
type AdminMiddleware struct {
	keyHash []byte
	tokens  *AuthMiddleware
}

// NewAdminMiddleware creates an admin middleware from the configured
// bcrypt hash. An empty hash rejects every request.
func NewAdminMiddleware(adminKeyHash string) *AdminMiddleware {
	return &AdminMiddleware{keyHash: []byte(adminKeyHash)}
}

// NewAdminMiddlewareWithTokens additionally accepts Bearer JWTs issued
// by the given auth middleware.
func NewAdminMiddlewareWithTokens(adminKeyHash string, tokens *AuthMiddleware) *AdminMiddleware {
	return &AdminMiddleware{keyHash: []byte(adminKeyHash), tokens: tokens}
}

// RequireAdminAuth validates the admin key from the Authorization header
// or the X-Admin-Key header. The Authorization header may instead carry
// a valid JWT when token acceptance is configured.
func (am *AdminMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
				if am.ValidateAdminKey(parts[1]) {
					c.Next()
					return
				}
				if am.tokens != nil {
					if claims, err := am.tokens.ValidateToken(parts[1]); err == nil && claims.HasScope(ScopeAdmin) {
						c.Set("client_id", claims.ClientID)
						c.Next()
						return
					}
				}
			}
		}

		if key := c.GetHeader("X-Admin-Key"); key != "" && am.ValidateAdminKey(key) {
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "Unauthorized",
			"message": "Valid admin key required for this endpoint",
		})
		c.Abort()
	}
}

// ValidateAdminKey compares a candidate key against the configured hash.
func (am *AdminMiddleware) ValidateAdminKey(key string) bool {
	if len(am.keyHash) == 0 || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(am.keyHash, []byte(key)) == nil
}
