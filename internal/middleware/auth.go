package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Scopes grantable to automation clients.
const (
	// ScopeBacktest allows submitting backtest runs.
	ScopeBacktest = "backtest"
	// ScopeAdmin allows the admin-gated maintenance endpoints.
	ScopeAdmin = "admin"
)

// ClientClaims carries the identity of an automation client. Tokens are
// minted by the auth endpoint after the caller proves possession of the
// admin key, so clients never hold a long-lived credential.
type ClientClaims struct {
	// ClientID names the automation client (e.g. "scheduler").
	ClientID string `json:"client_id"`
	// Scope is a space-separated list of granted scopes.
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// HasScope reports whether the claims grant the given scope.
func (cc *ClientClaims) HasScope(scope string) bool {
	for _, granted := range strings.Fields(cc.Scope) {
		if granted == scope {
			return true
		}
	}
	return false
}

// AuthMiddleware mints and validates automation-client JWTs.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(secretKey string) *AuthMiddleware {
	return &AuthMiddleware{
		secretKey: []byte(secretKey),
	}
}

// RequireAuth validates the Bearer token and stores the client identity
// on the request context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := am.authenticate(c)
		if !ok {
			return
		}
		c.Set("client_id", claims.ClientID)
		c.Set("client_scope", claims.Scope)
		c.Next()
	}
}

// RequireScope validates the Bearer token and additionally requires the
// given scope to have been granted at mint time.
func (am *AuthMiddleware) RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := am.authenticate(c)
		if !ok {
			return
		}
		if !claims.HasScope(scope) {
			c.JSON(http.StatusForbidden, gin.H{"error": fmt.Sprintf("token lacks %q scope", scope)})
			c.Abort()
			return
		}
		c.Set("client_id", claims.ClientID)
		c.Set("client_scope", claims.Scope)
		c.Next()
	}
}

// authenticate extracts and validates the Bearer token, writing the
// error response itself on failure.
func (am *AuthMiddleware) authenticate(c *gin.Context) (*ClientClaims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
		c.Abort()
		return nil, false
	}

	// Bearer prefix is case-insensitive per RFC 6750.
	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" || tokenParts[1] == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
		c.Abort()
		return nil, false
	}

	claims, err := am.ValidateToken(tokenParts[1])
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
		} else {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		}
		c.Abort()
		return nil, false
	}
	return claims, true
}

// GenerateToken mints a signed JWT for an automation client.
func (am *AuthMiddleware) GenerateToken(clientID, scope string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &ClientClaims{
		ClientID: clientID,
		Scope:    scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(am.secretKey)
}

// ValidateToken parses and validates a token, returning its claims.
func (am *AuthMiddleware) ValidateToken(tokenString string) (*ClientClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ClientClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return am.secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*ClientClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
