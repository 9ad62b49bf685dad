package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentipulse/sentipulse-go/internal/middleware"
)

// AuthHandler mints short-lived JWTs for automation clients. The caller
// proves possession of the admin key; only its bcrypt hash is stored.
type AuthHandler struct {
	auth   *middleware.AuthMiddleware
	admin  *middleware.AdminMiddleware
	expiry time.Duration
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(auth *middleware.AuthMiddleware, admin *middleware.AdminMiddleware, expiry time.Duration) *AuthHandler {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &AuthHandler{auth: auth, admin: admin, expiry: expiry}
}

type mintTokenRequest struct {
	AdminKey string `json:"admin_key" binding:"required"`
	Subject  string `json:"subject"`
	Scope    string `json:"scope"`
}

// MintToken serves POST /api/v1/auth/token.
func (h *AuthHandler) MintToken(c *gin.Context) {
	var req mintTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if !h.admin.ValidateAdminKey(req.AdminKey) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
		return
	}

	subject := req.Subject
	if subject == "" {
		subject = "automation"
	}
	scope := req.Scope
	if scope == "" {
		scope = middleware.ScopeBacktest
	}

	token, err := h.auth.GenerateToken(subject, scope, h.expiry)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mint token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"scope":      scope,
		"expires_in": int(h.expiry.Seconds()),
	})
}
