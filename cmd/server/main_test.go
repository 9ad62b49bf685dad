package main

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentipulse/sentipulse-go/internal/config"
)

func TestServerAddressFormat(t *testing.T) {
	cfg := config.ServerConfig{Port: 8080}
	assert.Equal(t, ":8080", fmt.Sprintf(":%d", cfg.Port))
}

func TestHTTPServerTimeouts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &http.Server{
		Addr:              ":0",
		Handler:           gin.New(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	assert.Equal(t, 10*time.Second, srv.ReadTimeout)
	assert.Equal(t, 30*time.Second, srv.WriteTimeout)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
}

func TestGracefulShutdownOfIdleServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &http.Server{Addr: ":0", Handler: gin.New()}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}
