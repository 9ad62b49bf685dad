package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/utils"
)

type stubSignals struct {
	latest   *models.Signal
	overview []models.Signal
	lastReq  models.SignalOverviewRequest
	written  int
	err      error
}

func (s *stubSignals) Latest(context.Context, string) (*models.Signal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.latest, nil
}

func (s *stubSignals) Overview(_ context.Context, _ string, req models.SignalOverviewRequest) ([]models.Signal, error) {
	s.lastReq = req
	return s.overview, s.err
}

func (s *stubSignals) Refresh(context.Context, string) (int, error) {
	return s.written, s.err
}

func signalRouter(h *SignalHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/signals/:symbol", h.GetOverview)
	router.GET("/signals/:symbol/latest", h.GetLatest)
	router.POST("/signals/:symbol/refresh", h.Refresh)
	return router
}

func TestSignalGetLatest(t *testing.T) {
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	stub := &stubSignals{latest: &models.Signal{
		Symbol:      "XAUUSD",
		Date:        date,
		Prediction:  models.DirectionBullish,
		Probability: decimal.RequireFromString("0.82"),
	}}
	router := signalRouter(NewSignalHandler(stub))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/signals/XAUUSD/latest", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var signal models.Signal
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signal))
	assert.Equal(t, models.DirectionBullish, signal.Prediction)
	assert.True(t, signal.Probability.Equal(decimal.RequireFromString("0.82")))
}

func TestSignalGetLatestNotFound(t *testing.T) {
	stub := &stubSignals{err: utils.NewNotFoundError("signal", "XAUUSD")}
	router := signalRouter(NewSignalHandler(stub))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/signals/XAUUSD/latest", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSignalOverviewParsesFilters(t *testing.T) {
	stub := &stubSignals{overview: []models.Signal{}}
	router := signalRouter(NewSignalHandler(stub))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/signals/XAUUSD?min_probability=0.75&since=2024-01-01&limit=5", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, stub.lastReq.MinProbability.Equal(decimal.RequireFromString("0.75")))
	require.NotNil(t, stub.lastReq.Since)
	assert.Equal(t, "2024-01-01", models.DayKey(*stub.lastReq.Since))
	assert.Equal(t, 5, stub.lastReq.Limit)
}

func TestSignalOverviewRejectsBadProbability(t *testing.T) {
	router := signalRouter(NewSignalHandler(&stubSignals{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/signals/XAUUSD?min_probability=high", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignalOverviewRejectsBadLimit(t *testing.T) {
	router := signalRouter(NewSignalHandler(&stubSignals{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/signals/XAUUSD?limit=-1", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignalRefresh(t *testing.T) {
	stub := &stubSignals{written: 42}
	router := signalRouter(NewSignalHandler(stub))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/signals/XAUUSD/refresh", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Signals int `json:"signals"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 42, resp.Signals)
}

func TestSignalRefreshMalformedSidecarPayloadIs422(t *testing.T) {
	stub := &stubSignals{err: utils.NewSchemaError("classifier", "probability")}
	router := signalRouter(NewSignalHandler(stub))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/signals/XAUUSD/refresh", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "probability")
}
