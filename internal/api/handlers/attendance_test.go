package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/kiosk/internal/backend"
	"github.com/your-org/kiosk/internal/config"
	"github.com/your-org/kiosk/internal/models"
	"github.com/your-org/kiosk/internal/presence"
	"github.com/your-org/kiosk/internal/roster"
	"github.com/your-org/kiosk/pkg/dto"
)

type staticRoster []models.Identity

func (s staticRoster) FetchRoster(context.Context) ([]models.Identity, error) {
	return s, nil
}

func newTestRouter(t *testing.T, backendHandler http.HandlerFunc) (*gin.Engine, *presence.Table) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(backendHandler)
	t.Cleanup(srv.Close)

	client := backend.New(config.BackendConfig{URL: srv.URL, Timeout: 2 * time.Second})

	cache := roster.NewCache(staticRoster{{ID: 1, Name: "Arjun"}})
	require.NoError(t, cache.Refresh(context.Background()))

	table := presence.NewTable(presence.Config{
		DebounceWindow: time.Minute,
		Location:       time.UTC,
	})

	h := NewAttendanceHandler(table, cache, client, time.UTC)
	r := gin.New()
	r.GET("/v1/presence", h.Presence)
	r.GET("/v1/hours", h.Hours)
	return r, table
}

func TestPresenceEndpoint(t *testing.T) {
	router, table := newTestRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, ok := table.Observe(1, time.Now().UTC())
	require.True(t, ok)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/presence", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.PresenceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, int64(1), resp.Entries[0].IdentityID)
	assert.Equal(t, "Arjun", resp.Entries[0].Name)
	assert.Equal(t, "IN", resp.Entries[0].Status)
}

func TestHoursEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/report/2026-03-09", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"events":[
			{"identity_id":1,"name":"Arjun","timestamp":"2026-03-09T09:00:00Z","status":"IN"},
			{"identity_id":1,"name":"Arjun","timestamp":"2026-03-09T17:00:00Z","status":"OUT"}
		]}`))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/hours?date=2026-03-09", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.HoursResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2026-03-09", resp.Date)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, 8.0, resp.Entries[0].WorkedHours)
	assert.Equal(t, "OUT", resp.Entries[0].LastStatus)
}

func TestHoursEndpointRejectsBadDate(t *testing.T) {
	router, _ := newTestRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/hours?date=09-03-2026", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHoursEndpointBackendDown(t *testing.T) {
	router, _ := newTestRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/hours?date=2026-03-09", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
