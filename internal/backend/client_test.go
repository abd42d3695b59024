package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/kiosk/internal/config"
	"github.com/your-org/kiosk/internal/models"
)

func newTestClient(url string) *Client {
	return New(config.BackendConfig{
		URL:     url,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	})
}

func TestFetchRoster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/roster", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"identities":[
			{"id":1,"name":"Arjun","embeddings":[[0.1,0.2]]},
			{"id":2,"name":"Bhavna","embeddings":[[0.3,0.4],[0.5,0.6]]}
		]}`))
	}))
	defer srv.Close()

	identities, err := newTestClient(srv.URL).FetchRoster(context.Background())
	require.NoError(t, err)
	require.Len(t, identities, 2)
	assert.Equal(t, int64(1), identities[0].ID)
	assert.Equal(t, "Arjun", identities[0].Name)
	require.Len(t, identities[1].Embeddings, 2)
	assert.Equal(t, []float32{0.5, 0.6}, identities[1].Embeddings[1])
}

func TestFetchRosterServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchRoster(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestFetchControl(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    models.ControlCommand
		wantErr bool
	}{
		{"run", `{"command":"run"}`, models.CommandRun, false},
		{"pause", `{"command":"pause"}`, models.CommandPause, false},
		{"shutdown", `{"command":"shutdown"}`, models.CommandShutdown, false},
		{"legacy stop maps to pause", `{"command":"stop"}`, models.CommandPause, false},
		{"unknown command", `{"command":"reboot"}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/kiosk/control", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			cmd, err := newTestClient(srv.URL).FetchControl(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestPostEvent(t *testing.T) {
	ev := models.AttendanceEvent{
		EventID:    uuid.New(),
		IdentityID: 7,
		Timestamp:  time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),
		Status:     models.StatusIn,
	}

	tests := []struct {
		name       string
		status     int
		wantErr    bool
		wantReject bool
	}{
		{"accepted", http.StatusCreated, false, false},
		{"duplicate is success", http.StatusConflict, false, false},
		{"server error is transient", http.StatusBadGateway, true, false},
		{"validation failure is rejected", http.StatusUnprocessableEntity, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/clock_event", r.URL.Path)
				assert.Equal(t, ev.IdempotencyKey(), r.Header.Get("Idempotency-Key"))
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := newTestClient(srv.URL).PostEvent(context.Background(), ev)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantReject, errors.Is(err, ErrRejected))
		})
	}
}

func TestFetchEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/report/2026-03-09", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"events":[
			{"identity_id":1,"name":"Arjun","timestamp":"2026-03-09T09:00:00+05:30","status":"IN"},
			{"identity_id":1,"name":"Arjun","timestamp":"2026-03-09T17:00:00+05:30","status":"OUT"}
		]}`))
	}))
	defer srv.Close()

	events, err := newTestClient(srv.URL).FetchEvents(context.Background(), "2026-03-09")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.StatusIn, events[0].Status)
	assert.Equal(t, models.StatusOut, events[1].Status)
	assert.Equal(t, 9, events[0].Timestamp.Hour())
}

func TestUnreachableBackend(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")

	_, err := c.FetchRoster(context.Background())
	assert.Error(t, err)
	_, err = c.FetchControl(context.Background())
	assert.Error(t, err)

	err = c.PostEvent(context.Background(), models.AttendanceEvent{EventID: uuid.New()})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRejected), "network failure must be transient")
}
