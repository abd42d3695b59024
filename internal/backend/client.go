package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/your-org/kiosk/internal/config"
	"github.com/your-org/kiosk/internal/models"
)

// ErrRejected marks a non-transient backend refusal (4xx other than 409).
// Callers must not retry such requests.
var ErrRejected = errors.New("backend rejected request")

// Client talks to the backend collaborator that owns the roster, the control
// command and the attendance event log. Every method treats network errors
// and 5xx responses as transient; retry cadence belongs to the caller.
type Client struct {
	http *resty.Client
}

func New(cfg config.BackendConfig) *Client {
	c := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.APIKey != "" {
		c.SetHeader("X-API-Key", cfg.APIKey)
	}

	return &Client{http: c}
}

type rosterResponse struct {
	Identities []models.Identity `json:"identities"`
}

// FetchRoster returns the current enrolled identities with their reference
// embeddings.
func (c *Client) FetchRoster(ctx context.Context) ([]models.Identity, error) {
	var out rosterResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/roster")
	if err != nil {
		return nil, fmt.Errorf("fetch roster: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch roster: status %d", resp.StatusCode())
	}
	return out.Identities, nil
}

type controlResponse struct {
	Command string `json:"command"`
}

// FetchControl returns the current kiosk control command.
func (c *Client) FetchControl(ctx context.Context) (models.ControlCommand, error) {
	var out controlResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/kiosk/control")
	if err != nil {
		return "", fmt.Errorf("fetch control: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("fetch control: status %d", resp.StatusCode())
	}

	switch models.ControlCommand(out.Command) {
	case models.CommandRun, models.CommandPause, models.CommandShutdown:
		return models.ControlCommand(out.Command), nil
	case "stop": // legacy alias
		return models.CommandPause, nil
	default:
		return "", fmt.Errorf("fetch control: unknown command %q", out.Command)
	}
}

// PostEvent reports one attendance event. The idempotency key makes duplicate
// submission of an already recorded event a no-op on the backend; a 409 from
// the backend therefore counts as success.
func (c *Client) PostEvent(ctx context.Context, ev models.AttendanceEvent) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", ev.IdempotencyKey()).
		SetBody(ev).
		Post("/api/clock_event")
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusConflict:
		return nil // already recorded
	case resp.StatusCode() >= 500:
		return fmt.Errorf("post event: status %d", resp.StatusCode())
	case resp.IsError():
		return fmt.Errorf("post event: status %d: %w", resp.StatusCode(), ErrRejected)
	}
	return nil
}

// EventRecord is one row of the stored event log as served by the backend.
type EventRecord struct {
	IdentityID int64              `json:"identity_id"`
	Name       string             `json:"name"`
	Timestamp  time.Time          `json:"timestamp"`
	Status     models.EventStatus `json:"status"`
}

type eventLogResponse struct {
	Events []EventRecord `json:"events"`
}

// FetchEvents returns the ordered event log for one calendar day
// (date formatted YYYY-MM-DD in the terminal's timezone).
func (c *Client) FetchEvents(ctx context.Context, date string) ([]EventRecord, error) {
	var out eventLogResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetPathParam("date", date).
		Get("/api/report/{date}")
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch events: status %d", resp.StatusCode())
	}
	return out.Events, nil
}
