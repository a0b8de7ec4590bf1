// Package backend is the HTTP/JSON client for the remote clinic API that
// owns appointment persistence. It maps remote rejections onto the error
// taxonomy (ErrNotFound, ConflictError, TransportError) and never retries.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/odontoplus/scheduling/internal/appointment"
)

type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

type createRequest struct {
	appointment.Draft
	CreatedBy string `json:"created_by,omitempty"`
}

type actionRequest struct {
	ActingUser string `json:"acting_user"`
	Reason     string `json:"reason,omitempty"`
}

type availabilityResponse struct {
	Available bool `json:"available"`
}

func (c *Client) Create(ctx context.Context, draft appointment.Draft, createdBy string) (appointment.Appointment, error) {
	var out appointment.Appointment
	err := c.do(ctx, http.MethodPost, "/appointments", nil, createRequest{Draft: draft, CreatedBy: createdBy}, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, id string, draft appointment.Draft) (appointment.Appointment, error) {
	var out appointment.Appointment
	err := c.do(ctx, http.MethodPut, "/appointments/"+url.PathEscape(id), nil, draft, &out)
	return out, err
}

func (c *Client) FetchByID(ctx context.Context, id string) (appointment.Appointment, error) {
	var out appointment.Appointment
	err := c.do(ctx, http.MethodGet, "/appointments/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func (c *Client) ListByDentistAndDate(ctx context.Context, dentistID string, date appointment.Date) ([]appointment.Appointment, error) {
	q := url.Values{}
	q.Set("dentist_id", dentistID)
	q.Set("date", date.String())
	var out []appointment.Appointment
	err := c.do(ctx, http.MethodGet, "/appointments", q, nil, &out)
	return out, err
}

func (c *Client) ListByDateRange(ctx context.Context, from, to appointment.Date) ([]appointment.Appointment, error) {
	q := url.Values{}
	q.Set("start_date", from.String())
	q.Set("end_date", to.String())
	var out []appointment.Appointment
	err := c.do(ctx, http.MethodGet, "/appointments", q, nil, &out)
	return out, err
}

// CheckAvailability asks the remote API whether the slot is free. This is
// the authoritative check; the local one in internal/availability is the
// advisory pre-filter.
func (c *Client) CheckAvailability(ctx context.Context, dentistID string, date appointment.Date, start, end appointment.TimeOfDay) (bool, error) {
	q := url.Values{}
	q.Set("dentist_id", dentistID)
	q.Set("date", date.String())
	q.Set("start_time", start.String())
	q.Set("end_time", end.String())
	var out availabilityResponse
	if err := c.do(ctx, http.MethodGet, "/appointments/availability", q, nil, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

func (c *Client) Confirm(ctx context.Context, id, actingUser string) (appointment.Appointment, error) {
	return c.applyAction(ctx, id, "confirm", actionRequest{ActingUser: actingUser})
}

func (c *Client) Start(ctx context.Context, id, actingUser string) (appointment.Appointment, error) {
	return c.applyAction(ctx, id, "start", actionRequest{ActingUser: actingUser})
}

func (c *Client) Complete(ctx context.Context, id, actingUser string) (appointment.Appointment, error) {
	return c.applyAction(ctx, id, "complete", actionRequest{ActingUser: actingUser})
}

func (c *Client) MarkNoShow(ctx context.Context, id, actingUser string) (appointment.Appointment, error) {
	return c.applyAction(ctx, id, "no-show", actionRequest{ActingUser: actingUser})
}

func (c *Client) Cancel(ctx context.Context, id, reason, actingUser string) (appointment.Appointment, error) {
	return c.applyAction(ctx, id, "cancel", actionRequest{ActingUser: actingUser, Reason: reason})
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/appointments/"+url.PathEscape(id), nil, nil, nil)
}

// ReadyCheck probes the remote API for /readyz wiring.
func (c *Client) ReadyCheck() func(context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
		if err != nil {
			return err
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("clinic api unhealthy: status %d", resp.StatusCode)
		}
		return nil
	}
}

func (c *Client) applyAction(ctx context.Context, id, action string, body actionRequest) (appointment.Appointment, error) {
	var out appointment.Appointment
	err := c.do(ctx, http.MethodPost, "/appointments/"+url.PathEscape(id)+"/"+action, nil, body, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := method + " " + path

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: op, Err: err}
		}
		reqBody = bytes.NewReader(buf)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict, http.StatusUnprocessableEntity:
		ce := &ConflictError{}
		if err := json.Unmarshal(payload, ce); err != nil || ce.Message == "" {
			ce.Message = strings.TrimSpace(string(payload))
		}
		if ce.Message == "" {
			ce.Message = "rejected by clinic api"
		}
		return ce
	default:
		return &TransportError{Op: op, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))}
	}
}
