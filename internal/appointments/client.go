package appointments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/rehab-clinic-platform/internal/booking"
	"github.com/wolfman30/rehab-clinic-platform/pkg/logging"
)

const (
	defaultClientTimeout = 10 * time.Second
	appointmentsPath     = "/api/appointments"
)

// Client submits bookings to a remote appointments API. It implements
// booking.Gateway.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a client for the API rooted at baseURL. timeout <= 0 uses
// a 10s default.
func NewClient(baseURL string, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &Client{
		endpoint:   strings.TrimRight(strings.TrimSpace(baseURL), "/") + appointmentsPath,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

var _ booking.Gateway = (*Client)(nil)

// Submit posts the payload. Any reply carrying a {success, message} body
// below 500 is returned as a Result; transport failures, 5xx and unreadable
// replies are errors.
func (c *Client) Submit(ctx context.Context, p booking.Payload) (booking.Result, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return booking.Result{}, fmt.Errorf("appointments client: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return booking.Result{}, fmt.Errorf("appointments client: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return booking.Result{}, fmt.Errorf("appointments client: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return booking.Result{}, fmt.Errorf("appointments client: read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return booking.Result{}, fmt.Errorf("appointments client: status %d: %s", resp.StatusCode, truncate(string(respBody), 300))
	}

	var result booking.Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return booking.Result{}, fmt.Errorf("appointments client: status %d: unmarshal response: %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest && result.Success {
		result.Success = false
	}
	c.logger.Debug("appointment submitted to remote gateway", "status", resp.StatusCode, "success", result.Success)
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
