package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region http
const (
	// DecisionPath is where the telemetry backend accepts decision records.
	DecisionPath = "/api/v1/telemetry/decision"
	// DefaultHTTPTimeout bounds one POST to the telemetry backend.
	DefaultHTTPTimeout = 100 * time.Millisecond
)

// HTTPReporter POSTs each decision record as JSON to a telemetry backend.
type HTTPReporter struct {
	url    string
	client *http.Client
}

// NewHTTPReporter targets endpoint (e.g. "http://localhost:8000").
// A nil client gets one with DefaultHTTPTimeout.
func NewHTTPReporter(endpoint string, client *http.Client) *HTTPReporter {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &HTTPReporter{
		url:    strings.TrimRight(endpoint, "/") + DecisionPath,
		client: client,
	}
}

// Name identifies the sink in diagnostics.
func (h *HTTPReporter) Name() string { return "http" }

// Report sends the record and treats any non-2xx status as a failure.
func (h *HTTPReporter) Report(ctx context.Context, r supervisor.Report) error {
	body, err := NewRecord(r).Marshal()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telemetry request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post telemetry: %w", err)
	}
	defer resp.Body.Close()
	io.CopyN(io.Discard, resp.Body, 512)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post telemetry: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// #endregion http
