package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/joseph-ayodele/ocr-relay/internal/common"
)

// TransportError is a non-2xx answer from the OCR service.
type TransportError struct {
	StatusCode int
	Body       []byte
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ocr service returned status %d", e.StatusCode)
}

// Client posts documents to the OCR service.
type Client struct {
	cfg    common.ServiceConfig
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg common.ServiceConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// Endpoint builds the request URL for job: the configured base URL plus the routing
// query parameters and the base64 label.
func (c *Client) Endpoint(job JobRequest) (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("action", c.cfg.Action)
	q.Set("channel", c.cfg.Channel)
	q.Set("content_encoding", c.cfg.ContentEncoding)
	q.Set("response_type", c.cfg.ResponseType)
	q.Set("response_target", c.cfg.CallbackURL)
	q.Set("service", c.cfg.Name)
	q.Set("file_name", job.EncodedLabel())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Send posts size bytes of PDF content for job and returns the acknowledgment body.
// Non-2xx answers return the body together with a *TransportError.
func (c *Client) Send(ctx context.Context, job JobRequest, body io.Reader, size int64) ([]byte, int, error) {
	endpoint, err := c.Endpoint(job)
	if err != nil {
		return nil, 0, err
	}

	ctx, cancel := common.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		c.logger.Error("dispatch.http.build_request_error", "dispatch_id", job.DispatchID, "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set(c.cfg.APIKeyHeader, c.cfg.APIKey)
	if c.cfg.TargetHeader != "" {
		req.Header.Set(c.cfg.TargetHeaderKey, c.cfg.TargetHeader)
	}

	start := time.Now()
	c.logger.Info("dispatch.http.request",
		"dispatch_id", job.DispatchID,
		"label", job.Label(),
		"encoded_label", job.EncodedLabel(),
		"content_length", size,
	)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("dispatch.http.send_error", "dispatch_id", job.DispatchID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("dispatch.http.response_body_close_error", "dispatch_id", job.DispatchID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	c.logger.Info("dispatch.http.response",
		"dispatch_id", job.DispatchID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, &TransportError{StatusCode: resp.StatusCode, Body: raw}
	}
	return raw, resp.StatusCode, nil
}
