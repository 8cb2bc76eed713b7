package flowise

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"folio/pkg/config"
	"folio/pkg/logging"
	"folio/pkg/version"
)

const (
	predictionPath = "api/v1/prediction"

	// maxDocumentBytes caps a buffered (non-streaming) prediction body.
	maxDocumentBytes = 4 << 20
	// maxLogPreview caps how much of an unexpected body is logged.
	maxLogPreview = 512
)

// Client calls the Flowise prediction endpoint of one chatflow.
type Client struct {
	endpoint   string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its own Timeout should be zero;
// the prediction timeout is applied per call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout overrides how long a call waits for response headers.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for request lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type predictionRequest struct {
	Question string `json:"question"`
}

// New creates a client from the flowise section of the config.
func New(cfg config.FlowiseConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIHost) == "" {
		return nil, fmt.Errorf("flowise api_host is required")
	}
	if strings.TrimSpace(cfg.ChatflowID) == "" {
		return nil, fmt.Errorf("flowise chatflow_id is required")
	}

	endpoint, err := PredictionURL(cfg.APIHost, cfg.ChatflowID)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = config.DefaultTimeoutSeconds * time.Second
	}

	c := &Client{
		endpoint:   endpoint,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		timeout:    timeout,
		httpClient: &http.Client{},
		userAgent:  "folio/" + version.Summary(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PredictionURL builds {host}/api/v1/prediction/{chatflowID}.
func PredictionURL(host, chatflowID string) (string, error) {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	u, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("invalid flowise api_host %q: %w", host, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid flowise api_host %q: scheme must be http or https", host)
	}
	return u.JoinPath(predictionPath, strings.TrimSpace(chatflowID)).String(), nil
}

// Endpoint returns the prediction URL the client posts to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Timeout returns how long a call may wait for response headers.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Predict sends one question and returns the answer.
//
// Event-stream responses publish the growing answer through onPartial as
// tokens arrive; buffered JSON responses never call it. The returned error
// is ErrTimeout, ErrEmptyResponse, a *StatusError, an ErrTransport wrap, or
// a cancellation (see IsCanceled).
func (c *Client) Predict(ctx context.Context, question string, onPartial func(string)) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	payload, err := json.Marshal(predictionRequest{Question: question})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	if c.logger.Enabled(ctx, logging.LevelTrace) {
		c.logger.Log(ctx, logging.LevelTrace, "flowise_request_body", "body", string(payload))
	}
	c.logger.Debug("flowise_request_start",
		"endpoint", c.endpoint,
		"question_length", len(question),
		"authenticated", c.apiKey != "",
		"timeout", c.timeout,
	)

	// The timeout only covers the wait for response headers. A reply that
	// has started streaming is read for as long as it keeps coming.
	start := time.Now()
	timer := time.AfterFunc(c.timeout, func() { cancel(ErrTimeout) })
	resp, err := c.httpClient.Do(req)
	headersInTime := timer.Stop()
	if err != nil {
		err = classify(ctx, err)
		c.logFailure(err, start)
		return "", err
	}
	defer resp.Body.Close()
	if !headersInTime {
		c.logFailure(ErrTimeout, start)
		return "", ErrTimeout
	}

	contentType := resp.Header.Get("Content-Type")
	c.logger.Debug("flowise_response",
		"status", resp.StatusCode,
		"content_type", contentType,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDocumentBytes))
		err := &StatusError{Code: resp.StatusCode, Status: resp.Status}
		c.logFailure(err, start)
		return "", err
	}

	var answer string
	if IsEventStream(contentType) {
		answer, err = c.readStream(ctx, resp.Body, onPartial)
	} else {
		answer, err = c.readDocument(ctx, resp.Body)
	}
	if err != nil {
		c.logFailure(err, start)
		return "", err
	}

	c.logger.Info("flowise_prediction_done",
		"streamed", IsEventStream(contentType),
		"answer_length", len(answer),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return answer, nil
}

func (c *Client) readStream(ctx context.Context, body io.Reader, onPartial func(string)) (string, error) {
	dec := NewStreamDecoder(onPartial)
	answer, err := DecodeStream(body, dec)
	if err != nil && !errors.Is(err, ErrEmptyResponse) {
		return "", classify(ctx, err)
	}
	c.logger.Debug("flowise_stream_done", "frames", dec.Frames(), "done_sentinel", dec.Done())
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (c *Client) readDocument(ctx context.Context, body io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxDocumentBytes))
	if err != nil {
		return "", classify(ctx, err)
	}
	if c.logger.Enabled(ctx, logging.LevelTrace) {
		c.logger.Log(ctx, logging.LevelTrace, "flowise_response_body", "body", string(data))
	}

	answer, err := ExtractAnswer(data)
	if err != nil {
		preview := string(data)
		if len(preview) > maxLogPreview {
			preview = preview[:maxLogPreview]
		}
		c.logger.Warn("flowise_unexpected_response_shape", "body_preview", preview)
		return "", err
	}
	return answer, nil
}

func (c *Client) logFailure(err error, start time.Time) {
	if IsCanceled(err) {
		c.logger.Debug("flowise_prediction_canceled", "duration_ms", time.Since(start).Milliseconds())
		return
	}
	c.logger.Error("flowise_prediction_failed",
		"error", err,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
