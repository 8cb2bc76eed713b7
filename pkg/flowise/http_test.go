package flowise

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"folio/pkg/config"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(rt roundTripperFunc) *http.Client {
	return &http.Client{Transport: rt}
}

func newHTTPResponse(req *http.Request, status int, contentType string, body []byte) *http.Response {
	return newStreamResponse(req, status, contentType, io.NopCloser(bytes.NewReader(body)))
}

func newStreamResponse(req *http.Request, status int, contentType string, body io.ReadCloser) *http.Response {
	resp := &http.Response{
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode: status,
		Header:     make(http.Header),
		Body:       body,
		Request:    req,
	}
	if contentType != "" {
		resp.Header.Set("Content-Type", contentType)
	}
	return resp
}

func newJSONResponse(t *testing.T, req *http.Request, status int, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return newHTTPResponse(req, status, "application/json", data)
}

// chunkReader hands out its chunks one Read at a time, waiting delay
// before each.
type chunkReader struct {
	chunks []string
	delay  time.Duration
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func (r *chunkReader) Close() error { return nil }

// stallingBody serves its prefix and then blocks until ctx is done.
type stallingBody struct {
	ctx    context.Context
	prefix *bytes.Reader
}

func (b *stallingBody) Read(p []byte) (int, error) {
	if b.prefix.Len() > 0 {
		return b.prefix.Read(p)
	}
	<-b.ctx.Done()
	return 0, b.ctx.Err()
}

func (b *stallingBody) Close() error { return nil }

func testFlowiseConfig() config.FlowiseConfig {
	return config.FlowiseConfig{
		APIHost:        "https://flowise.example.com",
		ChatflowID:     "flow-123",
		TimeoutSeconds: 30,
	}
}

func newFlowiseClient(t *testing.T, rt roundTripperFunc, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHTTPClient(newTestClient(rt))}, opts...)
	c, err := New(testFlowiseConfig(), opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}
