package flowise

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"folio/pkg/config"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.FlowiseConfig
	}{
		{"missing host", config.FlowiseConfig{ChatflowID: "abc"}},
		{"missing chatflow", config.FlowiseConfig{APIHost: "https://flowise.example.com"}},
		{"bad scheme", config.FlowiseConfig{APIHost: "ftp://flowise.example.com", ChatflowID: "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Fatal("Expected error, got nil")
			}
		})
	}
}

func TestNew_DefaultTimeout(t *testing.T) {
	cfg := testFlowiseConfig()
	cfg.TimeoutSeconds = 0

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if c.Timeout() != 30*time.Second {
		t.Errorf("Expected 30s default timeout, got %s", c.Timeout())
	}
	if want := "https://flowise.example.com/api/v1/prediction/flow-123"; c.Endpoint() != want {
		t.Errorf("Expected endpoint %q, got %q", want, c.Endpoint())
	}
}

func TestPredictionURL(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"https://flowise.example.com", "https://flowise.example.com/api/v1/prediction/flow-1"},
		{"https://flowise.example.com/", "https://flowise.example.com/api/v1/prediction/flow-1"},
		{" http://localhost:3000// ", "http://localhost:3000/api/v1/prediction/flow-1"},
		{"https://example.com/flowise", "https://example.com/flowise/api/v1/prediction/flow-1"},
	}

	for _, tt := range tests {
		got, err := PredictionURL(tt.host, "flow-1")
		if err != nil {
			t.Fatalf("PredictionURL(%q) error: %v", tt.host, err)
		}
		if got != tt.want {
			t.Errorf("PredictionURL(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestPredict_RequestShape(t *testing.T) {
	var gotReq *http.Request
	var gotBody map[string]any

	cfg := testFlowiseConfig()
	cfg.APIKey = "secret-key"
	c, err := New(cfg, WithHTTPClient(newTestClient(func(req *http.Request) (*http.Response, error) {
		gotReq = req
		data, _ := io.ReadAll(req.Body)
		if err := json.Unmarshal(data, &gotBody); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		return newJSONResponse(t, req, http.StatusOK, map[string]any{"text": "hi there"}), nil
	})))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	answer, err := c.Predict(context.Background(), "  What are the key skills?  ", nil)
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if answer != "hi there" {
		t.Errorf("Expected answer 'hi there', got %q", answer)
	}

	if gotReq.Method != http.MethodPost {
		t.Errorf("Expected POST, got %s", gotReq.Method)
	}
	if gotReq.URL.String() != "https://flowise.example.com/api/v1/prediction/flow-123" {
		t.Errorf("Unexpected URL: %s", gotReq.URL.String())
	}
	if ct := gotReq.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
	if accept := gotReq.Header.Get("Accept"); !strings.Contains(accept, "text/event-stream") {
		t.Errorf("Expected Accept to allow event streams, got %q", accept)
	}
	if ua := gotReq.Header.Get("User-Agent"); !strings.HasPrefix(ua, "folio/") {
		t.Errorf("Expected folio user agent, got %q", ua)
	}
	if auth := gotReq.Header.Get("Authorization"); auth != "Bearer secret-key" {
		t.Errorf("Expected bearer auth, got %q", auth)
	}
	if len(gotBody) != 1 || gotBody["question"] != "What are the key skills?" {
		t.Errorf("Expected body with trimmed question only, got %v", gotBody)
	}
}

func TestPredict_NoAuthorizationWithoutKey(t *testing.T) {
	c := newFlowiseClient(t, func(req *http.Request) (*http.Response, error) {
		if auth := req.Header.Get("Authorization"); auth != "" {
			t.Errorf("Expected no Authorization header, got %q", auth)
		}
		return newJSONResponse(t, req, http.StatusOK, "bare answer"), nil
	})

	answer, err := c.Predict(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if answer != "bare answer" {
		t.Errorf("Expected bare string answer, got %q", answer)
	}
}

func TestPredict_JSONPriorityOrder(t *testing.T) {
	partials := 0
	c := newFlowiseClient(t, func(req *http.Request) (*http.Response, error) {
		return newHTTPResponse(req, http.StatusOK, "application/json", []byte(`{"text":"a","answer":"b"}`)), nil
	})

	answer, err := c.Predict(context.Background(), "q", func(string) { partials++ })
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if answer != "a" {
		t.Errorf("Expected 'a', got %q", answer)
	}
	if partials != 0 {
		t.Errorf("Expected no partial publications for JSON, got %d", partials)
	}
}

func TestPredict_EmptyJSONIsFailure(t *testing.T) {
	c := newFlowiseClient(t, func(req *http.Request) (*http.Response, error) {
		return newJSONResponse(t, req, http.StatusOK, map[string]any{"chatId": "x"}), nil
	})

	_, err := c.Predict(context.Background(), "q", nil)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestPredict_Non2xxIgnoresBody(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError, http.StatusBadGateway} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			c := newFlowiseClient(t, func(req *http.Request) (*http.Response, error) {
				return newJSONResponse(t, req, status, map[string]any{"text": "looks fine"}), nil
			})

			answer, err := c.Predict(context.Background(), "q", nil)
			if answer != "" {
				t.Errorf("Expected no answer, got %q", answer)
			}
			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("Expected *StatusError, got %v", err)
			}
			if statusErr.Code != status {
				t.Errorf("Expected code %d, got %d", status, statusErr.Code)
			}
			if IsCanceled(err) {
				t.Error("Status errors must not look like cancellations")
			}
		})
	}
}

func TestPredict_TransportError(t *testing.T) {
	c := newFlowiseClient(t, func(req *http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("dial tcp 10.0.0.1:443: connect: connection refused")
	})

	_, err := c.Predict(context.Background(), "q", nil)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Expected ErrTransport, got %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Expected cause in message, got %q", err.Error())
	}
}

func TestPredict_EmptyQuestion(t *testing.T) {
	called := false
	c := newFlowiseClient(t, func(req *http.Request) (*http.Response, error) {
		called = true
		return nil, fmt.Errorf("unexpected request")
	})

	_, err := c.Predict(context.Background(), "   ", nil)
	if !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("Expected ErrEmptyQuestion, got %v", err)
	}
	if called {
		t.Error("Expected no request for an empty question")
	}
}

func TestPredict_StreamTokensPublishIncrementally(t *testing.T) {
	body := strings.Join([]string{
		`message:`,
		`data: {"event":"start","data":""}`,
		``,
		`message:`,
		`data: {"event":"token","data":"Hel"}`,
		``,
		`message:`,
		`data: {"event":"token","data":"lo"}`,
		``,
		`message:`,
		`data: {"event":"end","data":"[DONE]"}`,
		``,
	}, "\n")

	c := newFlowiseClient(t, func(req *http.Request) (*http.Response, error) {
		return newHTTPResponse(req, http.StatusOK, "text/event-stream; charset=utf-8", []byte(body)), nil
	})

	var partials []string
	answer, err := c.Predict(context.Background(), "q", func(text string) {
		partials = append(partials, text)
	})
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if answer != "Hello" {
		t.Errorf("Expected 'Hello', got %q", answer)
	}
	if strings.Join(partials, "|") != "Hel|Hello" {
		t.Errorf("Expected partials [Hel Hello], got %v", partials)
	}
}

func TestPredict_StreamLineSplitAcrossReads(t *testing.T) {
	c := newFlowiseClient(t, func(req *http.Request) (*http.Response, error) {
		return newStreamResponse(req, http.StatusOK, "text/event-stream",
			&chunkReader{chunks: []string{"dat", "a: hello\n"}}), nil
	})

	answer, err := c.Predict(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if answer != "hello" {
		t.Errorf("Expected 'hello', got %q", answer)
	}
}

func TestPredict_StreamWithoutUsableFramesIsFailure(t *testing.T) {
	body := "event: ping\n: keep-alive\ndata: {\"event\":\"metadata\",\"data\":{\"chatId\":\"1\"}}\ndata: [DONE]\n"
	c := newFlowiseClient(t, func(req *http.Request) (*http.Response, error) {
		return newHTTPResponse(req, http.StatusOK, "text/event-stream", []byte(body)), nil
	})

	answer, err := c.Predict(context.Background(), "q", nil)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("Expected ErrEmptyResponse, got answer=%q err=%v", answer, err)
	}
}

func TestPredict_Timeout(t *testing.T) {
	c := newFlowiseClient(t, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}, WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := c.Predict(context.Background(), "q", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if IsCanceled(err) {
		t.Error("Timeouts must not look like cancellations")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Timeout took too long: %s", elapsed)
	}
}

func TestPredict_StreamOutlivesTimeout(t *testing.T) {
	chunks := make([]string, 0, 10)
	for i := range 10 {
		chunks = append(chunks, fmt.Sprintf("data: {\"event\":\"token\",\"data\":\"t%d \"}\n", i))
	}
	c := newFlowiseClient(t, func(req *http.Request) (*http.Response, error) {
		return newStreamResponse(req, http.StatusOK, "text/event-stream",
			&chunkReader{chunks: chunks, delay: 15 * time.Millisecond}), nil
	}, WithTimeout(40*time.Millisecond))

	var partials []string
	answer, err := c.Predict(context.Background(), "q", func(text string) {
		partials = append(partials, text)
	})
	if err != nil {
		t.Fatalf("A reply that started streaming must not time out: %v", err)
	}
	if answer != "t0 t1 t2 t3 t4 t5 t6 t7 t8 t9 " {
		t.Errorf("Expected every token, got %q", answer)
	}
	if len(partials) != 10 {
		t.Errorf("Expected 10 partials, got %d", len(partials))
	}
}

func TestPredict_CancelMidStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newFlowiseClient(t, func(req *http.Request) (*http.Response, error) {
		body := &stallingBody{
			ctx:    req.Context(),
			prefix: bytes.NewReader([]byte("data: {\"event\":\"token\",\"data\":\"partial\"}\n")),
		}
		return newStreamResponse(req, http.StatusOK, "text/event-stream", body), nil
	}, WithTimeout(20*time.Millisecond))

	var partials []string
	_, err := c.Predict(ctx, "q", func(text string) {
		partials = append(partials, text)
		cancel()
	})
	if !IsCanceled(err) {
		t.Fatalf("Expected cancellation, got %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Errorf("Cancellation must not be reported as a timeout: %v", err)
	}
	if len(partials) != 1 || partials[0] != "partial" {
		t.Errorf("Expected the partial answer before the cancel, got %v", partials)
	}
}

func TestPredict_StreamLineTooLong(t *testing.T) {
	c := newFlowiseClient(t, func(req *http.Request) (*http.Response, error) {
		huge := "data: " + strings.Repeat("a", maxFrameBytes+1)
		return newHTTPResponse(req, http.StatusOK, "text/event-stream", []byte(huge)), nil
	})

	_, err := c.Predict(context.Background(), "q", nil)
	if !errors.Is(err, ErrTransport) || !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("Expected an oversized frame failure, got %v", err)
	}
}

func TestPredict_CancelBeforeSettle(t *testing.T) {
	started := make(chan struct{})
	c := newFlowiseClient(t, func(req *http.Request) (*http.Response, error) {
		close(started)
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Predict(ctx, "q", nil)
		errCh <- err
	}()

	<-started
	cancel()

	err := <-errCh
	if !IsCanceled(err) {
		t.Fatalf("Expected cancellation, got %v", err)
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransport) {
		t.Errorf("Cancellation must not be classified as a failure: %v", err)
	}
}

func TestPredict_ParentDeadlineIsTimeout(t *testing.T) {
	c := newFlowiseClient(t, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Predict(ctx, "q", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
}

func TestPredict_HTTPTestServerStreaming(t *testing.T) {
	var mu sync.Mutex
	var gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotPath = r.URL.Path
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, tok := range []string{"Go ", "is ", "fun"} {
			fmt.Fprintf(w, "data: {\"event\":\"token\",\"data\":%q}\n\n", tok)
			if flusher != nil {
				flusher.Flush()
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	cfg := testFlowiseConfig()
	cfg.APIHost = srv.URL
	c, err := New(cfg, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	var last string
	answer, err := c.Predict(context.Background(), "q", func(text string) { last = text })
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if answer != "Go is fun" || last != "Go is fun" {
		t.Errorf("Expected 'Go is fun', got answer=%q last=%q", answer, last)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/api/v1/prediction/flow-123" {
		t.Errorf("Unexpected path %q", gotPath)
	}
}

func TestPredict_HTTPTestServerJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"outputs":[{"text":"from outputs"}]}`)
	}))
	defer srv.Close()

	cfg := testFlowiseConfig()
	cfg.APIHost = srv.URL + "/"
	c, err := New(cfg, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	answer, err := c.Predict(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if answer != "from outputs" {
		t.Errorf("Expected 'from outputs', got %q", answer)
	}
}
