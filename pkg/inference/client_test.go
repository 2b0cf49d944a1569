package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teslashibe/lookout/internal/log"
	"github.com/teslashibe/lookout/pkg/frame"
)

var testImage = frame.Image{JPEG: []byte{0xff, 0xd8, 0xff, 0xe0}, Width: 2, Height: 2}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(log.Discard())}, opts...)
	client, err := NewClient(opts...)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientSend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Expected /v1/chat/completions, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected application/json, got %s", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("Expected no Authorization header, got %s", auth)
		}

		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Bad request body: %v", err)
		}
		if req["max_tokens"] != float64(100) {
			t.Errorf("Expected max_tokens 100, got %v", req["max_tokens"])
		}
		if _, ok := req["model"]; ok {
			t.Error("model should be omitted when unset")
		}

		messages := req["messages"].([]interface{})
		if len(messages) != 1 {
			t.Fatalf("Expected 1 message, got %d", len(messages))
		}
		msg := messages[0].(map[string]interface{})
		if msg["role"] != "user" {
			t.Errorf("Expected role user, got %v", msg["role"])
		}
		content := msg["content"].([]interface{})
		if len(content) != 2 {
			t.Fatalf("Expected 2 content parts, got %d", len(content))
		}
		text := content[0].(map[string]interface{})
		if text["type"] != "text" || text["text"] != "describe" {
			t.Errorf("Unexpected text part: %v", text)
		}
		img := content[1].(map[string]interface{})
		if img["type"] != "image_url" {
			t.Errorf("Unexpected image part type: %v", img["type"])
		}
		url := img["image_url"].(map[string]interface{})["url"].(string)
		if url != testImage.DataURL() {
			t.Errorf("Unexpected image url: %s", url)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"A cat on a chair."}}]}`)
	}))
	defer server.Close()

	client := newTestClient(t)

	got := client.Send(context.Background(), server.URL, "describe", testImage)
	if got != "A cat on a chair." {
		t.Errorf("Expected 'A cat on a chair.', got %q", got)
	}
}

func TestClientSendTrimsTrailingSlash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Expected /v1/chat/completions, got %s", r.URL.Path)
		}
		io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer server.Close()

	client := newTestClient(t)
	if got := client.Send(context.Background(), server.URL+"/", "x", testImage); got != "ok" {
		t.Errorf("Expected ok, got %q", got)
	}
}

func TestClientSendModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "smolvlm" {
			t.Errorf("Expected model smolvlm, got %q", req.Model)
		}
		if req.MaxTokens != 42 {
			t.Errorf("Expected max_tokens 42, got %d", req.MaxTokens)
		}
		io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, WithModel("smolvlm"), WithMaxTokens(42))
	client.Send(context.Background(), server.URL, "x", testImage)
}

func TestClientSendServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "model not loaded")
	}))
	defer server.Close()

	client := newTestClient(t)

	got := client.Send(context.Background(), server.URL, "x", testImage)
	if got != "Server error: 500 - model not loaded" {
		t.Errorf("Unexpected text: %q", got)
	}
}

func TestClientSendTruncatesErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, strings.Repeat("x", 100))
	}))
	defer server.Close()

	client := newTestClient(t, WithMaxErrorBody(10))

	got := client.Send(context.Background(), server.URL, "x", testImage)
	if got != "Server error: 400 - xxxxxxxxxx" {
		t.Errorf("Unexpected text: %q", got)
	}
}

func TestClientSendInvalidShapes(t *testing.T) {
	bodies := map[string]string{
		"no choices":       `{"id":"x"}`,
		"empty choices":    `{"choices":[]}`,
		"choices object":   `{"choices":{"message":"hi"}}`,
		"content missing":  `{"choices":[{"message":{"role":"assistant"}}]}`,
		"content empty":    `{"choices":[{"message":{"content":""}}]}`,
		"content null":     `{"choices":[{"message":{"content":null}}]}`,
		"content is array": `{"choices":[{"message":{"content":[{"type":"text"}]}}]}`,
		"top-level array":  `[1,2,3]`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			}))
			defer server.Close()

			client := newTestClient(t)
			if got := client.Send(context.Background(), server.URL, "x", testImage); got != MsgInvalidResponse {
				t.Errorf("Expected %q, got %q", MsgInvalidResponse, got)
			}
		})
	}
}

func TestClientSendMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices": [`)
	}))
	defer server.Close()

	client := newTestClient(t)

	got := client.Send(context.Background(), server.URL, "x", testImage)
	if !strings.HasPrefix(got, "Error: ") {
		t.Errorf("Expected Error: prefix, got %q", got)
	}
}

func TestClientSendNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t)

	got := client.Send(context.Background(), url, "x", testImage)
	if !strings.HasPrefix(got, "Error: ") {
		t.Errorf("Expected Error: prefix, got %q", got)
	}
}

func TestClientSendEmptyEndpoint(t *testing.T) {
	client := newTestClient(t)

	got := client.Send(context.Background(), "  ", "x", testImage)
	if got != "Error: "+ErrEmptyEndpoint.Error() {
		t.Errorf("Unexpected text: %q", got)
	}
}

func TestClientSendCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"late"}}]}`)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t)
	got := client.Send(ctx, server.URL, "x", testImage)
	if !strings.Contains(got, "context canceled") {
		t.Errorf("Expected context canceled, got %q", got)
	}
}

func TestClientHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, `{"data":[]}`)
	}))
	defer server.Close()

	client := newTestClient(t)
	if err := client.Health(context.Background(), server.URL); err != nil {
		t.Errorf("Health failed: %v", err)
	}
}

func TestClientHealthAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t)
	err := client.Health(context.Background(), server.URL)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if !apiErr.IsServerError() {
		t.Error("503 should be a server error")
	}
}

func TestNewClientRejectsZeroTokens(t *testing.T) {
	if _, err := NewClient(WithMaxTokens(0)); err == nil {
		t.Error("Expected error for zero max tokens")
	}
}
