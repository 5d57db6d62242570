package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testRequest() Request {
	return Request{
		Model:      "claude-sonnet-4-20250514",
		MaxTokens:  1024,
		Messages:   []Message{UserText("convert this")},
		ToolChoice: &ToolChoice{Type: ToolChoiceAuto},
	}
}

const okResponse = `{
	"id": "msg_01",
	"model": "claude-sonnet-4-20250514",
	"role": "assistant",
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 3, "output_tokens": 7},
	"content": [{"type": "text", "text": "done"}]
}`

func TestClient_Send_Success(t *testing.T) {
	t.Parallel()

	var gotHeaders http.Header
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/messages" {
			http.Error(w, "unexpected route", http.StatusNotFound)
			return
		}
		gotHeaders = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		json.Unmarshal(b, &gotBody) //nolint:errcheck
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, okResponse) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("sk-test", WithBaseURL(srv.URL+"/"))
	resp, err := c.Send(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.ID != "msg_01" || resp.Text() != "done" || resp.Usage.OutputTokens != 7 {
		t.Errorf("unexpected response: %#v", resp)
	}
	if resp.StopReason == nil || *resp.StopReason != StopEndTurn {
		t.Errorf("unexpected stop reason: %v", resp.StopReason)
	}

	if gotHeaders.Get("x-api-key") != "sk-test" {
		t.Errorf("missing api key header")
	}
	if gotHeaders.Get("anthropic-version") != DefaultAPIVersion {
		t.Errorf("unexpected version header %q", gotHeaders.Get("anthropic-version"))
	}
	if gotHeaders.Get("anthropic-beta") != DefaultBeta {
		t.Errorf("unexpected beta header %q", gotHeaders.Get("anthropic-beta"))
	}
	if _, ok := gotBody["temperature"]; ok {
		t.Error("unset temperature must not be sent")
	}
	if _, ok := gotBody["tool_choice"]; !ok {
		t.Error("tool_choice should be sent when set")
	}
}

func TestClient_Send_FailuresAreClassified(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"bad request", http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`},
		{"server error", http.StatusInternalServerError, "boom"},
		{"malformed body", http.StatusOK, "{not json"},
		{"wrong role", http.StatusOK, `{"id":"x","model":"m","role":"user","content":[],"usage":{}}`},
		{"unknown stop reason", http.StatusOK, `{"id":"x","model":"m","role":"assistant","stop_reason":"pause","content":[],"usage":{}}`},
		{"unknown block", http.StatusOK, `{"id":"x","model":"m","role":"assistant","content":[{"type":"image"}],"usage":{}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body) //nolint:errcheck
			}))
			defer srv.Close()

			_, err := NewClient("k", WithBaseURL(srv.URL)).Send(context.Background(), testRequest())
			if !errors.Is(err, ErrRequestFailed) {
				t.Fatalf("expected ErrRequestFailed, got %v", err)
			}
		})
	}
}

func TestClient_Send_ConnectionError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient("k", WithBaseURL(url)).Send(context.Background(), testRequest())
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
}

func TestClient_Send_InvalidRequestSkipsNetwork(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	req := testRequest()
	req.MaxTokens = 0
	_, err := NewClient("k", WithBaseURL(srv.URL)).Send(context.Background(), req)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if called {
		t.Error("invalid request must not reach the network")
	}
}
