package providers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPVLMProvider_Extract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/describe" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(vlmDescribeResponse{
			Text:   "a terminal window showing a build log",
			Layout: map[string]any{"app": "terminal"},
		})
	}))
	defer server.Close()

	p := NewHTTPVLMProvider(ProviderConfig{Name: "vlm", BaseURL: server.URL, Timeout: 2 * time.Second})
	result, err := p.Extract([]byte("fake-image"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text == "" {
		t.Error("expected non-empty description")
	}
	if result.Layout["app"] != "terminal" {
		t.Errorf("unexpected layout: %+v", result.Layout)
	}
}
