package providers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPTextEmbedder_EmbedAndIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/embed":
			_ = json.NewEncoder(w).Encode(embedResponse{Vector: []float32{0.1, 0.2, 0.3}})
		case "/info":
			_ = json.NewEncoder(w).Encode(embedderInfoResponse{ModelName: "all-MiniLM-L6-v2", BundleVersion: "v1", Dims: 3})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := NewHTTPTextEmbedder(ProviderConfig{Name: "embedder", BaseURL: server.URL, Timeout: 2 * time.Second})

	vec, err := p.Embed("some captured text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3-dim vector, got %d", len(vec))
	}

	identity, err := p.Identity()
	if err != nil {
		t.Fatalf("unexpected identity error: %v", err)
	}
	if identity.Dims != 3 || identity.ModelName != "all-MiniLM-L6-v2" {
		t.Errorf("unexpected identity: %+v", identity)
	}

	if !p.identityKnown {
		t.Error("expected identity to be cached after first call")
	}
}
