package providers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPOCRProvider_ExtractTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract" {
			http.NotFound(w, r)
			return
		}
		var req ocrExtractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(ocrExtractResponse{
			Tokens: []ocrToken{
				{Text: "hello", BBoxXYWH: [4]int{0, 0, 10, 10}, Confidence: 0.9},
			},
		})
	}))
	defer server.Close()

	p := NewHTTPOCRProvider(ProviderConfig{Name: "ocr", BaseURL: server.URL, Timeout: 2 * time.Second})
	results, err := p.ExtractTokens([]byte("fake-image"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Text != "hello" {
		t.Errorf("unexpected results: %+v", results)
	}
}
