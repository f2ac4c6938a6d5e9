package providers

import (
	"context"
	"encoding/base64"

	"github.com/localtrace/statetape/pkg/capability"
)

// HTTPVLMProvider describes an image by posting it to a local
// vision-language-model HTTP server (e.g. llama.cpp's multimodal server
// or an Ollama vision model) and decoding its structured response.
type HTTPVLMProvider struct {
	*httpClient
}

// NewHTTPVLMProvider creates a VLM provider backed by the HTTP endpoint
// in cfg. cfg.BaseURL is expected to serve POST /describe.
func NewHTTPVLMProvider(cfg ProviderConfig) *HTTPVLMProvider {
	return &HTTPVLMProvider{httpClient: newHTTPClient(cfg)}
}

type vlmDescribeRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type vlmDescribeResponse struct {
	Text   string         `json:"text"`
	Tokens []ocrToken     `json:"tokens,omitempty"`
	Layout map[string]any `json:"layout,omitempty"`
}

// Extract implements capability.VLMExtractor.
func (p *HTTPVLMProvider) Extract(imageBytes []byte) (capability.VLMResult, error) {
	req := vlmDescribeRequest{ImageBase64: base64.StdEncoding.EncodeToString(imageBytes)}
	var resp vlmDescribeResponse

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	if err := p.doJSON(ctx, "POST", p.cfg.BaseURL+"/describe", req, &resp, nil); err != nil {
		return capability.VLMResult{}, err
	}

	tokens := make([]capability.OCRResult, 0, len(resp.Tokens))
	for _, t := range resp.Tokens {
		tokens = append(tokens, capability.OCRResult{
			Text:       t.Text,
			BBoxXYWH:   t.BBoxXYWH,
			Confidence: t.Confidence,
		})
	}

	return capability.VLMResult{
		Text:   resp.Text,
		Tokens: tokens,
		Layout: resp.Layout,
	}, nil
}
