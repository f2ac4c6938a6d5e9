package providers

import (
	"context"

	"github.com/localtrace/statetape/pkg/capability"
)

// HTTPTextEmbedder embeds text by posting it to a local embedding HTTP
// server (e.g. an Ollama or sentence-transformers server) and decoding
// the returned vector. It implements capability.IdentifiableEmbedder,
// caching its identity after the first successful call.
type HTTPTextEmbedder struct {
	*httpClient

	identity      capability.EmbedderIdentity
	identityKnown bool
}

// NewHTTPTextEmbedder creates a text embedder backed by the HTTP endpoint
// in cfg. cfg.BaseURL is expected to serve POST /embed and GET /info.
func NewHTTPTextEmbedder(cfg ProviderConfig) *HTTPTextEmbedder {
	return &HTTPTextEmbedder{httpClient: newHTTPClient(cfg)}
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

type embedderInfoResponse struct {
	ModelName     string `json:"model_name"`
	BundleVersion string `json:"bundle_version"`
	Dims          int    `json:"dims"`
}

// Embed implements capability.TextEmbedder.
func (p *HTTPTextEmbedder) Embed(text string) ([]float32, error) {
	req := embedRequest{Text: text}
	var resp embedResponse

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	if err := p.doJSON(ctx, "POST", p.cfg.BaseURL+"/embed", req, &resp, nil); err != nil {
		return nil, err
	}
	return resp.Vector, nil
}

// Identity implements capability.IdentifiableEmbedder, querying the
// provider's /info endpoint once and caching the result.
func (p *HTTPTextEmbedder) Identity() (capability.EmbedderIdentity, error) {
	if p.identityKnown {
		return p.identity, nil
	}

	var resp embedderInfoResponse
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	if err := p.doJSON(ctx, "GET", p.cfg.BaseURL+"/info", nil, &resp, nil); err != nil {
		return capability.EmbedderIdentity{}, err
	}

	p.identity = capability.EmbedderIdentity{
		ModelName:     resp.ModelName,
		BundleVersion: resp.BundleVersion,
		Dims:          resp.Dims,
	}
	p.identityKnown = true
	return p.identity, nil
}
