package providers

import (
	"context"
	"encoding/base64"

	"github.com/localtrace/statetape/pkg/capability"
)

// HTTPOCRProvider extracts text tokens from an image by posting it to a
// local OCR HTTP server (e.g. a Tesseract or PaddleOCR sidecar) and
// decoding its token list.
type HTTPOCRProvider struct {
	*httpClient
}

// NewHTTPOCRProvider creates an OCR provider backed by the HTTP endpoint
// in cfg. cfg.BaseURL is expected to serve POST /extract.
func NewHTTPOCRProvider(cfg ProviderConfig) *HTTPOCRProvider {
	return &HTTPOCRProvider{httpClient: newHTTPClient(cfg)}
}

type ocrExtractRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type ocrToken struct {
	Text       string  `json:"text"`
	BBoxXYWH   [4]int  `json:"bbox_xywh"`
	Confidence float64 `json:"confidence"`
}

type ocrExtractResponse struct {
	Tokens []ocrToken `json:"tokens"`
}

// ExtractTokens implements capability.OCRExtractor.
func (p *HTTPOCRProvider) ExtractTokens(imageBytes []byte) ([]capability.OCRResult, error) {
	req := ocrExtractRequest{ImageBase64: base64.StdEncoding.EncodeToString(imageBytes)}
	var resp ocrExtractResponse

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	if err := p.doJSON(ctx, "POST", p.cfg.BaseURL+"/extract", req, &resp, nil); err != nil {
		return nil, err
	}

	out := make([]capability.OCRResult, 0, len(resp.Tokens))
	for _, t := range resp.Tokens {
		out = append(out, capability.OCRResult{
			Text:       t.Text,
			BBoxXYWH:   t.BBoxXYWH,
			Confidence: t.Confidence,
		})
	}
	return out, nil
}
