package jepa

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/localtrace/statetape/pkg/hashing"
)

// Activation is the encoder/predictor nonlinearity.
type Activation string

const (
	ActivationTanh     Activation = "tanh"
	ActivationReLU     Activation = "relu"
	ActivationIdentity Activation = "identity"
)

// Model is a trained encoder+predictor pair: encode projects a pooled
// feature vector into a latent space, predict maps one latent state to
// the next (used only during training/eval), and the projection seed
// drives the final sign-bit expansion to the output embedding width.
type Model struct {
	ModelVersion   string             `json:"model_version"`
	TrainingRunID  string             `json:"training_run_id"`
	InputDim       int                `json:"input_dim"`
	LatentDim      int                `json:"latent_dim"`
	Encoder        [][]float64        `json:"-"`
	Predictor      [][]float64        `json:"-"`
	EncoderQ       [][]int64          `json:"encoder"`
	PredictorQ     [][]int64          `json:"predictor"`
	ProjectionSeed string             `json:"projection_seed"`
	WeightScale    int64              `json:"weight_scale"`
	ConfigHash     string             `json:"config_hash"`
	DatasetHash    string             `json:"dataset_hash"`
	CreatedTSMs    int64              `json:"created_ts_ms"`
	Activation     Activation         `json:"activation"`
	Eval           map[string]any     `json:"eval"`
	SchemaVersion  int                `json:"schema_version"`
	ProducerID     string             `json:"producer_plugin_id,omitempty"`
	ProducerVer    string             `json:"producer_plugin_version,omitempty"`
	ReportSHA256   string             `json:"report_sha256,omitempty"`
}

// ModelID returns the encoder's identity string for provenance, mirroring
// how the idle processor derives model_id from an embedder's identity.
func (m *Model) ModelID() string { return "jepa:" + m.ModelVersion }

// ModelVersionOf returns the model_version for provenance.
func (m *Model) ModelVersionOf() string { return m.ModelVersion }

// EvalOK reports whether the stored eval block marks this model as
// passing its golden checks, required by the loading gate.
func (m *Model) EvalOK() bool {
	if m.Eval == nil {
		return false
	}
	ok, _ := m.Eval["ok"].(bool)
	return ok
}

// Encode pools features through the encoder, applies the configured
// activation, and L2-normalizes the result.
func (m *Model) Encode(features []float64) []float64 {
	vec := ensureDim(normalizeVec(features), m.InputDim)
	latent := matVec(m.Encoder, vec)
	latent = activate(latent, m.Activation)
	return normalizeVec(latent)
}

// Predict maps one encoded latent state to a predicted next latent
// state, used by training/eval to compute prediction error.
func (m *Model) Predict(latent []float64) []float64 {
	vec := ensureDim(latent, m.LatentDim)
	pred := matVec(m.Predictor, vec)
	pred = activate(pred, m.Activation)
	return normalizeVec(pred)
}

// Embed runs encode then sign-projects the latent to outDim using the
// model's own projection seed: projection(encode(features)), the
// replacement for plain sign-projection once a trained encoder exists.
func (m *Model) Embed(features []float32, outDim int) ([]float32, error) {
	f64 := make([]float64, len(features))
	for i, v := range features {
		f64[i] = float64(v)
	}
	latent := m.Encode(f64)
	latent32 := make([]float32, len(latent))
	for i, v := range latent {
		latent32[i] = float32(v)
	}
	projected := hashing.SignProject(m.ProjectionSeed, latent32, outDim)
	return normalizeVec32(projected), nil
}

// quantizeMatrix and dequantizeMatrix round-trip float weights through a
// fixed-point integer representation so signed model.json bytes are
// stable across encodings (mirrors the original Python trainer's
// weight_scale quantization, avoiding float formatting drift between
// producer and verifier).
func quantizeMatrix(m [][]float64, scale int64) [][]int64 {
	if scale <= 0 {
		scale = 1
	}
	out := make([][]int64, len(m))
	for i, row := range m {
		qrow := make([]int64, len(row))
		for j, v := range row {
			qrow[j] = int64(math.Round(v * float64(scale)))
		}
		out[i] = qrow
	}
	return out
}

func dequantizeMatrix(m [][]int64, scale int64) [][]float64 {
	if scale <= 0 {
		scale = 1
	}
	out := make([][]float64, len(m))
	for i, row := range m {
		frow := make([]float64, len(row))
		for j, v := range row {
			frow[j] = float64(v) / float64(scale)
		}
		out[i] = frow
	}
	return out
}

// quantize populates the quantized fields from Encoder/Predictor ahead
// of marshaling; dequantize populates the float fields from the
// quantized ones after unmarshaling. Callers building a Model from
// scratch call quantize before signing; callers loading one call
// dequantize after decoding JSON.
func (m *Model) quantize() {
	m.EncoderQ = quantizeMatrix(m.Encoder, m.WeightScale)
	m.PredictorQ = quantizeMatrix(m.Predictor, m.WeightScale)
}

func (m *Model) dequantize() {
	m.Encoder = dequantizeMatrix(m.EncoderQ, m.WeightScale)
	m.Predictor = dequantizeMatrix(m.PredictorQ, m.WeightScale)
}

func ensureDim(vec []float64, dim int) []float64 {
	if dim <= 0 {
		return nil
	}
	if len(vec) == dim {
		return vec
	}
	out := make([]float64, dim)
	copy(out, vec)
	return out
}

func matVec(matrix [][]float64, vec []float64) []float64 {
	if len(matrix) == 0 || len(vec) == 0 {
		return nil
	}
	out := make([]float64, len(matrix))
	for i, row := range matrix {
		var acc float64
		n := len(row)
		if len(vec) < n {
			n = len(vec)
		}
		for j := 0; j < n; j++ {
			acc += row[j] * vec[j]
		}
		out[i] = acc
	}
	return out
}

func matVecTranspose(matrix [][]float64, vec []float64) []float64 {
	if len(matrix) == 0 {
		return nil
	}
	cols := len(matrix[0])
	out := make([]float64, cols)
	for i, row := range matrix {
		if i >= len(vec) {
			break
		}
		v := vec[i]
		n := cols
		if len(row) < n {
			n = len(row)
		}
		for j := 0; j < n; j++ {
			out[j] += row[j] * v
		}
	}
	return out
}

func normalizeVec(vec []float64) []float64 {
	if len(vec) == 0 {
		return vec
	}
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

func normalizeVec32(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func activate(vec []float64, kind Activation) []float64 {
	out := make([]float64, len(vec))
	switch kind {
	case ActivationTanh:
		for i, v := range vec {
			out[i] = math.Tanh(v)
		}
	case ActivationReLU:
		for i, v := range vec {
			if v > 0 {
				out[i] = v
			}
		}
	default:
		copy(out, vec)
	}
	return out
}

func activateGrad(vec []float64, kind Activation) []float64 {
	out := make([]float64, len(vec))
	switch kind {
	case ActivationTanh:
		for i, v := range vec {
			t := math.Tanh(v)
			out[i] = 1 - t*t
		}
	case ActivationReLU:
		for i, v := range vec {
			if v > 0 {
				out[i] = 1
			}
		}
	default:
		for i := range out {
			out[i] = 1
		}
	}
	return out
}

// initMatrix deterministically derives a rows x cols weight matrix from
// seed, the same SHA-256(SHA-256(seed) || i(2) || j(2)) construction the
// original trainer uses so a re-run with the same seed reproduces
// identical initial weights.
func initMatrix(rows, cols int, seed string, scale float64) [][]float64 {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	seedBytes := sha256.Sum256([]byte(seed))
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		row := make([]float64, cols)
		for j := 0; j < cols; j++ {
			buf := make([]byte, len(seedBytes)+4)
			n := copy(buf, seedBytes[:])
			binary.BigEndian.PutUint16(buf[n:], uint16(i))
			binary.BigEndian.PutUint16(buf[n+2:], uint16(j))
			h := sha256.Sum256(buf)
			val := float64(binary.BigEndian.Uint16(h[:2])) / 65535.0
			row[j] = (val*2 - 1) * scale
		}
		out[i] = row
	}
	return out
}
