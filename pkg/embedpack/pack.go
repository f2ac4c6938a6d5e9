package embedpack

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/x448/float16"

	"github.com/localtrace/statetape/pkg/model"
)

// Dtype is the element type tag used in every EmbeddingBlob this
// package produces.
const Dtype = "f16"

// Pack converts vec to a little-endian float16 byte sequence,
// base64-encodes it, and returns the resulting EmbeddingBlob.
func Pack(vec []float32) model.EmbeddingBlob {
	buf := make([]byte, len(vec)*2)
	for i, f := range vec {
		bits := float16.Fromfloat32(f).Bits()
		binary.LittleEndian.PutUint16(buf[i*2:], bits)
	}
	return model.EmbeddingBlob{
		Dim:   len(vec),
		Dtype: Dtype,
		Blob:  base64.StdEncoding.EncodeToString(buf),
	}
}

// Unpack reverses Pack, decoding blob.Blob back into a []float32 of
// length blob.Dim. Only the "f16" dtype is supported.
func Unpack(blob model.EmbeddingBlob) ([]float32, error) {
	if blob.Dtype != Dtype {
		return nil, fmt.Errorf("embedpack: unsupported dtype %q", blob.Dtype)
	}
	raw, err := base64.StdEncoding.DecodeString(blob.Blob)
	if err != nil {
		return nil, fmt.Errorf("embedpack: decode base64: %w", err)
	}
	if len(raw) != blob.Dim*2 {
		return nil, fmt.Errorf("embedpack: blob length %d does not match dim %d", len(raw), blob.Dim)
	}

	vec := make([]float32, blob.Dim)
	for i := range vec {
		bits := binary.LittleEndian.Uint16(raw[i*2:])
		vec[i] = float16.Frombits(bits).Float32()
	}
	return vec, nil
}
