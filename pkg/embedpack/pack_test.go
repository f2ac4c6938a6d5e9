package embedpack

import (
	"testing"

	"github.com/localtrace/statetape/pkg/model"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	vec := []float32{0, 1, -1, 0.5, -0.25, 3.14159}
	blob := Pack(vec)
	if blob.Dim != len(vec) {
		t.Fatalf("expected dim %d, got %d", len(vec), blob.Dim)
	}
	if blob.Dtype != "f16" {
		t.Fatalf("expected dtype f16, got %s", blob.Dtype)
	}

	got, err := Unpack(blob)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(got) != len(vec) {
		t.Fatalf("expected %d elements, got %d", len(vec), len(got))
	}
	for i := range vec {
		diff := got[i] - vec[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.01 {
			t.Fatalf("element %d: got %v, want ~%v", i, got[i], vec[i])
		}
	}
}

func TestUnpackRejectsWrongDtype(t *testing.T) {
	blob := model.EmbeddingBlob{Dim: 1, Dtype: "f32", Blob: "AAAA"}
	if _, err := Unpack(blob); err == nil {
		t.Fatalf("expected error for unsupported dtype")
	}
}

func TestUnpackRejectsLengthMismatch(t *testing.T) {
	blob := Pack([]float32{1, 2, 3})
	blob.Dim = 10
	if _, err := Unpack(blob); err == nil {
		t.Fatalf("expected error for dim/blob length mismatch")
	}
}
