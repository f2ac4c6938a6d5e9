package metrics

import (
	"testing"
	"time"
)

func Benchmark_Idle_RecordSweep(b *testing.B) {
	c := NewCollector(testConfig(), nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Idle.RecordSweep(10*time.Millisecond, 10, 0)
	}
}

func Benchmark_VectorIndex_RecordSearch(b *testing.B) {
	c := NewCollector(testConfig(), nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.VectorIndex.RecordSearch(time.Millisecond, 8)
	}
}

func Benchmark_Retrieval_RecordQuery(b *testing.B) {
	c := NewCollector(testConfig(), nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Retrieval.RecordQuery("VECTOR_INDEX", time.Millisecond)
	}
}

func Benchmark_JEPA_RecordLoadGateDenial(b *testing.B) {
	c := NewCollector(testConfig(), nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.JEPA.RecordLoadGateDenial("not_approved")
	}
}
