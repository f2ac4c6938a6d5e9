package hashing

import "testing"

func TestDeterministicIDStable(t *testing.T) {
	parts := map[string]any{
		"kind":        "state_span",
		"session_id":  "s1",
		"ts_start_ms": 1000,
		"ts_end_ms":   6000,
		"cache_key":   "abc123",
	}

	id1, err := DeterministicIDString(parts)
	if err != nil {
		t.Fatalf("DeterministicIDString: %v", err)
	}
	id2, err := DeterministicIDString(parts)
	if err != nil {
		t.Fatalf("DeterministicIDString: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("ids differ across invocations: %s != %s", id1, id2)
	}
	if len(id1) != 36 {
		t.Fatalf("expected canonical UUID string, got %q", id1)
	}
}

func TestDeterministicIDDiffersByInput(t *testing.T) {
	id1, _ := DeterministicIDString(map[string]any{"kind": "state_span", "session_id": "s1"})
	id2, _ := DeterministicIDString(map[string]any{"kind": "state_span", "session_id": "s2"})
	if id1 == id2 {
		t.Fatalf("expected different ids for different inputs")
	}
}

func TestCacheKeySortsInputArtifactIDs(t *testing.T) {
	k1, err := CacheKey("p", "1.0", "m1", "cfg", []string{"b", "a"})
	if err != nil {
		t.Fatalf("CacheKey: %v", err)
	}
	k2, err := CacheKey("p", "1.0", "m1", "cfg", []string{"a", "b"})
	if err != nil {
		t.Fatalf("CacheKey: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("cache key should be independent of input artifact id order: %s != %s", k1, k2)
	}
}
