package metadata

import (
	"errors"
	"testing"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBadgerStore: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func TestPutNewThenGet(t *testing.T) {
	store := openTestStore(t)

	if err := store.PutNew("run1/segment/1", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("PutNew: %v", err)
	}

	got, err := store.Get("run1/segment/1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("got %s", got)
	}
}

func TestPutNewCollisionReturnsErrKeyExists(t *testing.T) {
	store := openTestStore(t)

	if err := store.PutNew("k", []byte("v1")); err != nil {
		t.Fatalf("PutNew: %v", err)
	}
	err := store.PutNew("k", []byte("v2"))
	if !errors.Is(err, ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}

	got, _ := store.Get("k")
	if string(got) != "v1" {
		t.Fatalf("expected original value preserved, got %s", got)
	}
}

func TestPutReplaceOverwrites(t *testing.T) {
	store := openTestStore(t)

	if err := store.PutNew("checkpoint/run1", []byte("v1")); err != nil {
		t.Fatalf("PutNew: %v", err)
	}
	if err := store.PutReplace("checkpoint/run1", []byte("v2")); err != nil {
		t.Fatalf("PutReplace: %v", err)
	}
	got, _ := store.Get("checkpoint/run1")
	if string(got) != "v2" {
		t.Fatalf("expected replaced value, got %s", got)
	}
}

func TestGetMissingKey(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Get("missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestKeysSortedByPrefix(t *testing.T) {
	store := openTestStore(t)
	for _, k := range []string{"run1/segment/3", "run1/segment/1", "run1/segment/2", "run1/frame/1"} {
		if err := store.PutNew(k, []byte("x")); err != nil {
			t.Fatalf("PutNew(%s): %v", k, err)
		}
	}

	keys, err := store.Keys("run1/segment/")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	want := []string{"run1/segment/1", "run1/segment/2", "run1/segment/3"}
	if len(keys) != len(want) {
		t.Fatalf("got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("got %v, want %v", keys, want)
		}
	}
}
