package cache

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutThenGetRoundTrips(t *testing.T) {
	s := openTestStore(t)
	key := Key("function add(a,b){return a+b;}", "add", "ConstantFolding,Inlining")
	if err := s.Put(key, "add", "(module)", []byte{0x00, 0x61, 0x73, 0x6d}, time.Unix(0, 0)); err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}
	info, ok, err := s.Get(key)
	if err != nil || !ok {
		t.Fatalf("expected a cache hit, got ok=%v err=%v", ok, err)
	}
	if info.FunctionName != "add" || info.SizeBytes != 4 {
		t.Fatalf("unexpected cached info: %+v", info)
	}
}

func TestGetMissReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get("nonexistent")
	if err != nil || ok {
		t.Fatalf("expected a clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestClearCacheRemovesEntries(t *testing.T) {
	s := openTestStore(t)
	key := Key("src", "f", "")
	if err := s.Put(key, "f", "(module)", []byte{1}, time.Unix(0, 0)); err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}
	if err := s.ClearCache(); err != nil {
		t.Fatalf("unexpected clear error: %v", err)
	}
	_, ok, _ := s.Get(key)
	if ok {
		t.Fatalf("expected cache to be empty after ClearCache")
	}
}

func TestGetModuleInfoReturnsMostRecent(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put(Key("v1", "f", ""), "f", "(module v1)", []byte{1}, time.Unix(100, 0)); err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}
	if err := s.Put(Key("v2", "f", ""), "f", "(module v2)", []byte{2}, time.Unix(200, 0)); err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}
	info, ok, err := s.GetModuleInfo("f")
	if err != nil || !ok {
		t.Fatalf("expected a hit, got ok=%v err=%v", ok, err)
	}
	if info.WatText != "(module v2)" {
		t.Fatalf("expected the most recently cached entry, got %q", info.WatText)
	}
}
