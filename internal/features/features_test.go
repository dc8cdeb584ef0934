package features

import (
	"math"
	"testing"

	"wasmjit/internal/callgraph"
	"wasmjit/internal/profile"
)

func TestVectorLengthAndFiniteness(t *testing.T) {
	s := profile.NewStore(100)
	s.RecordCall("f", 12345, "int")
	s.RecordCall("f", 67, "int")
	s.NoteEdge("f", "g")
	g := callgraph.New()
	v := Extract(s.Get("f"), g, 100)
	if len(v) != VectorLength {
		t.Fatalf("expected length %d, got %d", VectorLength, len(v))
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			t.Fatalf("index %d is non-finite: %v", i, x)
		}
		if x < 0 {
			t.Fatalf("index %d is negative: %v", i, x)
		}
	}
}

func TestDeterministicGivenIdenticalProfile(t *testing.T) {
	s1 := profile.NewStore(100)
	s1.RecordCall("f", 500, "int")
	s2 := profile.NewStore(100)
	s2.RecordCall("f", 500, "int")

	g := callgraph.New()
	v1 := Extract(s1.Get("f"), g, 100)
	v2 := Extract(s2.Get("f"), g, 100)
	if v1 != v2 {
		t.Fatalf("expected identical profiles to produce identical vectors")
	}
}

func TestNilCallGraphIsSafe(t *testing.T) {
	s := profile.NewStore(10)
	s.RecordCall("f", 1, "")
	v := Extract(s.Get("f"), nil, 100)
	if len(v) != VectorLength {
		t.Fatalf("expected full-length vector even with nil graph")
	}
}

func TestHotnessFlagAtThreshold(t *testing.T) {
	s := profile.NewStore(10)
	for i := 0; i < 100; i++ {
		s.RecordCall("f", 1, "")
	}
	v := Extract(s.Get("f"), nil, 100)
	if v[27] != 1 {
		t.Fatalf("expected hotness flag set once call count reaches threshold")
	}
}
