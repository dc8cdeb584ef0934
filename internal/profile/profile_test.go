package profile

import (
	"testing"

	"wasmjit/internal/lexer"
	"wasmjit/internal/parser"
)

func TestRecordCallInvariants(t *testing.T) {
	s := NewStore(10)
	s.RecordCall("f", 10, "int")
	s.RecordCall("f", 30, "int")
	s.RecordCall("f", 20, "int")
	p := s.Get("f")
	if p.CallCount != 3 {
		t.Fatalf("expected count 3, got %d", p.CallCount)
	}
	avg := p.AvgTimeNs()
	if !(p.MinTimeNs <= avg && avg <= p.MaxTimeNs) {
		t.Fatalf("expected min <= avg <= max, got min=%v avg=%v max=%v", p.MinTimeNs, avg, p.MaxTimeNs)
	}
}

func TestSampleListFIFOCap(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 10; i++ {
		s.RecordCall("f", float64(i), "")
	}
	p := s.Get("f")
	if len(p.Samples) != 3 {
		t.Fatalf("expected sample list capped at 3, got %d", len(p.Samples))
	}
	if p.Samples[len(p.Samples)-1] != 9 {
		t.Fatalf("expected most recent sample retained, got %v", p.Samples)
	}
}

func TestNoteEdgeIsSymmetric(t *testing.T) {
	s := NewStore(10)
	s.NoteEdge("a", "b")
	callees := s.Graph().Callees("a")
	callers := s.Graph().Callers("b")
	if len(callees) != 1 || callees[0] != "b" {
		t.Fatalf("expected a->b callee edge, got %v", callees)
	}
	if len(callers) != 1 || callers[0] != "a" {
		t.Fatalf("expected b<-a caller edge, got %v", callers)
	}
}

func TestStaticAnalyzeRecursionDetection(t *testing.T) {
	src := "function fact(n) { if (n <= 1) return 1; return fact(n - 1); }"
	toks, _ := lexer.NewScanner(src, "t").Scan()
	root, arena, _ := parser.New(toks, "t").Parse()
	fnID := arena.Get(root).Body[0]

	s := NewStore(10)
	s.StaticAnalyze("fact", src, arena, fnID)
	p := s.Get("fact")
	if !p.Static.HasRecursion {
		t.Fatalf("expected recursion detected")
	}
	if !p.Static.HasConditional {
		t.Fatalf("expected conditional detected")
	}
	if p.Static.IsLeaf {
		t.Fatalf("expected IsLeaf false for a function with a call")
	}
}

func TestStaticAnalyzeIsIdempotent(t *testing.T) {
	src := "function f() { return 1; }"
	toks, _ := lexer.NewScanner(src, "t").Scan()
	root, arena, _ := parser.New(toks, "t").Parse()
	fnID := arena.Get(root).Body[0]

	s := NewStore(10)
	s.StaticAnalyze("f", src, arena, fnID)
	first := s.Get("f").Static
	s.StaticAnalyze("f", "different source should be ignored", arena, fnID)
	second := s.Get("f").Static
	if first != second {
		t.Fatalf("expected static-analyze to run only once per function")
	}
}
