package callgraph

import "testing"

func TestAddEdgeRecordsCalleesAndCallers(t *testing.T) {
	g := New()
	g.AddEdge("main", "helper")
	g.AddEdge("main", "other")

	callees := g.Callees("main")
	if len(callees) != 2 || callees[0] != "helper" || callees[1] != "other" {
		t.Fatalf("unexpected callees: %v", callees)
	}
	callers := g.Callers("helper")
	if len(callers) != 1 || callers[0] != "main" {
		t.Fatalf("unexpected callers: %v", callers)
	}
}

func TestIsRecursiveDetectsDirectSelfCall(t *testing.T) {
	g := New()
	g.AddEdge("fact", "fact")
	if !g.IsRecursive("fact") {
		t.Fatalf("expected a direct self-edge to be recursive")
	}
}

func TestIsRecursiveDetectsIndirectCycle(t *testing.T) {
	g := New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")
	if !g.IsRecursive("a") {
		t.Fatalf("expected a 3-node cycle to be recursive")
	}
	if !g.IsRecursive("b") {
		t.Fatalf("expected every member of the cycle to be recursive")
	}
}

func TestIsRecursiveFalseForAcyclicGraph(t *testing.T) {
	g := New()
	g.AddEdge("main", "helper")
	g.AddEdge("helper", "leaf")
	if g.IsRecursive("main") {
		t.Fatalf("expected a DAG to report non-recursive")
	}
}

func TestIsRecursiveFalseForUnknownName(t *testing.T) {
	g := New()
	if g.IsRecursive("nope") {
		t.Fatalf("expected an unseen name to report non-recursive")
	}
}

func TestOutDegreeAndInDegree(t *testing.T) {
	g := New()
	g.AddEdge("main", "a")
	g.AddEdge("main", "b")
	g.AddEdge("other", "a")

	if got := g.OutDegree("main"); got != 2 {
		t.Fatalf("expected out-degree 2, got %d", got)
	}
	if got := g.InDegree("a"); got != 2 {
		t.Fatalf("expected in-degree 2, got %d", got)
	}
}

func TestDepthFollowsLongestChain(t *testing.T) {
	g := New()
	g.AddEdge("main", "a")
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")

	if got := g.Depth("main"); got != 3 {
		t.Fatalf("expected depth 3, got %d", got)
	}
	if got := g.Depth("c"); got != 0 {
		t.Fatalf("expected a leaf to have depth 0, got %d", got)
	}
}

func TestDepthGuardsAgainstCycles(t *testing.T) {
	g := New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")

	if got := g.Depth("a"); got != 1 {
		t.Fatalf("expected the visited guard to cap depth at 1, got %d", got)
	}
}
