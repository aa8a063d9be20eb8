package core

import "testing"

func TestResourceRegistryLookups(t *testing.T) {
	reg := NewResourceRegistry()
	var owner Address
	owner[0] = 5
	r := NewResourceRegister(NumberValue(1), owner)
	r.SetMetadata("domain", "ethereum")
	reg.Register(r)

	got, err := reg.Get(r.ID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != r {
		t.Fatalf("expected same register instance back")
	}

	if len(reg.ByOwner(owner)) != 1 {
		t.Fatalf("expected one register by owner")
	}
	if len(reg.ByDomain("ethereum")) != 1 {
		t.Fatalf("expected one register by domain")
	}
	if len(reg.ByDomain("cosmos")) != 0 {
		t.Fatalf("expected zero registers for unused domain")
	}

	reg.Deregister(r.ID())
	if _, err := reg.Get(r.ID()); err == nil {
		t.Fatalf("expected error after deregister")
	}
}

func TestRelationshipQueryEngineDirectPath(t *testing.T) {
	graph := NewDependencyGraph()
	a, b, c := HashValue([]byte("a")), HashValue([]byte("b")), HashValue([]byte("c"))
	mustAdd(t, graph, DependencyEdge{Source: a, Target: b, Kind: DependencyStrong})
	mustAdd(t, graph, DependencyEdge{Source: b, Target: c, Kind: DependencyStrong})

	engine := NewRelationshipQueryEngine(graph)
	paths := engine.Query(NewRelationshipQuery(a, c))
	if len(paths) != 1 {
		t.Fatalf("expected exactly one path a->c, got %d", len(paths))
	}
	if paths[0].Length() != 2 {
		t.Fatalf("expected a 2-hop path, got %d hops", paths[0].Length())
	}
}

func TestRelationshipQueryEngineNoPath(t *testing.T) {
	graph := NewDependencyGraph()
	a, b, unrelated := HashValue([]byte("a")), HashValue([]byte("b")), HashValue([]byte("z"))
	mustAdd(t, graph, DependencyEdge{Source: a, Target: b, Kind: DependencyStrong})

	engine := NewRelationshipQueryEngine(graph)
	paths := engine.Query(NewRelationshipQuery(a, unrelated))
	if len(paths) != 0 {
		t.Fatalf("expected no path, got %d", len(paths))
	}
}

func TestRelationshipQueryEngineKindFilter(t *testing.T) {
	graph := NewDependencyGraph()
	a, b := HashValue([]byte("a")), HashValue([]byte("b"))
	mustAdd(t, graph, DependencyEdge{Source: a, Target: b, Kind: DependencyData})

	engine := NewRelationshipQueryEngine(graph)
	q := NewRelationshipQuery(a, b)
	q.Kinds = map[DependencyKind]bool{DependencyStrong: true}
	if paths := engine.Query(q); len(paths) != 0 {
		t.Fatalf("expected Strong-only filter to exclude a Data edge, got %d paths", len(paths))
	}

	q.Kinds = map[DependencyKind]bool{DependencyData: true}
	if paths := engine.Query(q); len(paths) != 1 {
		t.Fatalf("expected Data filter to find the Data edge, got %d paths", len(paths))
	}
}

func TestRelationshipQueryEngineCachesWithinAQuiescentGraph(t *testing.T) {
	graph := NewDependencyGraph()
	a, b := HashValue([]byte("a")), HashValue([]byte("b"))
	mustAdd(t, graph, DependencyEdge{Source: a, Target: b, Kind: DependencyStrong})

	engine := NewRelationshipQueryEngine(graph)
	q := NewRelationshipQuery(a, b)
	first := engine.Query(q)
	second := engine.Query(q)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected the repeated query to keep finding the edge, got %d then %d", len(first), len(second))
	}

	engine.InvalidateAll()
	third := engine.Query(q)
	if len(third) != 1 {
		t.Fatalf("expected a fresh query after manual invalidation to still find the edge, got %d", len(third))
	}
}

func TestRelationshipQueryEngineInvalidatesOnMutation(t *testing.T) {
	graph := NewDependencyGraph()
	a, b := HashValue([]byte("a")), HashValue([]byte("b"))
	mustAdd(t, graph, DependencyEdge{Source: a, Target: b, Kind: DependencyStrong})

	engine := NewRelationshipQueryEngine(graph)
	q := NewRelationshipQuery(a, b)
	if paths := engine.Query(q); len(paths) != 1 {
		t.Fatalf("expected one cached path before removal, got %d", len(paths))
	}

	graph.RemoveDependency(a, b, DependencyStrong)
	if paths := engine.Query(q); len(paths) != 0 {
		t.Fatalf("expected RemoveDependency to invalidate the cache so the query reflects the removed edge, got %d paths", len(paths))
	}

	mustAdd(t, graph, DependencyEdge{Source: a, Target: b, Kind: DependencyStrong})
	if paths := engine.Query(q); len(paths) != 1 {
		t.Fatalf("expected AddDependency to invalidate the cache so the re-added edge is found, got %d paths", len(paths))
	}
}

func mustAdd(t *testing.T, g *DependencyGraph, edge DependencyEdge) {
	t.Helper()
	if err := g.AddDependency(edge); err != nil {
		t.Fatalf("add dependency: %v", err)
	}
}
