package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// maxTraversalDepth bounds RelationshipQueryEngine.Query's breadth-first
// search. AddDependency does not reject cycles, and a FindAllPaths query
// revisits nodes, so without this bound a cycle would run unbounded.
const maxTraversalDepth = 10

const defaultPathCacheTTL = 5 * time.Minute

// ResourceRegistry is the authoritative store of ResourceRegisters, keyed
// by id. There is no index by domain or owner: ByDomain and ByOwner scan
// every registered resource.
type ResourceRegistry struct {
	mu   sync.RWMutex
	byID map[EntityID]*ResourceRegister
}

func NewResourceRegistry() *ResourceRegistry {
	return &ResourceRegistry{byID: map[EntityID]*ResourceRegister{}}
}

// Register adds r to the registry, keyed by its own id.
func (reg *ResourceRegistry) Register(r *ResourceRegister) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.byID[r.ID()] = r
}

// Get returns the register with the given id.
func (reg *ResourceRegistry) Get(id EntityID) (*ResourceRegister, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.byID[id]
	if !ok {
		return nil, NewErrorFor(ErrResourceState, id, "resource register not found")
	}
	return r, nil
}

// Deregister removes id from the registry. Deregistering a consumed or
// archived register is how a caller frees its slot once it's no longer
// reachable from any live query.
func (reg *ResourceRegistry) Deregister(id EntityID) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.byID, id)
}

// ByDomain returns every registered resource whose "domain" metadata field
// equals domain.
func (reg *ResourceRegistry) ByDomain(domain string) []*ResourceRegister {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	var out []*ResourceRegister
	for _, r := range reg.byID {
		if r.Metadata()["domain"] == domain {
			out = append(out, r)
		}
	}
	return out
}

// ByOwner returns every registered resource owned by owner.
func (reg *ResourceRegistry) ByOwner(owner Address) []*ResourceRegister {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	var out []*ResourceRegister
	for _, r := range reg.byID {
		if r.Owner() == owner {
			out = append(out, r)
		}
	}
	return out
}

// RelationshipPath is an ordered chain of dependency edges connecting a
// source resource to a target, annotated with every domain traversed.
type RelationshipPath struct {
	Source  EntityID
	Target  EntityID
	Edges   []DependencyEdge
	Domains map[string]bool
}

func newRelationshipPath(source, target EntityID) *RelationshipPath {
	return &RelationshipPath{Source: source, Target: target, Domains: map[string]bool{}}
}

func (p *RelationshipPath) extend(edge DependencyEdge) *RelationshipPath {
	out := &RelationshipPath{Source: p.Source, Target: edge.Target, Domains: map[string]bool{}}
	out.Edges = append(append([]DependencyEdge{}, p.Edges...), edge)
	for d := range p.Domains {
		out.Domains[d] = true
	}
	if edge.SourceDomain != "" {
		out.Domains[edge.SourceDomain] = true
	}
	if edge.TargetDomain != "" {
		out.Domains[edge.TargetDomain] = true
	}
	return out
}

// Length reports the number of hops in the path.
func (p *RelationshipPath) Length() int { return len(p.Edges) }

// RelationshipQuery selects which dependency edges a traversal may follow
// and how deep it may go.
type RelationshipQuery struct {
	Source            EntityID
	Target            *EntityID
	Kinds             map[DependencyKind]bool
	MaxDepth          int
	IncludeDomains    map[string]bool
	ExcludeDomains    map[string]bool
	FindAllPaths      bool
}

// NewRelationshipQuery builds a query from source to target with the
// default traversal depth, stopping at the first path found.
func NewRelationshipQuery(source, target EntityID) RelationshipQuery {
	return RelationshipQuery{Source: source, Target: &target, MaxDepth: maxTraversalDepth}
}

// FromSource builds a query that explores every resource reachable from
// source, ignoring any specific target.
func FromSource(source EntityID) RelationshipQuery {
	return RelationshipQuery{Source: source, MaxDepth: maxTraversalDepth, FindAllPaths: true}
}

func (q RelationshipQuery) cacheKey() string {
	target := "*"
	if q.Target != nil {
		target = q.Target.String()
	}
	// fmt prints map keys in sorted order, so equal filters give equal keys.
	return fmt.Sprintf("%s>%s:%d:%v:%v:%v:%v", q.Source.String(), target, q.MaxDepth, q.FindAllPaths,
		q.Kinds, q.IncludeDomains, q.ExcludeDomains)
}

func (q RelationshipQuery) allowsDomain(domain string) bool {
	if domain == "" {
		return true
	}
	if len(q.ExcludeDomains) > 0 && q.ExcludeDomains[domain] {
		return false
	}
	if len(q.IncludeDomains) > 0 && !q.IncludeDomains[domain] {
		return false
	}
	return true
}

func (q RelationshipQuery) allowsKind(kind DependencyKind) bool {
	return len(q.Kinds) == 0 || q.Kinds[kind]
}

// RelationshipQueryEngine answers RelationshipQuery traversals over a
// DependencyGraph, caching results for a bounded TTL so that a hot query
// key (e.g. a UI re-rendering the same resource's relationships) does not
// re-walk the graph on every call.
type RelationshipQueryEngine struct {
	graph *DependencyGraph
	cache *expirable.LRU[string, []*RelationshipPath]
}

func NewRelationshipQueryEngine(graph *DependencyGraph) *RelationshipQueryEngine {
	e := &RelationshipQueryEngine{
		graph: graph,
		cache: expirable.NewLRU[string, []*RelationshipPath](1024, nil, defaultPathCacheTTL),
	}
	graph.OnMutate(e.InvalidateAll)
	return e
}

// Query performs a breadth-first traversal of the dependency graph
// honoring q's depth, kind and domain filters, returning the shortest path
// to q.Target (or every reachable path, if q.FindAllPaths).
func (e *RelationshipQueryEngine) Query(q RelationshipQuery) []*RelationshipPath {
	key := q.cacheKey()
	if cached, ok := e.cache.Get(key); ok {
		return cached
	}

	var results []*RelationshipPath
	visited := map[EntityID]bool{q.Source: true}
	frontier := []*RelationshipPath{newRelationshipPath(q.Source, q.Source)}

	for depth := 0; depth < q.MaxDepth && len(frontier) > 0; depth++ {
		var next []*RelationshipPath
		for _, path := range frontier {
			for _, edge := range e.graph.DependenciesOf(path.Target) {
				if !q.allowsKind(edge.Kind) || !q.allowsDomain(edge.SourceDomain) || !q.allowsDomain(edge.TargetDomain) {
					continue
				}
				if visited[edge.Target] && !q.FindAllPaths {
					continue
				}
				extended := path.extend(edge)
				if q.Target != nil && edge.Target == *q.Target {
					results = append(results, extended)
					if !q.FindAllPaths {
						e.cache.Add(key, results)
						return results
					}
					continue
				}
				if q.Target == nil {
					results = append(results, extended)
				}
				visited[edge.Target] = true
				next = append(next, extended)
			}
		}
		frontier = next
	}

	e.cache.Add(key, results)
	return results
}

// InvalidateAll clears the path cache, called after any mutation to the
// underlying dependency graph so stale paths are never served.
func (e *RelationshipQueryEngine) InvalidateAll() {
	e.cache.Purge()
}
