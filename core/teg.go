package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// EdgeCondition governs when a TEG edge fires relative to its source node's
// outcome.
type EdgeCondition uint8

const (
	OnSuccess EdgeCondition = iota
	OnFailure
	OnAlways
)

func (c EdgeCondition) String() string {
	switch c {
	case OnSuccess:
		return "Success"
	case OnFailure:
		return "Failure"
	case OnAlways:
		return "Always"
	default:
		return "Unknown"
	}
}

// NodeStatus is the terminal (or pre-terminal) state of one TEG node.
type NodeStatus uint8

const (
	NodePending NodeStatus = iota
	NodeRunning
	NodeSucceeded
	NodeFailed
	NodeSkipped
)

func (s NodeStatus) String() string {
	switch s {
	case NodePending:
		return "Pending"
	case NodeRunning:
		return "Running"
	case NodeSucceeded:
		return "Succeeded"
	case NodeFailed:
		return "Failed"
	case NodeSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

func (s NodeStatus) terminal() bool {
	return s == NodeSucceeded || s == NodeFailed || s == NodeSkipped
}

// TEGEdge connects two nodes by id, firing under Condition, and optionally
// copying a subset of the source's result metadata into the destination
// node's input parameters.
type TEGEdge struct {
	From      string
	To        string
	Condition EdgeCondition
	DataFlow  []string
}

// TEGNode is one unit of work in a temporal effect graph: an Effect plus its
// scheduling parameters.
type TEGNode struct {
	ID         string
	Effect     Effect
	Timeout    time.Duration
	MaxRetries int

	mu      sync.Mutex
	status  NodeStatus
	retries int
	params  map[string]string
	outcome *EffectOutcome
	err     error
}

func newTEGNode(id string, effect Effect, timeout time.Duration, maxRetries int) *TEGNode {
	return &TEGNode{
		ID: id, Effect: effect, Timeout: timeout, MaxRetries: maxRetries,
		status: NodePending, params: map[string]string{},
	}
}

func (n *TEGNode) Status() NodeStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

func (n *TEGNode) setStatus(s NodeStatus) {
	n.mu.Lock()
	n.status = s
	n.mu.Unlock()
}

// setParam records an input parameter propagated from an upstream node's
// data-flow edge. Later writers of the same key win, a last-write-wins
// merge for repeated config keys.
func (n *TEGNode) setParam(key, value string) {
	n.mu.Lock()
	n.params[key] = value
	n.mu.Unlock()
}

// TemporalEffectGraph is a DAG of TEGNodes connected by typed TEGEdges,
// executed in topological order with bounded concurrency, per-node
// timeout/retry, and data-flow propagation between dependent nodes.
type TemporalEffectGraph struct {
	mu    sync.RWMutex
	nodes map[string]*TEGNode
	out   map[string][]TEGEdge // edges keyed by From
	in    map[string][]TEGEdge // edges keyed by To

	maxConcurrency int64
	log            *logrus.Entry

	nodeOutcomes *prometheus.CounterVec
	nodeRetries  prometheus.Counter
}

// NewTemporalEffectGraph builds an empty graph allowing up to maxConcurrency
// nodes to run at once; a value <= 0 is treated as 1, so nodes run one at a
// time unless the caller passes a larger limit.
func NewTemporalEffectGraph(maxConcurrency int64) *TemporalEffectGraph {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &TemporalEffectGraph{
		nodes:          map[string]*TEGNode{},
		out:            map[string][]TEGEdge{},
		in:             map[string][]TEGEdge{},
		maxConcurrency: maxConcurrency,
		log:            logrus.WithField("component", "teg"),
		nodeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "causality_teg_node_outcomes_total",
			Help: "Count of TEG node terminal outcomes by status.",
		}, []string{"status"}),
		nodeRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "causality_teg_node_retries_total",
			Help: "Count of TEG node retry attempts.",
		}),
	}
}

// Collectors exposes this graph's Prometheus metrics so a caller can
// register them against its own registry without this package owning the
// registry.
func (g *TemporalEffectGraph) Collectors() []prometheus.Collector {
	return []prometheus.Collector{g.nodeOutcomes, g.nodeRetries}
}

// AddNode registers effect as a node in the graph.
func (g *TemporalEffectGraph) AddNode(id string, effect Effect, timeout time.Duration, maxRetries int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[id]; exists {
		return NewError(ErrInternal, "node %q already exists in graph", id)
	}
	g.nodes[id] = newTEGNode(id, effect, timeout, maxRetries)
	return nil
}

// AddEdge connects two already-added nodes.
func (g *TemporalEffectGraph) AddEdge(edge TEGEdge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[edge.From]; !ok {
		return NewError(ErrInternal, "edge source %q not found", edge.From)
	}
	if _, ok := g.nodes[edge.To]; !ok {
		return NewError(ErrInternal, "edge target %q not found", edge.To)
	}
	g.out[edge.From] = append(g.out[edge.From], edge)
	g.in[edge.To] = append(g.in[edge.To], edge)
	return nil
}

// Node returns the node with the given id, or nil.
func (g *TemporalEffectGraph) Node(id string) *TEGNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// eligible reports whether every incoming edge of node has either fired
// (its source's terminal status satisfies the edge condition) or will never
// fire (its source terminated without satisfying it), and returns whether
// the node should run at all (false means Skipped: no firing incoming edge
// and it does have incoming edges).
func (g *TemporalEffectGraph) eligible(id string) (ready bool, shouldRun bool) {
	edges := g.in[id]
	if len(edges) == 0 {
		return true, true
	}
	anyFired := false
	for _, e := range edges {
		src := g.nodes[e.From]
		if !src.Status().terminal() {
			return false, false
		}
		if edgeFires(e.Condition, src.Status()) {
			anyFired = true
			for _, key := range e.DataFlow {
				src.mu.Lock()
				var v string
				if src.outcome != nil {
					v = src.outcome.Metadata[key]
				}
				src.mu.Unlock()
				g.nodes[id].setParam(key, v)
			}
		}
	}
	return true, anyFired
}

func edgeFires(cond EdgeCondition, status NodeStatus) bool {
	switch cond {
	case OnSuccess:
		return status == NodeSucceeded
	case OnFailure:
		return status == NodeFailed
	case OnAlways:
		return true
	default:
		return false
	}
}

// Run executes the graph to completion (every reachable node reaches a
// terminal status), honoring ctx cancellation: all Not-Yet-Started nodes
// become Skipped, and an in-progress attempt keeps running until it ends or
// reaches its node's own timeout, after which no further retry starts.
func (g *TemporalEffectGraph) Run(ctx context.Context, effectCtx *EffectContext) error {
	g.mu.Lock()
	pending := make(map[string]bool, len(g.nodes))
	for id := range g.nodes {
		pending[id] = true
	}
	g.mu.Unlock()

	sem := semaphore.NewWeighted(g.maxConcurrency)

	for len(pending) > 0 {
		if ctx.Err() != nil {
			g.mu.Lock()
			for id := range pending {
				g.nodes[id].setStatus(NodeSkipped)
				delete(pending, id)
			}
			g.mu.Unlock()
			break
		}

		var runnable []string
		var skippable []string
		g.mu.RLock()
		for id := range pending {
			ready, shouldRun := g.eligible(id)
			if !ready {
				continue
			}
			if shouldRun {
				runnable = append(runnable, id)
			} else {
				skippable = append(skippable, id)
			}
		}
		g.mu.RUnlock()

		if len(runnable) == 0 && len(skippable) == 0 {
			// No node is eligible yet but pending remains: every remaining
			// node is blocked on a node that is itself blocked, i.e. a
			// cycle. Nothing further can progress.
			break
		}

		for _, id := range skippable {
			g.nodes[id].setStatus(NodeSkipped)
			g.nodeOutcomes.WithLabelValues(NodeSkipped.String()).Inc()
			delete(pending, id)
		}

		grp, gctx := errgroup.WithContext(ctx)
		for _, id := range runnable {
			id := id
			delete(pending, id)
			if err := sem.Acquire(ctx, 1); err != nil {
				g.nodes[id].setStatus(NodeSkipped)
				continue
			}
			grp.Go(func() error {
				defer sem.Release(1)
				g.runNode(gctx, id, effectCtx)
				return nil
			})
		}
		_ = grp.Wait()
	}
	return nil
}

// runNode executes one node with its timeout and retry policy, logging and
// recording metrics at each terminal transition.
func (g *TemporalEffectGraph) runNode(ctx context.Context, id string, effectCtx *EffectContext) {
	node := g.nodes[id]
	node.setStatus(NodeRunning)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = 0

	var lastErr error
	var outcome *EffectOutcome
	for attempt := 0; attempt <= node.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := policy.NextBackOff()
			g.nodeRetries.Inc()
			node.mu.Lock()
			node.retries++
			node.mu.Unlock()
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				lastErr = ctx.Err()
				goto done
			}
		}

		nodeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), effectiveTimeout(node.Timeout))
		outcome, lastErr = g.executeOnce(nodeCtx, node, effectCtx)
		cancel()
		if lastErr == nil {
			break
		}
		g.log.WithFields(logrus.Fields{"node": id, "attempt": attempt, "error": lastErr}).Warn("teg node attempt failed")
	}

done:
	node.mu.Lock()
	node.outcome = outcome
	node.err = lastErr
	node.mu.Unlock()

	if lastErr == nil {
		node.setStatus(NodeSucceeded)
		g.nodeOutcomes.WithLabelValues(NodeSucceeded.String()).Inc()
		g.log.WithField("node", id).Info("teg node succeeded")
	} else {
		node.setStatus(NodeFailed)
		g.nodeOutcomes.WithLabelValues(NodeFailed.String()).Inc()
		g.log.WithFields(logrus.Fields{"node": id, "error": lastErr}).Error("teg node exhausted retries")
	}
}

func effectiveTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}

func (g *TemporalEffectGraph) executeOnce(ctx context.Context, node *TEGNode, effectCtx *EffectContext) (*EffectOutcome, error) {
	result := make(chan struct {
		outcome *EffectOutcome
		err     error
	}, 1)
	go func() {
		o, err := node.Effect.Execute(effectCtx)
		result <- struct {
			outcome *EffectOutcome
			err     error
		}{o, err}
	}()
	select {
	case r := <-result:
		return r.outcome, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("node %s: %w", node.ID, ctx.Err())
	}
}
