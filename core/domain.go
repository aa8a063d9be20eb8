package core

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

// DomainID identifies one external execution environment (a chain or other
// ledger) reachable through a Domain adapter.
type DomainID string

// TxID is an adapter-assigned transaction identifier, opaque to the core.
type TxID string

// Transaction is submitted to a domain's adapter for execution.
type Transaction struct {
	DomainID   DomainID
	TxType     string
	Parameters map[string]string
}

// FactQuery asks a domain adapter to observe some externally-held fact,
// optionally pinned to a specific point in the domain's history.
type FactQuery struct {
	DomainID    DomainID
	FactType    string
	Parameters  map[string]string
	BlockHeight *uint64
	BlockHash   *string
	Timestamp   *int64
}

// Receipt is the adapter's report of a submitted transaction's outcome.
type Receipt struct {
	TxHash      string
	BlockHeight uint64
	Status      string
	Logs        []string
	GasUsed     uint64
}

// DomainErrorClass tells the TEG retry logic whether a domain error is
// worth retrying.
type DomainErrorClass uint8

const (
	DomainErrorTransient DomainErrorClass = iota
	DomainErrorPermanent
)

func (c DomainErrorClass) String() string {
	if c == DomainErrorPermanent {
		return "Permanent"
	}
	return "Transient"
}

// Domain is the abstract execution environment a cross-domain effect talks
// to: submit a transaction, wait for it to confirm, or observe a fact
// already recorded there. Capabilities() advertises what this adapter can do
// so a DomainRegistry can select it by required capability rather than by
// hardcoded id.
type Domain interface {
	ID() DomainID
	Capabilities() map[string]bool
	SubmitTransaction(ctx context.Context, tx Transaction) (TxID, error)
	WaitForConfirmation(ctx context.Context, tx TxID, timeout time.Duration) (*Receipt, error)
	ObserveFact(ctx context.Context, query FactQuery) (Value, map[string]string, error)
	ClassifyError(err error) DomainErrorClass
}

// DomainRegistry maps DomainID to adapter, additionally supporting
// capability-matching selection when the caller cares about what an adapter
// can do rather than which one it is.
type DomainRegistry struct {
	mu      sync.RWMutex
	domains map[DomainID]Domain
	log     *logrus.Entry
}

func NewDomainRegistry() *DomainRegistry {
	return &DomainRegistry{domains: map[DomainID]Domain{}, log: logrus.WithField("component", "domain_registry")}
}

// Register adds or replaces the adapter for its own DomainID.
func (r *DomainRegistry) Register(d Domain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domains[d.ID()] = d
	r.log.WithField("domain", d.ID()).Info("domain adapter registered")
}

// Get returns the adapter registered for id.
func (r *DomainRegistry) Get(id DomainID) (Domain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.domains[id]
	if !ok {
		return nil, NewError(ErrDomain, "no adapter registered for domain %q", id)
	}
	return d, nil
}

// SelectByCapabilities returns the first registered adapter whose advertised
// capabilities are a superset of required. Iteration order over the
// registry is unspecified; a caller needing a specific adapter should use
// Get with its DomainID instead.
func (r *DomainRegistry) SelectByCapabilities(required map[string]bool) (Domain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.domains {
		have := d.Capabilities()
		matched := true
		for cap, need := range required {
			if need && !have[cap] {
				matched = false
				break
			}
		}
		if matched {
			return d, nil
		}
	}
	return nil, NewError(ErrDomain, "no registered adapter satisfies the required capability set")
}

// AddressToEthereum converts a causality Address to a go-ethereum
// common.Address, for adapters whose wire format is EVM-shaped.
func AddressToEthereum(a Address) common.Address {
	return common.Address(a)
}

// EthereumToAddress converts a go-ethereum common.Address back to a
// causality Address.
func EthereumToAddress(a common.Address) Address {
	return Address(a)
}

// grpcConn is a pooled gRPC client connection, reused across adapter calls
// to the same endpoint rather than dialed fresh each time.
type grpcConn struct {
	*grpc.ClientConn
	endpoint string
	lastUsed time.Time
}

// GRPCAdapterPool manages reusable gRPC client connections to out-of-process
// domain adapters, keyed by endpoint. Idle connections past idleTTL are
// closed by a background reaper.
type GRPCAdapterPool struct {
	mu        sync.Mutex
	conns     map[string]*grpcConn
	idleTTL   time.Duration
	dialOpts  []grpc.DialOption
	closing   chan struct{}
	closeOnce sync.Once
}

// NewGRPCAdapterPool creates a pool that dials lazily and recycles
// connections idle for less than idleTTL.
func NewGRPCAdapterPool(idleTTL time.Duration, dialOpts ...grpc.DialOption) *GRPCAdapterPool {
	p := &GRPCAdapterPool{
		conns:    map[string]*grpcConn{},
		idleTTL:  idleTTL,
		dialOpts: dialOpts,
		closing:  make(chan struct{}),
	}
	go p.reap()
	return p
}

// Dial returns a grpc.ClientConnInterface for endpoint, reusing the pooled
// connection for that endpoint if there is one; its liveness is not checked.
func (p *GRPCAdapterPool) Dial(endpoint string) (grpc.ClientConnInterface, error) {
	p.mu.Lock()
	if c, ok := p.conns[endpoint]; ok {
		c.lastUsed = time.Now()
		p.mu.Unlock()
		return c.ClientConn, nil
	}
	p.mu.Unlock()

	cc, err := grpc.NewClient(endpoint, p.dialOpts...)
	if err != nil {
		return nil, Wrapf(err, "dialing domain adapter at %s", endpoint)
	}
	c := &grpcConn{ClientConn: cc, endpoint: endpoint, lastUsed: time.Now()}
	p.mu.Lock()
	p.conns[endpoint] = c
	p.mu.Unlock()
	return c.ClientConn, nil
}

// Close closes every pooled connection and stops the reaper.
func (p *GRPCAdapterPool) Close() {
	p.closeOnce.Do(func() {
		close(p.closing)
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, c := range p.conns {
			_ = c.ClientConn.Close()
		}
		p.conns = map[string]*grpcConn{}
	})
}

func (p *GRPCAdapterPool) reap() {
	if p.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(p.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-p.idleTTL)
			p.mu.Lock()
			for endpoint, c := range p.conns {
				if c.lastUsed.Before(cutoff) {
					_ = c.ClientConn.Close()
					delete(p.conns, endpoint)
				}
			}
			p.mu.Unlock()
		case <-p.closing:
			return
		}
	}
}
