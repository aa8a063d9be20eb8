package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"causality/core"
)

// FakeDomain is an in-memory core.Domain adapter: transactions confirm
// immediately with a deterministic hash, facts come from a fixed table a
// test populates up front. No network, no real chain.
type FakeDomain struct {
	id           core.DomainID
	capabilities map[string]bool

	mu     sync.Mutex
	seq    uint64
	facts  map[string]core.Value
	sealed map[core.TxID]core.Receipt
}

// NewFakeDomain returns an adapter advertising the given capabilities.
func NewFakeDomain(id core.DomainID, capabilities map[string]bool) *FakeDomain {
	return &FakeDomain{
		id:           id,
		capabilities: capabilities,
		facts:        map[string]core.Value{},
		sealed:       map[core.TxID]core.Receipt{},
	}
}

func (d *FakeDomain) ID() core.DomainID { return d.id }

func (d *FakeDomain) Capabilities() map[string]bool { return d.capabilities }

// SetFact seeds a fact this adapter will report for the given type.
func (d *FakeDomain) SetFact(factType string, v core.Value) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.facts[factType] = v
}

func (d *FakeDomain) SubmitTransaction(ctx context.Context, tx core.Transaction) (core.TxID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	txID := core.TxID(fmt.Sprintf("%s-tx-%d", d.id, d.seq))
	d.sealed[txID] = core.Receipt{
		TxHash:      string(txID),
		BlockHeight: d.seq,
		Status:      "confirmed",
		Logs:        []string{fmt.Sprintf("submitted %s", tx.TxType)},
	}
	return txID, nil
}

func (d *FakeDomain) WaitForConfirmation(ctx context.Context, tx core.TxID, timeout time.Duration) (*core.Receipt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	receipt, ok := d.sealed[tx]
	if !ok {
		return nil, core.NewError(core.ErrDomain, "unknown transaction %s", tx)
	}
	return &receipt, nil
}

func (d *FakeDomain) ObserveFact(ctx context.Context, query core.FactQuery) (core.Value, map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.facts[query.FactType]
	if !ok {
		return core.Value{}, nil, core.NewError(core.ErrDomain, "no fact seeded for %s", query.FactType)
	}
	return v, map[string]string{"domain": string(d.id)}, nil
}

// ClassifyError always reports transient, so tests exercising retry/backoff
// don't need a second adapter shape just to flip this.
func (d *FakeDomain) ClassifyError(err error) core.DomainErrorClass {
	return core.DomainErrorTransient
}
