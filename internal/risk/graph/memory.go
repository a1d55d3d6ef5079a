// Package graph provides an in-memory relationship graph for the relational
// risk layer. Production deployments replace it with an adapter over the
// organization's party-relationship service; the layer only sees the
// risk.GraphSource interface either way.
package graph

import (
	"context"
	"sync"

	"txgate/internal/risk"
	id "txgate/pkg/domain"
)

type linkKey struct {
	org       id.OrganizationID
	submitter id.ReviewerID
	vendor    string
}

// InMemoryGraph holds declared party relationships.
type InMemoryGraph struct {
	mu     sync.RWMutex
	links  map[linkKey]bool
	cycles map[string]int // vendorID → shortest payment cycle depth
	degree map[string]int // vendorID → related-party count
}

// NewInMemoryGraph creates an empty relationship graph.
func NewInMemoryGraph() *InMemoryGraph {
	return &InMemoryGraph{
		links:  make(map[linkKey]bool),
		cycles: make(map[string]int),
		degree: make(map[string]int),
	}
}

// LinkVendorToSubmitter records that a vendor and submitter share an owner,
// address, or bank account.
func (g *InMemoryGraph) LinkVendorToSubmitter(orgID id.OrganizationID, submitterID id.ReviewerID, vendorID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.links[linkKey{orgID, submitterID, vendorID}] = true
	g.degree[vendorID]++
}

// RecordPaymentCycle records the shortest known payment cycle through a
// vendor.
func (g *InMemoryGraph) RecordPaymentCycle(vendorID string, depth int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if current, ok := g.cycles[vendorID]; !ok || depth < current {
		g.cycles[vendorID] = depth
	}
}

// Relations implements risk.GraphSource.
func (g *InMemoryGraph) Relations(_ context.Context, orgID id.OrganizationID, submitterID id.ReviewerID, vendorID string) (risk.RelationReport, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return risk.RelationReport{
		VendorLinkedToSubmitter: g.links[linkKey{orgID, submitterID, vendorID}],
		CircularPaymentDepth:    g.cycles[vendorID],
		RelatedPartyCount:       g.degree[vendorID],
	}, nil
}
