package hedge

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Registry owns hedge records and top-up requests, keyed by sequential
// ids starting at 1. Deleted hedges leave a tombstone so "created then
// deleted" stays distinguishable from "never created" for auditing.
//
// Not safe for concurrent use; the engine serializes access.
type Registry struct {
	hedges     map[uint64]*Hedge
	tombstones map[uint64]struct{}
	nextHedge  uint64

	topUps    map[uint64]*TopUpRequest
	nextTopUp uint64
}

func NewRegistry() *Registry {
	return &Registry{
		hedges:     make(map[uint64]*Hedge),
		tombstones: make(map[uint64]struct{}),
		nextHedge:  1,
		topUps:     make(map[uint64]*TopUpRequest),
		nextTopUp:  1,
	}
}

// Insert assigns the next sequential id and stores the hedge.
func (r *Registry) Insert(h *Hedge) uint64 {
	h.ID = r.nextHedge
	r.nextHedge++
	r.hedges[h.ID] = h
	return h.ID
}

// Get returns the live hedge record for id.
func (r *Registry) Get(id uint64) (*Hedge, bool) {
	h, ok := r.hedges[id]
	return h, ok
}

// WasDeleted reports whether id once held a hedge that has since been
// cleared. A deleted id is permanently unusable.
func (r *Registry) WasDeleted(id uint64) bool {
	_, ok := r.tombstones[id]
	return ok
}

// Delete clears the record and tombstones the id.
func (r *Registry) Delete(id uint64) error {
	if _, ok := r.hedges[id]; !ok {
		return fmt.Errorf("hedge %d not found", id)
	}
	delete(r.hedges, id)
	r.tombstones[id] = struct{}{}
	return nil
}

// Count returns the number of live hedges.
func (r *Registry) Count() int {
	return len(r.hedges)
}

// NextID returns the id the next Insert will assign.
func (r *Registry) NextID() uint64 {
	return r.nextHedge
}

// NewTopUp allocates a top-up request attached to the hedge.
func (r *Registry) NewTopUp(h *Hedge, requester uuid.UUID, at time.Time) *TopUpRequest {
	req := &TopUpRequest{
		ID:          r.nextTopUp,
		HedgeID:     h.ID,
		Requester:   requester,
		RequestedAt: at,
		State:       TopUpRequested,
	}
	r.nextTopUp++
	r.topUps[req.ID] = req
	h.TopUps = append(h.TopUps, req.ID)
	return req
}

// GetTopUp returns the top-up request for id.
func (r *Registry) GetTopUp(id uint64) (*TopUpRequest, bool) {
	req, ok := r.topUps[id]
	return req, ok
}

// PendingTopUp returns the requester's open request on a hedge, if any.
func (r *Registry) PendingTopUp(h *Hedge, requester uuid.UUID) (*TopUpRequest, bool) {
	for _, id := range h.TopUps {
		req, ok := r.topUps[id]
		if ok && req.State == TopUpRequested && req.Requester == requester {
			return req, true
		}
	}
	return nil, false
}
