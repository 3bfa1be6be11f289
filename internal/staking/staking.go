package staking

import (
	"sync"

	"github.com/google/uuid"
)

// RoleSource answers whether a wallet holds a positive staked balance.
// Staked wallets ("miners") are authorized to settle and to delete
// expired positions, decentralizing the close-out housekeeping.
type RoleSource interface {
	IsStaked(wallet uuid.UUID) bool
}

// StaticSet is an in-memory RoleSource. A production deployment adapts
// the external staking ledger instead.
type StaticSet struct {
	mu  sync.RWMutex
	set map[uuid.UUID]struct{}
}

func NewStaticSet() *StaticSet {
	return &StaticSet{set: make(map[uuid.UUID]struct{})}
}

func (s *StaticSet) Add(wallet uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set[wallet] = struct{}{}
}

func (s *StaticSet) Remove(wallet uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.set, wallet)
}

func (s *StaticSet) IsStaked(wallet uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.set[wallet]
	return ok
}
