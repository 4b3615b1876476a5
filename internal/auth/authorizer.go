// Package auth implements the static capability predicate used by the
// engine's privileged operations. Creators and admins are configured as
// address allow-lists; the pause flag can be flipped at runtime by an admin
// endpoint.
package auth

import (
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/domain"
)

// StaticAuthorizer resolves capabilities from in-memory allow-lists. An empty
// creator list means market creation is open to everyone; the admin list is
// never open.
type StaticAuthorizer struct {
	mu       sync.RWMutex
	creators map[common.Address]struct{}
	admins   map[common.Address]struct{}
	paused   atomic.Bool
}

// New builds an authorizer from the configured allow-lists.
func New(creators, admins []common.Address) *StaticAuthorizer {
	a := &StaticAuthorizer{
		creators: make(map[common.Address]struct{}, len(creators)),
		admins:   make(map[common.Address]struct{}, len(admins)),
	}
	for _, addr := range creators {
		a.creators[addr] = struct{}{}
	}
	for _, addr := range admins {
		a.admins[addr] = struct{}{}
	}
	return a
}

// CanCreateMarkets reports whether addr may open new markets. With no creator
// allow-list configured, any address may create markets.
func (a *StaticAuthorizer) CanCreateMarkets(addr common.Address) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.creators) == 0 {
		return true
	}
	_, ok := a.creators[addr]
	return ok
}

// IsAdmin reports whether addr may perform administrative overrides.
func (a *StaticAuthorizer) IsAdmin(addr common.Address) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.admins[addr]
	return ok
}

// Paused reports whether the engine is globally paused.
func (a *StaticAuthorizer) Paused() bool {
	return a.paused.Load()
}

// SetPaused flips the global pause flag.
func (a *StaticAuthorizer) SetPaused(paused bool) {
	a.paused.Store(paused)
}

// AddCreator grants market-creation capability to addr at runtime.
func (a *StaticAuthorizer) AddCreator(addr common.Address) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creators[addr] = struct{}{}
}

// RemoveCreator revokes market-creation capability from addr. Revoking the
// last creator reopens creation to everyone, so callers that want a closed
// list should keep at least one entry.
func (a *StaticAuthorizer) RemoveCreator(addr common.Address) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.creators, addr)
}

// Compile-time interface check.
var _ domain.Authorizer = (*StaticAuthorizer)(nil)
