// ABOUTME: Per-owner chat service registry.
// ABOUTME: Lazily creates and initializes one chat.Service per authenticated owner.

package api

import (
	"context"
	"sync"

	"github.com/2389/agentchat/internal/chat"
	"github.com/2389/agentchat/internal/profile"
)

// ServiceFactory builds an uninitialized chat service scoped to one owner.
type ServiceFactory func(ownerID string) *chat.Service

// Registry hands out one initialized chat.Service per owner. Services are
// created on first use and kept for the life of the process.
type Registry struct {
	factory  ServiceFactory
	profiles []profile.Profile

	mu       sync.Mutex
	services map[string]*chat.Service
}

// NewRegistry creates a Registry. The profiles are passed to each service's
// Initialize call.
func NewRegistry(factory ServiceFactory, profiles []profile.Profile) *Registry {
	return &Registry{
		factory:  factory,
		profiles: profiles,
		services: make(map[string]*chat.Service),
	}
}

// For returns the owner's chat service, initializing it on first use. An
// initialization failure is not cached, so a transient repository error
// does not wedge the owner permanently.
func (r *Registry) For(ctx context.Context, ownerID string) (*chat.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if svc, ok := r.services[ownerID]; ok {
		return svc, nil
	}
	svc := r.factory(ownerID)
	if err := svc.Initialize(ctx, r.profiles); err != nil {
		return nil, err
	}
	r.services[ownerID] = svc
	return svc, nil
}

// Profiles returns the agent profiles served to every owner.
func (r *Registry) Profiles() []profile.Profile {
	return r.profiles
}
