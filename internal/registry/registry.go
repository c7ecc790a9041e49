package registry

import (
	"sync"
	"time"

	"iam-sentinel/internal/domain"
)

// Snapshot is a deep, independent copy of the registry state. Evaluation
// stages receive snapshots, never the live maps, so concurrent readers can
// never observe a mutation in progress.
type Snapshot struct {
	Identities   map[string]domain.Identity
	Roles        map[string]domain.Role
	Entitlements map[string]domain.Entitlement
	Events       []domain.ChangeEvent
}

// Role resolves a role id, reporting whether it exists. Dangling references
// are expected and tolerated by callers.
func (s Snapshot) Role(id string) (domain.Role, bool) {
	r, ok := s.Roles[id]
	return r, ok
}

// ResolveRoles maps role ids to Role values, silently dropping unresolved ids.
func (s Snapshot) ResolveRoles(ids []string) []domain.Role {
	roles := make([]domain.Role, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.Roles[id]; ok {
			roles = append(roles, r)
		}
	}
	return roles
}

// Registry owns the canonical mutable identity state. All mutation flows
// through its methods, which are internally serialized; readers get deep
// copies. Mutators on an unknown id return a nil/false sentinel and leave
// state untouched; they never partially apply.
type Registry struct {
	mu           sync.RWMutex
	identities   map[string]*domain.Identity
	roles        map[string]domain.Role
	entitlements map[string]domain.Entitlement
	events       []domain.ChangeEvent
	now          func() time.Time
}

// Option configures the Registry.
type Option func(*Registry)

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		identities:   make(map[string]*domain.Identity),
		roles:        make(map[string]domain.Role),
		entitlements: make(map[string]domain.Entitlement),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns a deep copy of the current state.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Identities:   make(map[string]domain.Identity, len(r.identities)),
		Roles:        make(map[string]domain.Role, len(r.roles)),
		Entitlements: make(map[string]domain.Entitlement, len(r.entitlements)),
		Events:       append([]domain.ChangeEvent(nil), r.events...),
	}
	for id, identity := range r.identities {
		snap.Identities[id] = identity.Clone()
	}
	for id, role := range r.roles {
		role.Domains = append([]string(nil), role.Domains...)
		snap.Roles[id] = role
	}
	for id, ent := range r.entitlements {
		snap.Entitlements[id] = ent
	}
	return snap
}

// UpsertIdentity inserts or replaces an identity by id.
func (r *Registry) UpsertIdentity(identity domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := identity.Clone()
	r.identities[identity.ID] = &clone
}

// UpsertRole inserts or replaces a role by id.
func (r *Registry) UpsertRole(role domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role.Domains = append([]string(nil), role.Domains...)
	r.roles[role.ID] = role
}

// UpsertEntitlement inserts or replaces an entitlement by id.
func (r *Registry) UpsertEntitlement(ent domain.Entitlement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entitlements[ent.ID] = ent
}

// Identity returns a deep copy of one identity.
func (r *Registry) Identity(id string) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.identities[id]
	if !ok {
		return domain.Identity{}, false
	}
	return identity.Clone(), true
}

// IdentityIDs lists all known identity ids.
func (r *Registry) IdentityIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.identities))
	for id := range r.identities {
		ids = append(ids, id)
	}
	return ids
}

// RemoveIdentity deletes an identity, reporting whether it existed.
func (r *Registry) RemoveIdentity(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.identities[id]; !ok {
		return false
	}
	delete(r.identities, id)
	return true
}

// AssignRole adds a role to an identity's list (idempotent on membership) and
// appends a ROLE_ASSIGNED event. Returns nil if the identity is unknown.
func (r *Registry) AssignRole(identityID, roleID string) *domain.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identities[identityID]
	if !ok {
		return nil
	}
	if !identity.HasRole(roleID) {
		identity.Roles = append(identity.Roles, roleID)
	}
	return r.appendEvent(domain.ChangeEvent{
		Type:       domain.EventRoleAssigned,
		IdentityID: identityID,
		RoleID:     roleID,
	})
}

// RevokeRole removes a role from an identity's list (no-op if absent) and
// appends a ROLE_REVOKED event. Returns nil if the identity is unknown.
func (r *Registry) RevokeRole(identityID, roleID string) *domain.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identities[identityID]
	if !ok {
		return nil
	}
	identity.Roles = removeString(identity.Roles, roleID)
	return r.appendEvent(domain.ChangeEvent{
		Type:       domain.EventRoleRevoked,
		IdentityID: identityID,
		RoleID:     roleID,
	})
}

// AssignEntitlement mirrors AssignRole for entitlements.
func (r *Registry) AssignEntitlement(identityID, entitlementID string) *domain.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identities[identityID]
	if !ok {
		return nil
	}
	present := false
	for _, e := range identity.Entitlements {
		if e == entitlementID {
			present = true
			break
		}
	}
	if !present {
		identity.Entitlements = append(identity.Entitlements, entitlementID)
	}
	return r.appendEvent(domain.ChangeEvent{
		Type:          domain.EventEntitlementAssigned,
		IdentityID:    identityID,
		EntitlementID: entitlementID,
	})
}

// RevokeEntitlement mirrors RevokeRole for entitlements.
func (r *Registry) RevokeEntitlement(identityID, entitlementID string) *domain.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identities[identityID]
	if !ok {
		return nil
	}
	identity.Entitlements = removeString(identity.Entitlements, entitlementID)
	return r.appendEvent(domain.ChangeEvent{
		Type:          domain.EventEntitlementRevoked,
		IdentityID:    identityID,
		EntitlementID: entitlementID,
	})
}

// RecordSnapshot appends to an identity's history. A zero timestamp means
// "now". Unknown identities are silently ignored.
func (r *Registry) RecordSnapshot(identityID string, snap domain.StateSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identities[identityID]
	if !ok {
		return
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = r.now()
	}
	snap.Roles = append([]string(nil), snap.Roles...)
	snap.Entitlements = append([]string(nil), snap.Entitlements...)
	identity.History = append(identity.History, snap)
}

// Events returns a copy of the change event log, in insertion order.
func (r *Registry) Events() []domain.ChangeEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.ChangeEvent(nil), r.events...)
}

// appendEvent stamps and stores an event. Caller must hold the write lock, so
// the list edit and the event append are observed atomically.
func (r *Registry) appendEvent(event domain.ChangeEvent) *domain.ChangeEvent {
	event.Timestamp = r.now()
	r.events = append(r.events, event)
	return &event
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, v := range list {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
