// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package authz

import (
	"context"
	"time"

	"github.com/samber/oops"
)

// Requirement is one (resource, permission) obligation.
type Requirement struct {
	Key        AclKey
	Permission Permission
}

// AuthorizationResult partitions a requirement set into granted and denied.
// Denied entries keep their AclKey so callers can render resource-qualified
// errors. It is deliberately not a boolean.
type AuthorizationResult struct {
	Granted []Requirement
	Denied  []Requirement
}

// FullyGranted reports whether no requirement was denied.
func (r AuthorizationResult) FullyGranted() bool {
	return len(r.Denied) == 0
}

// DeniedKeys returns the AclKeys of all denied requirements.
func (r AuthorizationResult) DeniedKeys() []AclKey {
	keys := make([]AclKey, 0, len(r.Denied))
	for _, req := range r.Denied {
		keys = append(keys, req.Key)
	}
	return keys
}

// AclStore reads the permission store this engine evaluates. The store is
// mutated by an external grants component; readers tolerate concurrent
// updates without locking writers out (last-writer-wins per Ace).
type AclStore interface {
	// AclsFor returns, in one round-trip, the Acls for every requested key.
	// Keys with no Acl are simply absent from the result.
	AclsFor(ctx context.Context, keys []AclKey, principals []Principal) (map[string]Acl, error)
}

// AclWriter is the mutation surface of an ACL store. Both store
// implementations satisfy it with the same shape, so callers can swap one
// for the other.
type AclWriter interface {
	// UpdateAcl applies one grants mutation to every Ace of the Acl.
	UpdateAcl(ctx context.Context, acl Acl, action Action) error
}

// Authorizer evaluates batched access requirements against an AclStore.
type Authorizer struct {
	store AclStore
	now   func() time.Time
}

// NewAuthorizer creates an Authorizer reading from the given store.
func NewAuthorizer(store AclStore) *Authorizer {
	return &Authorizer{store: store, now: time.Now}
}

// CheckAccess resolves the effective permission of the caller's principals on
// every requirement's AclKey and partitions the requirements into granted and
// denied. The whole batch is resolved with a single store round-trip; an
// unknown AclKey is implicitly denied, never an error.
func (a *Authorizer) CheckAccess(ctx context.Context, principals []Principal, reqs []Requirement) (AuthorizationResult, error) {
	start := a.now()

	keys := dedupeKeys(reqs)
	acls, err := a.store.AclsFor(ctx, keys, principals)
	if err != nil {
		return AuthorizationResult{}, oops.Code("ACL_LOAD_FAILED").With("keys", len(keys)).Wrap(err)
	}

	principalSet := make(map[Principal]struct{}, len(principals))
	for _, p := range principals {
		principalSet[p] = struct{}{}
	}

	now := a.now()
	effective := make(map[string]PermissionSet, len(acls))
	for mapKey, acl := range acls {
		perms := NewPermissionSet()
		for _, ace := range acl.Aces {
			if _, ok := principalSet[ace.Principal]; !ok {
				continue
			}
			if ace.Expired(now) {
				continue
			}
			for p := range ace.Permissions {
				perms.Add(p)
			}
		}
		effective[mapKey] = perms
	}

	var result AuthorizationResult
	for _, req := range reqs {
		if perms, ok := effective[req.Key.MapKey()]; ok && perms.Has(req.Permission) {
			result.Granted = append(result.Granted, req)
		} else {
			result.Denied = append(result.Denied, req)
		}
	}

	observeCheck(a.now().Sub(start), len(reqs), len(result.Denied))
	return result, nil
}

// dedupeKeys returns the distinct AclKeys across the requirement set, in
// first-seen order.
func dedupeKeys(reqs []Requirement) []AclKey {
	seen := make(map[string]struct{}, len(reqs))
	keys := make([]AclKey, 0, len(reqs))
	for _, req := range reqs {
		mk := req.Key.MapKey()
		if _, ok := seen[mk]; ok {
			continue
		}
		seen[mk] = struct{}{}
		keys = append(keys, req.Key)
	}
	return keys
}
