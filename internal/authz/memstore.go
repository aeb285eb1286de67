// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package authz

import (
	"context"
	"sync"

	"github.com/samber/oops"
)

// MemoryAclStore is an in-memory AclStore. It also implements UpdateAcl, the
// mutation surface of the external grants collaborator, so tests can exercise
// grant/revoke sequences. Updates are last-writer-wins per (key, principal).
type MemoryAclStore struct {
	mu   sync.RWMutex
	acls map[string]Acl
}

// NewMemoryAclStore creates an empty in-memory ACL store.
func NewMemoryAclStore() *MemoryAclStore {
	return &MemoryAclStore{acls: make(map[string]Acl)}
}

// AclsFor returns the stored Acls for the requested keys in one pass.
func (s *MemoryAclStore) AclsFor(_ context.Context, keys []AclKey, _ []Principal) (map[string]Acl, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]Acl, len(keys))
	for _, key := range keys {
		if acl, ok := s.acls[key.MapKey()]; ok {
			result[key.MapKey()] = copyAcl(acl)
		}
	}
	return result, nil
}

// UpdateAcl applies the external grants collaborator's mutation: ADD merges
// the given Aces' permissions into the stored grants, REMOVE subtracts them.
func (s *MemoryAclStore) UpdateAcl(_ context.Context, acl Acl, action Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mk := acl.Key.MapKey()
	stored, ok := s.acls[mk]
	if !ok {
		stored = Acl{Key: acl.Key}
	}

	switch action {
	case ActionAdd:
		for _, ace := range acl.Aces {
			stored = addAce(stored, ace)
		}
	case ActionRemove:
		for _, ace := range acl.Aces {
			stored = removeAce(stored, ace)
		}
	default:
		return oops.Code("INVALID_ACTION").With("action", string(action)).Errorf("unknown acl action %q", action)
	}

	s.acls[mk] = stored
	return nil
}

func addAce(acl Acl, ace Ace) Acl {
	for i, existing := range acl.Aces {
		if existing.Principal == ace.Principal {
			merged := NewPermissionSet()
			for p := range existing.Permissions {
				merged.Add(p)
			}
			for p := range ace.Permissions {
				merged.Add(p)
			}
			acl.Aces[i] = Ace{Principal: ace.Principal, Permissions: merged, ExpiresAt: ace.ExpiresAt}
			return acl
		}
	}
	copied := Ace{Principal: ace.Principal, Permissions: NewPermissionSet(), ExpiresAt: ace.ExpiresAt}
	for p := range ace.Permissions {
		copied.Permissions.Add(p)
	}
	acl.Aces = append(acl.Aces, copied)
	return acl
}

func removeAce(acl Acl, ace Ace) Acl {
	kept := acl.Aces[:0]
	for _, existing := range acl.Aces {
		if existing.Principal != ace.Principal {
			kept = append(kept, existing)
			continue
		}
		for p := range ace.Permissions {
			existing.Permissions.Remove(p)
		}
		if len(existing.Permissions) > 0 {
			kept = append(kept, existing)
		}
	}
	acl.Aces = kept
	return acl
}

func copyAcl(acl Acl) Acl {
	copied := Acl{Key: acl.Key, Aces: make([]Ace, len(acl.Aces))}
	for i, ace := range acl.Aces {
		perms := NewPermissionSet()
		for p := range ace.Permissions {
			perms.Add(p)
		}
		copied.Aces[i] = Ace{Principal: ace.Principal, Permissions: perms, ExpiresAt: ace.ExpiresAt}
	}
	return copied
}

// Compile-time interface checks.
var (
	_ AclStore  = (*MemoryAclStore)(nil)
	_ AclWriter = (*MemoryAclStore)(nil)
)
