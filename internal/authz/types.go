// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

// Package authz resolves which (resource, permission) obligations a caller
// holds. Resources are AclKey paths: [entitySetId] for a set as a whole,
// [entitySetId, propertyTypeId] for one property on that set. The two levels
// are distinct securables, checked independently, never inherited.
package authz

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Permission is a resource-scoped capability. Strength ordering is
// READ < WRITE < OWNER, but grants are set-valued: a requirement is satisfied
// only when the required permission itself is present in the effective set.
type Permission string

// Permission constants define the recognized permissions.
const (
	PermissionRead  Permission = "READ"
	PermissionWrite Permission = "WRITE"
	PermissionOwner Permission = "OWNER"
)

// PermissionSet is a set of permissions.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the permission.
func (ps PermissionSet) Has(p Permission) bool {
	_, ok := ps[p]
	return ok
}

// Add inserts the given permissions.
func (ps PermissionSet) Add(perms ...Permission) {
	for _, p := range perms {
		ps[p] = struct{}{}
	}
}

// Remove deletes the given permissions.
func (ps PermissionSet) Remove(perms ...Permission) {
	for _, p := range perms {
		delete(ps, p)
	}
}

// AclKey is the ordered path identifying a securable resource.
type AclKey []uuid.UUID

// NewAclKey builds an AclKey from path segments.
func NewAclKey(ids ...uuid.UUID) AclKey {
	return AclKey(ids)
}

// EntitySetID returns the first path segment.
func (k AclKey) EntitySetID() uuid.UUID {
	return k[0]
}

// String renders the key as "[id1, id2]", the form authorization errors use.
func (k AclKey) String() string {
	parts := make([]string, len(k))
	for i, id := range k {
		parts[i] = id.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// MapKey returns a canonical string usable as a map key.
func (k AclKey) MapKey() string {
	parts := make([]string, len(k))
	for i, id := range k {
		parts[i] = id.String()
	}
	return strings.Join(parts, "/")
}

// PrincipalType distinguishes users from roles.
type PrincipalType string

// PrincipalType constants define the recognized principal kinds.
const (
	PrincipalUser PrincipalType = "USER"
	PrincipalRole PrincipalType = "ROLE"
)

// Principal identifies a caller or one of its roles.
type Principal struct {
	Type PrincipalType
	ID   string
}

// String returns the "TYPE:id" form.
func (p Principal) String() string {
	return string(p.Type) + ":" + p.ID
}

// Ace grants a principal a set of permissions on one resource, optionally
// until an expiration instant. A zero ExpiresAt never expires.
type Ace struct {
	Principal   Principal
	Permissions PermissionSet
	ExpiresAt   time.Time
}

// Expired reports whether the grant has lapsed at the given instant.
func (a Ace) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !a.ExpiresAt.After(now)
}

// Acl is the full list of grants for one AclKey.
type Acl struct {
	Key  AclKey
	Aces []Ace
}

// Action is the mutation verb the external grants collaborator applies.
type Action string

// Action constants define the recognized ACL mutations.
const (
	ActionAdd    Action = "ADD"
	ActionRemove Action = "REMOVE"
)
