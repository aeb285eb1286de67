// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/graphvault/graphvault/internal/authz"
	"github.com/graphvault/graphvault/internal/edm"
)

// Sentinel errors for errors.Is checks across the engines.
var (
	// ErrNotFound is returned when an operation references an entity or
	// entity set that does not exist or was hard-deleted.
	ErrNotFound = errors.New("not found")

	// ErrAuthorizationDenied is wrapped by every denied-obligation error.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrTypeMismatch is wrapped by edge endpoint type violations.
	ErrTypeMismatch = errors.New("type mismatch")
)

// schemaInconsistency converts a registry NotFound into the caller-visible
// error. Lookups that fail must abort the operation, never be skipped.
func schemaInconsistency(err error, kind string, id uuid.UUID) error {
	return oops.Code("SCHEMA_INCONSISTENCY").
		With("kind", kind).
		With("id", id.String()).
		Wrapf(err, "%s %s does not resolve", kind, id)
}

// DeniedCategory names the resource category a deletion denial belongs to.
type DeniedCategory string

// DeniedCategory constants define the aggregation buckets for deletion
// authorization failures.
const (
	CategoryEntitySets         DeniedCategory = "entity sets"
	CategoryAssociations       DeniedCategory = "associations"
	CategoryNeighborEntitySets DeniedCategory = "neighbor entity sets"
)

// CategoryDenial is one category's worth of unmet obligations: every
// offending AclKey, not just the first found.
type CategoryDenial struct {
	Category     DeniedCategory
	EntitySetIDs []uuid.UUID
	Permission   authz.Permission
	AclKeys      []authz.AclKey
}

func (d CategoryDenial) message() string {
	keys := make([]string, len(d.AclKeys))
	for i, k := range d.AclKeys {
		keys[i] = k.String()
	}
	sets := make([]string, len(d.EntitySetIDs))
	for i, id := range d.EntitySetIDs {
		sets[i] = id.String()
	}
	switch d.Category {
	case CategoryAssociations:
		return fmt.Sprintf(
			"unable to delete from entity set %s: missing required permissions [%s] on associations for acl keys [%s]",
			strings.Join(sets, ", "), d.Permission, strings.Join(keys, ", "))
	case CategoryNeighborEntitySets:
		return fmt.Sprintf(
			"unable to delete from neighbor entity sets [%s]: missing required permissions [%s] for acl keys [%s]",
			strings.Join(sets, ", "), d.Permission, strings.Join(keys, ", "))
	default:
		return fmt.Sprintf(
			"unable to delete from entity sets [%s]: missing required permissions [%s] for acl keys [%s]",
			strings.Join(sets, ", "), d.Permission, strings.Join(keys, ", "))
	}
}

// DeletionDeniedError aggregates deletion authorization failures, one entry
// per category, each enumerating its unmet AclKeys.
type DeletionDeniedError struct {
	Denials []CategoryDenial
}

// Error renders every category's message.
func (e *DeletionDeniedError) Error() string {
	msgs := make([]string, len(e.Denials))
	for i, d := range e.Denials {
		msgs[i] = d.message()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets errors.Is match ErrAuthorizationDenied.
func (e *DeletionDeniedError) Unwrap() error {
	return ErrAuthorizationDenied
}

// writeDenied builds the error for denied mutation (write-path) obligations.
func writeDenied(entitySetID uuid.UUID, denied []authz.Requirement) error {
	keys := make([]string, len(denied))
	for i, req := range denied {
		keys[i] = req.Key.String()
	}
	return oops.Code("AUTHORIZATION_DENIED").
		With("entity_set_id", entitySetID.String()).
		Wrapf(ErrAuthorizationDenied,
			"unable to write to entity set %s: missing required permissions [%s] for acl keys [%s]",
			entitySetID, authz.PermissionWrite, strings.Join(keys, ", "))
}

// readDenied builds the error for a missing entity-set-level READ.
func readDenied(entitySetID uuid.UUID) error {
	return oops.Code("AUTHORIZATION_DENIED").
		With("entity_set_id", entitySetID.String()).
		Wrapf(ErrAuthorizationDenied,
			"unable to read from entity set %s: missing required permissions [%s] for acl key [%s]",
			entitySetID, authz.PermissionRead, entitySetID)
}

// typeMismatch builds the edge endpoint validation error. The message names
// the offending entity set and the allowed-vs-actual type sets; the shape
// differs for bidirectional association types, which accept either
// orientation.
func typeMismatch(edgeEntitySetID uuid.UUID, at edm.AssociationType, srcTypeID, dstTypeID uuid.UUID) error {
	builder := oops.Code("EDGE_TYPE_MISMATCH").
		With("entity_set_id", edgeEntitySetID.String()).
		With("src_entity_type_id", srcTypeID.String()).
		With("dst_entity_type_id", dstTypeID.String())
	if at.Bidirectional {
		return builder.Wrapf(ErrTypeMismatch,
			"entity types of src and dst (%s, %s) differ from allowed entity types src=%s, dst=%s in bidirectional association type of entity set %s",
			srcTypeID, dstTypeID, formatIDList(at.Src), formatIDList(at.Dst), edgeEntitySetID)
	}
	return builder.Wrapf(ErrTypeMismatch,
		"entity types of src and dst (%s, %s) differ from allowed entity types (%s) in association type of entity set %s",
		srcTypeID, dstTypeID, formatPairList(at.Src, at.Dst), edgeEntitySetID)
}

func formatIDList(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatPairList renders the allowed (src, dst) pairings of a directed
// association type. Empty allowed sets render as "[]": they match nothing.
func formatPairList(src, dst []uuid.UUID) string {
	var pairs []string
	for _, s := range src {
		for _, d := range dst {
			pairs = append(pairs, fmt.Sprintf("%s->%s", s, d))
		}
	}
	return "[" + strings.Join(pairs, ", ") + "]"
}
