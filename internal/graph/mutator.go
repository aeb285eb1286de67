// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package graph

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/graphvault/graphvault/internal/authz"
	"github.com/graphvault/graphvault/internal/edm"
)

// AccessChecker is the slice of the authorization engine the graph engines
// use. Mirrors authz.Authorizer to avoid coupling graph to its constructor.
type AccessChecker interface {
	CheckAccess(ctx context.Context, principals []authz.Principal, reqs []authz.Requirement) (authz.AuthorizationResult, error)
}

// IndexNotifier receives entity-set invalidations for the asynchronous
// search index. Notifications are fire-and-forget; the index converges
// eventually, not immediately.
type IndexNotifier interface {
	Invalidate(entitySetID uuid.UUID)
}

// MutatorConfig holds dependencies for a Mutator.
type MutatorConfig struct {
	Registry edm.Registry
	Store    GraphStore
	Access   AccessChecker
	Index    IndexNotifier
	Logger   *slog.Logger
}

// Mutator validates and applies entity and association creation. Every write
// is gated by the authorization engine during a pre-flight phase: validation
// or authorization failures abort the whole call with zero partial writes.
type Mutator struct {
	registry edm.Registry
	store    GraphStore
	access   AccessChecker
	index    IndexNotifier
	logger   *slog.Logger
}

// NewMutator creates a Mutator with the given configuration.
func NewMutator(cfg MutatorConfig) *Mutator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutator{
		registry: cfg.Registry,
		store:    cfg.Store,
		access:   cfg.Access,
		index:    cfg.Index,
		logger:   logger,
	}
}

// CreateEntities writes entities into a set and returns their key ids in
// input order. Requires WRITE on the entity set and on every property
// present in the submitted data. When the bound entity type declares a
// natural key, ids derive deterministically from the key property values,
// so identical submissions converge on one stored entity.
func (m *Mutator) CreateEntities(ctx context.Context, principals []authz.Principal, entitySetID uuid.UUID, entities []EntityData) ([]uuid.UUID, error) {
	entitySet, entityType, err := m.resolveSet(ctx, entitySetID)
	if err != nil {
		return nil, err
	}
	if entitySet.IsLinking() {
		return nil, oops.Code("SCHEMA_INCONSISTENCY").
			With("entity_set_id", entitySetID.String()).
			Errorf("linking entity set %s is read-only", entitySetID)
	}

	present := make(map[uuid.UUID]struct{})
	for _, data := range entities {
		if err := validateData(ctx, m.registry, entityType, data); err != nil {
			return nil, err
		}
		for propertyTypeID := range data {
			present[propertyTypeID] = struct{}{}
		}
	}

	reqs := writeRequirements(entitySetID, present)
	result, err := m.access.CheckAccess(ctx, principals, reqs)
	if err != nil {
		return nil, err
	}
	if !result.FullyGranted() {
		return nil, writeDenied(entitySetID, result.Denied)
	}

	ids := make([]uuid.UUID, len(entities))
	var itemErrs []error
	for i, data := range entities {
		normalized := data.Normalize()
		entityKeyID, err := deriveEntityKeyID(entitySetID, entityType, normalized)
		if err != nil {
			return nil, err
		}
		key := EntityDataKey{EntitySetID: entitySetID, EntityKeyID: entityKeyID}
		if err := m.store.UpsertEntity(ctx, key, normalized, true); err != nil {
			itemErrs = append(itemErrs, oops.With("item", i).With("key", key.String()).Wrap(err))
			continue
		}
		ids[i] = entityKeyID
	}

	m.invalidate(entitySetID)
	if len(itemErrs) > 0 {
		return ids, errors.Join(itemErrs...)
	}
	return ids, nil
}

// UpdateEntities applies partial-replace updates: for each named property the
// existing value set is dropped and the given set installed. Properties not
// named keep their values. Returns the number of entities updated.
func (m *Mutator) UpdateEntities(ctx context.Context, principals []authz.Principal, entitySetID uuid.UUID, updates map[uuid.UUID]EntityData) (int, error) {
	_, entityType, err := m.resolveSet(ctx, entitySetID)
	if err != nil {
		return 0, err
	}

	present := make(map[uuid.UUID]struct{})
	for _, data := range updates {
		if err := validateData(ctx, m.registry, entityType, data); err != nil {
			return 0, err
		}
		for propertyTypeID := range data {
			present[propertyTypeID] = struct{}{}
		}
	}

	result, err := m.access.CheckAccess(ctx, principals, writeRequirements(entitySetID, present))
	if err != nil {
		return 0, err
	}
	if !result.FullyGranted() {
		return 0, writeDenied(entitySetID, result.Denied)
	}

	updated := 0
	var itemErrs []error
	for entityKeyID, data := range updates {
		key := EntityDataKey{EntitySetID: entitySetID, EntityKeyID: entityKeyID}
		if _, err := m.store.Entity(ctx, key); err != nil {
			itemErrs = append(itemErrs, err)
			continue
		}
		if err := m.store.UpsertEntity(ctx, key, data.Normalize(), false); err != nil {
			itemErrs = append(itemErrs, oops.With("key", key.String()).Wrap(err))
			continue
		}
		updated++
	}

	m.invalidate(entitySetID)
	if len(itemErrs) > 0 {
		return updated, errors.Join(itemErrs...)
	}
	return updated, nil
}

// CreateAssociations creates edge entities and their edge triples, grouped
// by edge entity set. Every edge's endpoint types are validated against the
// association type's allowed sets before anything is written; a write
// additionally requires WRITE on the src and dst entity sets, since an edge
// asserts something about both endpoints.
func (m *Mutator) CreateAssociations(ctx context.Context, principals []authz.Principal, associations map[uuid.UUID][]DataEdge) (map[uuid.UUID][]uuid.UUID, error) {
	var reqs []authz.Requirement
	edgeTypes := make(map[uuid.UUID]edm.EntityType, len(associations))

	for edgeEntitySetID, edges := range associations {
		entitySet, err := m.registry.EntitySet(ctx, edgeEntitySetID)
		if err != nil {
			return nil, schemaInconsistency(err, "entity set", edgeEntitySetID)
		}
		associationType, err := m.registry.AssociationType(ctx, entitySet.EntityTypeID)
		if err != nil {
			return nil, schemaInconsistency(err, "association type", entitySet.EntityTypeID)
		}
		edgeTypes[edgeEntitySetID] = associationType.EntityType

		present := make(map[uuid.UUID]struct{})
		for _, edge := range edges {
			if err := validateData(ctx, m.registry, associationType.EntityType, edge.Data); err != nil {
				return nil, err
			}
			for propertyTypeID := range edge.Data {
				present[propertyTypeID] = struct{}{}
			}
			endpointReqs, err := m.validateEndpoints(ctx, edgeEntitySetID, associationType, edge.Src, edge.Dst)
			if err != nil {
				return nil, err
			}
			reqs = append(reqs, endpointReqs...)
		}
		reqs = append(reqs, writeRequirements(edgeEntitySetID, present)...)
	}

	result, err := m.access.CheckAccess(ctx, principals, reqs)
	if err != nil {
		return nil, err
	}
	if !result.FullyGranted() {
		return nil, associationsDenied(result.Denied)
	}

	created := make(map[uuid.UUID][]uuid.UUID, len(associations))
	var itemErrs []error
	for edgeEntitySetID, edges := range associations {
		ids := make([]uuid.UUID, len(edges))
		for i, edge := range edges {
			normalized := edge.Data.Normalize()
			edgeKeyID, err := deriveEntityKeyID(edgeEntitySetID, edgeTypes[edgeEntitySetID], normalized)
			if err != nil {
				return created, err
			}
			edgeKey := EntityDataKey{EntitySetID: edgeEntitySetID, EntityKeyID: edgeKeyID}
			if err := m.store.UpsertEntity(ctx, edgeKey, normalized, true); err != nil {
				itemErrs = append(itemErrs, oops.With("key", edgeKey.String()).Wrap(err))
				continue
			}
			if err := m.store.PutEdges(ctx, []DataEdgeKey{{Src: edge.Src, Dst: edge.Dst, Edge: edgeKey}}); err != nil {
				itemErrs = append(itemErrs, oops.With("key", edgeKey.String()).Wrap(err))
				continue
			}
			ids[i] = edgeKeyID
		}
		created[edgeEntitySetID] = ids
		m.invalidate(edgeEntitySetID)
	}

	if len(itemErrs) > 0 {
		return created, errors.Join(itemErrs...)
	}
	return created, nil
}

// CreateEdges records edge triples whose edge entities already exist.
// Endpoint type validation is identical to CreateAssociations.
func (m *Mutator) CreateEdges(ctx context.Context, principals []authz.Principal, edges []DataEdgeKey) error {
	var reqs []authz.Requirement
	for _, edge := range edges {
		entitySet, err := m.registry.EntitySet(ctx, edge.Edge.EntitySetID)
		if err != nil {
			return schemaInconsistency(err, "entity set", edge.Edge.EntitySetID)
		}
		associationType, err := m.registry.AssociationType(ctx, entitySet.EntityTypeID)
		if err != nil {
			return schemaInconsistency(err, "association type", entitySet.EntityTypeID)
		}
		endpointReqs, err := m.validateEndpoints(ctx, edge.Edge.EntitySetID, associationType, edge.Src, edge.Dst)
		if err != nil {
			return err
		}
		reqs = append(reqs, endpointReqs...)
		reqs = append(reqs, authz.Requirement{Key: authz.NewAclKey(edge.Edge.EntitySetID), Permission: authz.PermissionWrite})

		if _, err := m.store.Entity(ctx, edge.Edge); err != nil {
			return err
		}
	}

	result, err := m.access.CheckAccess(ctx, principals, reqs)
	if err != nil {
		return err
	}
	if !result.FullyGranted() {
		return associationsDenied(result.Denied)
	}

	if err := m.store.PutEdges(ctx, edges); err != nil {
		return oops.Code("EDGE_WRITE_FAILED").With("edges", len(edges)).Wrap(err)
	}
	for _, edge := range edges {
		m.invalidate(edge.Edge.EntitySetID)
	}
	return nil
}

// validateEndpoints checks an edge's endpoint entity types against the
// association type's allowed sets, verifies both endpoints are live, and
// returns the WRITE obligations on the endpoint entity sets.
func (m *Mutator) validateEndpoints(ctx context.Context, edgeEntitySetID uuid.UUID, associationType edm.AssociationType, src, dst EntityDataKey) ([]authz.Requirement, error) {
	srcSet, err := m.registry.EntitySet(ctx, src.EntitySetID)
	if err != nil {
		return nil, schemaInconsistency(err, "entity set", src.EntitySetID)
	}
	dstSet, err := m.registry.EntitySet(ctx, dst.EntitySetID)
	if err != nil {
		return nil, schemaInconsistency(err, "entity set", dst.EntitySetID)
	}

	allowed := associationType.AllowsSrc(srcSet.EntityTypeID) && associationType.AllowsDst(dstSet.EntityTypeID)
	if !allowed && associationType.Bidirectional {
		allowed = associationType.AllowsSrc(dstSet.EntityTypeID) && associationType.AllowsDst(srcSet.EntityTypeID)
	}
	if !allowed {
		return nil, typeMismatch(edgeEntitySetID, associationType, srcSet.EntityTypeID, dstSet.EntityTypeID)
	}

	// Soft-deleted endpoints read as not found: no new edge may reference them.
	if _, err := m.store.Entity(ctx, src); err != nil {
		return nil, err
	}
	if _, err := m.store.Entity(ctx, dst); err != nil {
		return nil, err
	}

	return []authz.Requirement{
		{Key: authz.NewAclKey(src.EntitySetID), Permission: authz.PermissionWrite},
		{Key: authz.NewAclKey(dst.EntitySetID), Permission: authz.PermissionWrite},
	}, nil
}

func (m *Mutator) resolveSet(ctx context.Context, entitySetID uuid.UUID) (edm.EntitySet, edm.EntityType, error) {
	entitySet, err := m.registry.EntitySet(ctx, entitySetID)
	if err != nil {
		return edm.EntitySet{}, edm.EntityType{}, schemaInconsistency(err, "entity set", entitySetID)
	}
	entityType, err := m.registry.EntityType(ctx, entitySet.EntityTypeID)
	if err != nil {
		return edm.EntitySet{}, edm.EntityType{}, schemaInconsistency(err, "entity type", entitySet.EntityTypeID)
	}
	return entitySet, entityType, nil
}

func (m *Mutator) invalidate(entitySetID uuid.UUID) {
	if m.index != nil {
		m.index.Invalidate(entitySetID)
	}
}

// writeRequirements builds the WRITE obligations for a mutation touching the
// given property types of one entity set.
func writeRequirements(entitySetID uuid.UUID, propertyTypeIDs map[uuid.UUID]struct{}) []authz.Requirement {
	reqs := []authz.Requirement{{Key: authz.NewAclKey(entitySetID), Permission: authz.PermissionWrite}}
	for propertyTypeID := range propertyTypeIDs {
		reqs = append(reqs, authz.Requirement{
			Key:        authz.NewAclKey(entitySetID, propertyTypeID),
			Permission: authz.PermissionWrite,
		})
	}
	return reqs
}

// associationsDenied builds the error for denied association-write
// obligations, which may span several entity sets.
func associationsDenied(denied []authz.Requirement) error {
	keys := make([]string, len(denied))
	for i, req := range denied {
		keys[i] = req.Key.String()
	}
	return oops.Code("AUTHORIZATION_DENIED").
		Wrapf(ErrAuthorizationDenied,
			"unable to create associations: missing required permissions [%s] for acl keys [%s]",
			authz.PermissionWrite, strings.Join(keys, ", "))
}
