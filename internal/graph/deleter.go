// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package graph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/graphvault/graphvault/internal/authz"
	"github.com/graphvault/graphvault/internal/edm"
)

// EntityNeighborsFilter names the entities a cascading delete starts from
// and optional allow-lists restricting which incident edges and neighbors
// participate. A nil allow-list leaves that role unrestricted.
type EntityNeighborsFilter struct {
	// EntityKeyIDs maps each named entity set to the targeted entity key ids.
	EntityKeyIDs map[uuid.UUID][]uuid.UUID

	// SrcEntitySetIDs restricts which src-side neighbor entity sets
	// participate, and names the neighbor sets whose entities are deleted.
	SrcEntitySetIDs []uuid.UUID

	// DstEntitySetIDs is the dst-side counterpart of SrcEntitySetIDs.
	DstEntitySetIDs []uuid.UUID

	// AssociationEntitySetIDs restricts which association entity sets'
	// edges participate.
	AssociationEntitySetIDs []uuid.UUID
}

// Transactor runs a function with all of its store calls sharing one
// transaction. A nil Transactor leaves each store call on its own implicit
// transaction; the in-memory store needs nothing more.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// DeleterConfig holds dependencies for a Deleter.
type DeleterConfig struct {
	Registry   edm.Registry
	Store      GraphStore
	Access     AccessChecker
	Index      IndexNotifier
	Transactor Transactor
	Logger     *slog.Logger
}

// Deleter performs soft and hard removal with cascading scope expansion.
// Every delete runs as REQUESTED -> scope expansion -> one batched
// authorization check -> apply; any unmet obligation aborts the whole
// request with zero mutation, reporting every missing AclKey grouped by
// resource category.
type Deleter struct {
	registry edm.Registry
	store    GraphStore
	access   AccessChecker
	index    IndexNotifier
	tx       Transactor
	logger   *slog.Logger
}

// NewDeleter creates a Deleter with the given configuration.
func NewDeleter(cfg DeleterConfig) *Deleter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Deleter{
		registry: cfg.Registry,
		store:    cfg.Store,
		access:   cfg.Access,
		index:    cfg.Index,
		tx:       cfg.Transactor,
		logger:   logger,
	}
}

// requiredPermission maps a delete type to the permission it demands:
// WRITE for soft, OWNER for hard. Any other value is rejected before any
// scope expansion or store call happens.
func requiredPermission(deleteType DeleteType) (authz.Permission, error) {
	switch deleteType {
	case DeleteSoft:
		return authz.PermissionWrite, nil
	case DeleteHard:
		return authz.PermissionOwner, nil
	default:
		return "", oops.Code("INVALID_DELETE_TYPE").
			With("delete_type", string(deleteType)).
			Errorf("unknown delete type %q", deleteType)
	}
}

// DeleteEntities removes entities from one set. The permission surface is
// schema-wide: the entity-set AclKey plus one AclKey per property declared
// on the bound entity type, whether or not the targeted entities carry it.
// Incident edges are not expanded; use DeleteEntitiesAndNeighbors for that.
func (d *Deleter) DeleteEntities(ctx context.Context, principals []authz.Principal, entitySetID uuid.UUID, entityKeyIDs []uuid.UUID, deleteType DeleteType) (int, error) {
	perm, err := requiredPermission(deleteType)
	if err != nil {
		return 0, err
	}
	reqs, err := d.schemaWideRequirements(ctx, entitySetID, perm)
	if err != nil {
		return 0, err
	}

	result, err := d.access.CheckAccess(ctx, principals, reqs)
	if err != nil {
		return 0, err
	}
	if !result.FullyGranted() {
		return 0, &DeletionDeniedError{Denials: []CategoryDenial{{
			Category:     CategoryEntitySets,
			EntitySetIDs: []uuid.UUID{entitySetID},
			Permission:   perm,
			AclKeys:      result.DeniedKeys(),
		}}}
	}

	// Entities in an association set are edges: their triples go with them.
	entitySet, err := d.registry.EntitySet(ctx, entitySetID)
	if err != nil {
		return 0, schemaInconsistency(err, "entity set", entitySetID)
	}
	if entitySet.IsAssociation() {
		keys := dataKeys(entitySetID, entityKeyIDs)
		triples, err := d.store.EdgesOf(ctx, keys)
		if err != nil {
			return 0, err
		}
		if _, err := d.store.DeleteEdges(ctx, triples, deleteType); err != nil {
			return 0, err
		}
	}

	deleted, err := d.store.DeleteEntities(ctx, entitySetID, entityKeyIDs, deleteType)
	if err != nil {
		return 0, err
	}
	d.invalidate(entitySetID)
	return deleted, nil
}

// DeleteAllEntitiesFromEntitySet removes the full current membership of a
// set. The index reflects the removal eventually, not immediately.
func (d *Deleter) DeleteAllEntitiesFromEntitySet(ctx context.Context, principals []authz.Principal, entitySetID uuid.UUID, deleteType DeleteType) (int, error) {
	perm, err := requiredPermission(deleteType)
	if err != nil {
		return 0, err
	}
	reqs, err := d.schemaWideRequirements(ctx, entitySetID, perm)
	if err != nil {
		return 0, err
	}

	result, err := d.access.CheckAccess(ctx, principals, reqs)
	if err != nil {
		return 0, err
	}
	if !result.FullyGranted() {
		return 0, &DeletionDeniedError{Denials: []CategoryDenial{{
			Category:     CategoryEntitySets,
			EntitySetIDs: []uuid.UUID{entitySetID},
			Permission:   perm,
			AclKeys:      result.DeniedKeys(),
		}}}
	}

	entitySet, err := d.registry.EntitySet(ctx, entitySetID)
	if err != nil {
		return 0, schemaInconsistency(err, "entity set", entitySetID)
	}
	if entitySet.IsAssociation() {
		members, err := d.store.ListEntities(ctx, entitySetID, nil)
		if err != nil {
			return 0, err
		}
		edgeKeys := make([]EntityDataKey, len(members))
		for i, member := range members {
			edgeKeys[i] = member.Key
		}
		triples, err := d.store.EdgesOf(ctx, edgeKeys)
		if err != nil {
			return 0, err
		}
		if _, err := d.store.DeleteEdges(ctx, triples, deleteType); err != nil {
			return 0, err
		}
	}

	deleted, err := d.store.DeleteAllEntities(ctx, entitySetID, deleteType)
	if err != nil {
		return 0, err
	}
	d.invalidate(entitySetID)
	return deleted, nil
}

// DeleteEntityProperties removes only the named properties' values from one
// entity. Same permission level as entity deletion, scoped to the named
// properties' AclKeys plus the entity-set AclKey.
func (d *Deleter) DeleteEntityProperties(ctx context.Context, principals []authz.Principal, entitySetID, entityKeyID uuid.UUID, propertyTypeIDs []uuid.UUID, deleteType DeleteType) (int, error) {
	perm, err := requiredPermission(deleteType)
	if err != nil {
		return 0, err
	}
	entitySet, err := d.registry.EntitySet(ctx, entitySetID)
	if err != nil {
		return 0, schemaInconsistency(err, "entity set", entitySetID)
	}
	entityType, err := d.registry.EntityType(ctx, entitySet.EntityTypeID)
	if err != nil {
		return 0, schemaInconsistency(err, "entity type", entitySet.EntityTypeID)
	}
	for _, propertyTypeID := range propertyTypeIDs {
		if !entityType.HasProperty(propertyTypeID) {
			return 0, oops.Code("SCHEMA_INCONSISTENCY").
				With("entity_set_id", entitySetID.String()).
				With("property_type_id", propertyTypeID.String()).
				Errorf("property type %s is not declared on entity type %s", propertyTypeID, entityType.ID)
		}
	}

	reqs := []authz.Requirement{{Key: authz.NewAclKey(entitySetID), Permission: perm}}
	for _, propertyTypeID := range propertyTypeIDs {
		reqs = append(reqs, authz.Requirement{Key: authz.NewAclKey(entitySetID, propertyTypeID), Permission: perm})
	}

	result, err := d.access.CheckAccess(ctx, principals, reqs)
	if err != nil {
		return 0, err
	}
	if !result.FullyGranted() {
		return 0, &DeletionDeniedError{Denials: []CategoryDenial{{
			Category:     CategoryEntitySets,
			EntitySetIDs: []uuid.UUID{entitySetID},
			Permission:   perm,
			AclKeys:      result.DeniedKeys(),
		}}}
	}

	cleared, err := d.store.ClearProperties(ctx, EntityDataKey{EntitySetID: entitySetID, EntityKeyID: entityKeyID}, propertyTypeIDs, deleteType)
	if err != nil {
		return 0, err
	}
	d.invalidate(entitySetID)
	return cleared, nil
}

// deletionScope is the closure a cascading delete touches.
type deletionScope struct {
	namedSets       []uuid.UUID
	edges           []DataEdgeKey
	associationSets []uuid.UUID
	neighborSets    []uuid.UUID
	// neighborsToDelete holds neighbor entities whose sets the filter
	// explicitly allow-listed; only those are removed.
	neighborsToDelete map[uuid.UUID][]uuid.UUID
}

// DeleteEntitiesAndNeighbors removes the named entities, their incident
// edges, and explicitly allow-listed neighbor entities. Scope expansion is
// an explicit worklist walk over incident edges; every obligation across the
// discovered closure is collected first and checked in one batch. Neighbor
// entity sets demand OWNER regardless of delete type; this asymmetry against
// the WRITE/OWNER rule for the named and association sets is deliberate.
func (d *Deleter) DeleteEntitiesAndNeighbors(ctx context.Context, principals []authz.Principal, filter EntityNeighborsFilter, deleteType DeleteType) (int, error) {
	perm, err := requiredPermission(deleteType)
	if err != nil {
		return 0, err
	}

	scope, err := d.expandScope(ctx, filter)
	if err != nil {
		return 0, err
	}

	reqs, categories, err := d.scopeRequirements(ctx, scope, perm)
	if err != nil {
		return 0, err
	}

	result, err := d.access.CheckAccess(ctx, principals, reqs)
	if err != nil {
		return 0, err
	}
	if !result.FullyGranted() {
		return 0, denialByCategory(categories, result.Denied, perm)
	}

	// The whole apply phase shares one transaction: either the entire
	// closure is removed or none of it is.
	deleted := 0
	touched := make(map[uuid.UUID]struct{})
	err = d.transact(ctx, func(ctx context.Context) error {
		// Edges go first: an entity is never removed while an edge still
		// references it.
		edgeEntities := make(map[uuid.UUID][]uuid.UUID)
		for _, edge := range scope.edges {
			edgeEntities[edge.Edge.EntitySetID] = append(edgeEntities[edge.Edge.EntitySetID], edge.Edge.EntityKeyID)
		}
		if _, err := d.store.DeleteEdges(ctx, scope.edges, deleteType); err != nil {
			return err
		}
		for entitySetID, keyIDs := range edgeEntities {
			if _, err := d.store.DeleteEntities(ctx, entitySetID, keyIDs, deleteType); err != nil {
				return err
			}
			touched[entitySetID] = struct{}{}
		}

		for entitySetID, keyIDs := range filter.EntityKeyIDs {
			n, err := d.store.DeleteEntities(ctx, entitySetID, keyIDs, deleteType)
			if err != nil {
				return err
			}
			deleted += n
			touched[entitySetID] = struct{}{}
		}
		for entitySetID, keyIDs := range scope.neighborsToDelete {
			n, err := d.store.DeleteEntities(ctx, entitySetID, keyIDs, deleteType)
			if err != nil {
				return err
			}
			deleted += n
			touched[entitySetID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for entitySetID := range touched {
		d.invalidate(entitySetID)
	}
	return deleted, nil
}

// transact runs fn inside the configured Transactor, or directly when none
// is configured.
func (d *Deleter) transact(ctx context.Context, fn func(ctx context.Context) error) error {
	if d.tx == nil {
		return fn(ctx)
	}
	return d.tx.InTransaction(ctx, fn)
}

// expandScope walks incident edges from the named entities with an explicit
// worklist, honoring the filter's allow-lists, and collects every entity
// set the delete would touch.
func (d *Deleter) expandScope(ctx context.Context, filter EntityNeighborsFilter) (deletionScope, error) {
	scope := deletionScope{neighborsToDelete: make(map[uuid.UUID][]uuid.UUID)}

	allowedSrc := allowSet(filter.SrcEntitySetIDs)
	allowedDst := allowSet(filter.DstEntitySetIDs)
	allowedAssoc := allowSet(filter.AssociationEntitySetIDs)

	worklist := make([]EntityDataKey, 0)
	namedKeySet := make(map[EntityDataKey]struct{})
	for entitySetID, keyIDs := range filter.EntityKeyIDs {
		scope.namedSets = append(scope.namedSets, entitySetID)
		for _, keyID := range keyIDs {
			key := EntityDataKey{EntitySetID: entitySetID, EntityKeyID: keyID}
			worklist = append(worklist, key)
			namedKeySet[key] = struct{}{}
		}
	}

	incident, err := d.store.IncidentEdges(ctx, worklist)
	if err != nil {
		return deletionScope{}, err
	}

	assocSeen := make(map[uuid.UUID]struct{})
	neighborSeen := make(map[uuid.UUID]struct{})
	neighborDeleteSeen := make(map[EntityDataKey]struct{})
	for _, edge := range incident {
		if !allowedAssoc.allows(edge.Edge.EntitySetID) {
			continue
		}

		// The named entity may sit at either endpoint; the neighbor is the
		// other one. The neighbor's role (src or dst) decides which
		// allow-list gates it.
		neighbor := edge.Src
		neighborAllowed := allowedSrc
		explicit := filter.SrcEntitySetIDs != nil
		if _, ok := namedKeySet[edge.Src]; ok {
			neighbor = edge.Dst
			neighborAllowed = allowedDst
			explicit = filter.DstEntitySetIDs != nil
		}
		if !neighborAllowed.allows(neighbor.EntitySetID) {
			continue
		}

		scope.edges = append(scope.edges, edge)
		if _, ok := assocSeen[edge.Edge.EntitySetID]; !ok {
			assocSeen[edge.Edge.EntitySetID] = struct{}{}
			scope.associationSets = append(scope.associationSets, edge.Edge.EntitySetID)
		}
		if _, named := namedKeySet[neighbor]; named {
			continue
		}
		if _, ok := neighborSeen[neighbor.EntitySetID]; !ok {
			neighborSeen[neighbor.EntitySetID] = struct{}{}
			scope.neighborSets = append(scope.neighborSets, neighbor.EntitySetID)
		}
		// Neighbor entities are only ever removed when their set was named
		// explicitly in an allow-list, never implicitly.
		if explicit {
			if _, ok := neighborDeleteSeen[neighbor]; !ok {
				neighborDeleteSeen[neighbor] = struct{}{}
				scope.neighborsToDelete[neighbor.EntitySetID] = append(scope.neighborsToDelete[neighbor.EntitySetID], neighbor.EntityKeyID)
			}
		}
	}

	return scope, nil
}

// scopeRequirements builds the schema-wide obligations for every entity set
// in the scope and remembers which category each set belongs to.
func (d *Deleter) scopeRequirements(ctx context.Context, scope deletionScope, perm authz.Permission) ([]authz.Requirement, map[uuid.UUID]DeniedCategory, error) {
	categories := make(map[uuid.UUID]DeniedCategory)
	var reqs []authz.Requirement

	appendSet := func(entitySetID uuid.UUID, setPerm authz.Permission, category DeniedCategory) error {
		if _, ok := categories[entitySetID]; ok {
			return nil
		}
		categories[entitySetID] = category
		setReqs, err := d.schemaWideRequirements(ctx, entitySetID, setPerm)
		if err != nil {
			return err
		}
		reqs = append(reqs, setReqs...)
		return nil
	}

	for _, entitySetID := range scope.namedSets {
		if err := appendSet(entitySetID, perm, CategoryEntitySets); err != nil {
			return nil, nil, err
		}
	}
	for _, entitySetID := range scope.associationSets {
		if err := appendSet(entitySetID, perm, CategoryAssociations); err != nil {
			return nil, nil, err
		}
	}
	for _, entitySetID := range scope.neighborSets {
		if err := appendSet(entitySetID, authz.PermissionOwner, CategoryNeighborEntitySets); err != nil {
			return nil, nil, err
		}
	}
	return reqs, categories, nil
}

// denialByCategory groups denied requirements into one CategoryDenial per
// resource category, each enumerating all of its unmet AclKeys. The
// categories map comes from scopeRequirements, so a set that is both named
// and reached as a neighbor reports under its named category.
func denialByCategory(categories map[uuid.UUID]DeniedCategory, denied []authz.Requirement, perm authz.Permission) error {
	grouped := make(map[DeniedCategory]*CategoryDenial)
	setSeen := make(map[uuid.UUID]struct{})
	order := []DeniedCategory{CategoryEntitySets, CategoryAssociations, CategoryNeighborEntitySets}
	for _, req := range denied {
		entitySetID := req.Key.EntitySetID()
		category := categories[entitySetID]
		denial, ok := grouped[category]
		if !ok {
			categoryPerm := perm
			if category == CategoryNeighborEntitySets {
				categoryPerm = authz.PermissionOwner
			}
			denial = &CategoryDenial{Category: category, Permission: categoryPerm}
			grouped[category] = denial
		}
		if _, ok := setSeen[entitySetID]; !ok {
			setSeen[entitySetID] = struct{}{}
			denial.EntitySetIDs = append(denial.EntitySetIDs, entitySetID)
		}
		denial.AclKeys = append(denial.AclKeys, req.Key)
	}

	err := &DeletionDeniedError{}
	for _, category := range order {
		if denial, ok := grouped[category]; ok {
			err.Denials = append(err.Denials, *denial)
		}
	}
	return err
}

// schemaWideRequirements builds the obligation list for one entity set: its
// own AclKey plus one per property declared on the bound entity type.
func (d *Deleter) schemaWideRequirements(ctx context.Context, entitySetID uuid.UUID, perm authz.Permission) ([]authz.Requirement, error) {
	entitySet, err := d.registry.EntitySet(ctx, entitySetID)
	if err != nil {
		return nil, schemaInconsistency(err, "entity set", entitySetID)
	}
	entityType, err := d.registry.EntityType(ctx, entitySet.EntityTypeID)
	if err != nil {
		return nil, schemaInconsistency(err, "entity type", entitySet.EntityTypeID)
	}

	reqs := []authz.Requirement{{Key: authz.NewAclKey(entitySetID), Permission: perm}}
	for _, propertyTypeID := range entityType.Properties {
		reqs = append(reqs, authz.Requirement{Key: authz.NewAclKey(entitySetID, propertyTypeID), Permission: perm})
	}
	return reqs, nil
}

func (d *Deleter) invalidate(entitySetID uuid.UUID) {
	if d.index != nil {
		d.index.Invalidate(entitySetID)
	}
}

func dataKeys(entitySetID uuid.UUID, keyIDs []uuid.UUID) []EntityDataKey {
	keys := make([]EntityDataKey, len(keyIDs))
	for i, keyID := range keyIDs {
		keys[i] = EntityDataKey{EntitySetID: entitySetID, EntityKeyID: keyID}
	}
	return keys
}

// allowList is a nil-means-unrestricted membership set.
type allowList map[uuid.UUID]struct{}

func allowSet(ids []uuid.UUID) allowList {
	if ids == nil {
		return nil
	}
	set := make(allowList, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (a allowList) allows(id uuid.UUID) bool {
	if a == nil {
		return true
	}
	_, ok := a[id]
	return ok
}
