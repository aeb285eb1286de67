// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/graphvault/graphvault/internal/authz"
	"github.com/graphvault/graphvault/internal/edm"
)

// Selection narrows a read to specific entities and properties. Nil slices
// leave that dimension unrestricted.
type Selection struct {
	EntityKeyIDs    []uuid.UUID
	PropertyTypeIDs []uuid.UUID
}

// IndexReader is the slice of the search index the read path consumes.
// Sizes and index timestamps are eventually consistent with the primary
// store.
type IndexReader interface {
	Size(entitySetID uuid.UUID) (int64, bool)
	LastIndexed(entitySetID uuid.UUID) (time.Time, bool)
}

// ReaderConfig holds dependencies for a Reader.
type ReaderConfig struct {
	Registry edm.Registry
	Store    GraphStore
	Access   AccessChecker
	Index    IndexReader
	Logger   *slog.Logger
}

// Reader serves entity data with authorization-aware property filtering.
// Reads come straight from the primary store; only GetEntitySetSize is
// served from the asynchronous index.
type Reader struct {
	registry edm.Registry
	store    GraphStore
	access   AccessChecker
	index    IndexReader
	logger   *slog.Logger
}

// NewReader creates a Reader with the given configuration.
func NewReader(cfg ReaderConfig) *Reader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		registry: cfg.Registry,
		store:    cfg.Store,
		access:   cfg.Access,
		index:    cfg.Index,
		logger:   logger,
	}
}

// LoadSelectedEntitySetData returns the selected entities' data. Requires
// READ on the entity set; properties the caller lacks READ on are silently
// omitted rather than failing the read. The system id property is always
// present; @lastWrite and @lastIndex are gated like any other property, on
// READ for their metadata AclKeys. A linking entity set resolves to the
// union of its member sets; member sets the caller cannot read are omitted.
func (r *Reader) LoadSelectedEntitySetData(ctx context.Context, principals []authz.Principal, entitySetID uuid.UUID, selection Selection) ([]EntityData, error) {
	entitySet, err := r.registry.EntitySet(ctx, entitySetID)
	if err != nil {
		return nil, schemaInconsistency(err, "entity set", entitySetID)
	}

	memberIDs := []uuid.UUID{entitySetID}
	if entitySet.IsLinking() {
		memberIDs = entitySet.LinkedEntitySets
	}

	// One batched check covers the named set, every member set, and every
	// candidate property of every member set.
	reqs := []authz.Requirement{{Key: authz.NewAclKey(entitySetID), Permission: authz.PermissionRead}}
	memberProps := make(map[uuid.UUID][]uuid.UUID, len(memberIDs))
	for _, memberID := range memberIDs {
		if memberID != entitySetID {
			reqs = append(reqs, authz.Requirement{Key: authz.NewAclKey(memberID), Permission: authz.PermissionRead})
		}
		props, err := r.candidateProperties(ctx, memberID, selection.PropertyTypeIDs)
		if err != nil {
			return nil, err
		}
		memberProps[memberID] = props
		for _, propertyTypeID := range props {
			reqs = append(reqs, authz.Requirement{Key: authz.NewAclKey(memberID, propertyTypeID), Permission: authz.PermissionRead})
		}
		for _, propertyTypeID := range metadataPropertyTypeIDs {
			reqs = append(reqs, authz.Requirement{Key: authz.NewAclKey(memberID, propertyTypeID), Permission: authz.PermissionRead})
		}
	}

	result, err := r.access.CheckAccess(ctx, principals, reqs)
	if err != nil {
		return nil, err
	}
	granted := grantedKeys(result)
	if _, ok := granted[authz.NewAclKey(entitySetID).MapKey()]; !ok {
		return nil, readDenied(entitySetID)
	}

	var out []EntityData
	for _, memberID := range memberIDs {
		if _, ok := granted[authz.NewAclKey(memberID).MapKey()]; !ok {
			continue
		}
		entities, err := r.store.ListEntities(ctx, memberID, selection.EntityKeyIDs)
		if err != nil {
			return nil, err
		}
		for _, entity := range entities {
			out = append(out, r.filterEntity(memberID, entity, memberProps[memberID], granted))
		}
	}
	return out, nil
}

// GetEntity returns one entity's data with the same property filtering as
// LoadSelectedEntitySetData.
func (r *Reader) GetEntity(ctx context.Context, principals []authz.Principal, key EntityDataKey) (EntityData, error) {
	props, err := r.candidateProperties(ctx, key.EntitySetID, nil)
	if err != nil {
		return nil, err
	}

	reqs := []authz.Requirement{{Key: authz.NewAclKey(key.EntitySetID), Permission: authz.PermissionRead}}
	for _, propertyTypeID := range props {
		reqs = append(reqs, authz.Requirement{Key: authz.NewAclKey(key.EntitySetID, propertyTypeID), Permission: authz.PermissionRead})
	}
	for _, propertyTypeID := range metadataPropertyTypeIDs {
		reqs = append(reqs, authz.Requirement{Key: authz.NewAclKey(key.EntitySetID, propertyTypeID), Permission: authz.PermissionRead})
	}

	result, err := r.access.CheckAccess(ctx, principals, reqs)
	if err != nil {
		return nil, err
	}
	granted := grantedKeys(result)
	if _, ok := granted[authz.NewAclKey(key.EntitySetID).MapKey()]; !ok {
		return nil, readDenied(key.EntitySetID)
	}

	entity, err := r.store.Entity(ctx, key)
	if err != nil {
		return nil, err
	}
	return r.filterEntity(key.EntitySetID, entity, props, granted), nil
}

// GetEntitySetSize returns the entity set's size as the index last observed
// it. The value may lag writes; callers needing exact counts use the store.
// Without an index the count falls through to the primary store.
func (r *Reader) GetEntitySetSize(ctx context.Context, principals []authz.Principal, entitySetID uuid.UUID) (int64, error) {
	if _, err := r.registry.EntitySet(ctx, entitySetID); err != nil {
		return 0, schemaInconsistency(err, "entity set", entitySetID)
	}

	result, err := r.access.CheckAccess(ctx, principals, []authz.Requirement{
		{Key: authz.NewAclKey(entitySetID), Permission: authz.PermissionRead},
	})
	if err != nil {
		return 0, err
	}
	if !result.FullyGranted() {
		return 0, readDenied(entitySetID)
	}

	if r.index != nil {
		if size, ok := r.index.Size(entitySetID); ok {
			return size, nil
		}
	}
	return r.store.CountEntities(ctx, entitySetID)
}

// candidateProperties resolves which declared property types a read may
// return, intersected with an optional explicit selection.
func (r *Reader) candidateProperties(ctx context.Context, entitySetID uuid.UUID, selected []uuid.UUID) ([]uuid.UUID, error) {
	entitySet, err := r.registry.EntitySet(ctx, entitySetID)
	if err != nil {
		return nil, schemaInconsistency(err, "entity set", entitySetID)
	}
	entityType, err := r.registry.EntityType(ctx, entitySet.EntityTypeID)
	if err != nil {
		return nil, schemaInconsistency(err, "entity type", entitySet.EntityTypeID)
	}

	if selected == nil {
		return entityType.Properties, nil
	}
	props := make([]uuid.UUID, 0, len(selected))
	for _, propertyTypeID := range selected {
		if entityType.HasProperty(propertyTypeID) {
			props = append(props, propertyTypeID)
		}
	}
	return props, nil
}

// metadataPropertyTypeIDs are the authorization-gated system metadata
// properties. The id property is not among them: set-level READ alone
// already yields it.
var metadataPropertyTypeIDs = []uuid.UUID{
	edm.LastWritePropertyTypeID,
	edm.LastIndexPropertyTypeID,
}

// filterEntity copies the readable properties and attaches the system id
// property. Write-time and index-time metadata appear only when the caller
// holds READ on their metadata AclKeys.
func (r *Reader) filterEntity(entitySetID uuid.UUID, entity *Entity, props []uuid.UUID, granted map[string]struct{}) EntityData {
	data := make(EntityData, len(props)+3)
	for _, propertyTypeID := range props {
		if _, ok := granted[authz.NewAclKey(entitySetID, propertyTypeID).MapKey()]; !ok {
			continue
		}
		if values, ok := entity.Data[propertyTypeID]; ok {
			data[propertyTypeID] = append([]PropertyValue(nil), values...)
		}
	}

	data[edm.IDPropertyTypeID] = []PropertyValue{StringValue(entity.Key.EntityKeyID.String())}
	if _, ok := granted[authz.NewAclKey(entitySetID, edm.LastWritePropertyTypeID).MapKey()]; ok {
		data[edm.LastWritePropertyTypeID] = []PropertyValue{DateTimeValue(entity.LastWrite)}
	}
	if r.index != nil {
		if _, ok := granted[authz.NewAclKey(entitySetID, edm.LastIndexPropertyTypeID).MapKey()]; ok {
			if lastIndexed, ok := r.index.LastIndexed(entitySetID); ok {
				data[edm.LastIndexPropertyTypeID] = []PropertyValue{DateTimeValue(lastIndexed)}
			}
		}
	}
	return data
}

func grantedKeys(result authz.AuthorizationResult) map[string]struct{} {
	granted := make(map[string]struct{}, len(result.Granted))
	for _, req := range result.Granted {
		granted[req.Key.MapKey()] = struct{}{}
	}
	return granted
}
