// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package edm

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// ErrTypeNotFound is returned when a lookup names an unregistered id.
// Callers must surface it as a schema inconsistency, never skip it silently.
var ErrTypeNotFound = errors.New("type not found")

// Registry is the immutable-at-call-time view of the entity data model.
// The mutation and deletion engines only read it.
type Registry interface {
	// PropertyType resolves a property type by id.
	PropertyType(ctx context.Context, id uuid.UUID) (PropertyType, error)

	// EntityType resolves an entity type by id.
	EntityType(ctx context.Context, id uuid.UUID) (EntityType, error)

	// AssociationType resolves an association type by its entity type id.
	AssociationType(ctx context.Context, id uuid.UUID) (AssociationType, error)

	// EntitySet resolves an entity set by id.
	EntitySet(ctx context.Context, id uuid.UUID) (EntitySet, error)
}

// MemoryRegistry holds the entity data model in memory. It also carries the
// extension operations the external EDM collaborator exposes
// (AddSrcEntityType, AddDstEntityType, Register*), so tests and the seed
// command can populate it.
type MemoryRegistry struct {
	mu               sync.RWMutex
	propertyTypes    map[uuid.UUID]PropertyType
	entityTypes      map[uuid.UUID]EntityType
	associationTypes map[uuid.UUID]AssociationType
	entitySets       map[uuid.UUID]EntitySet
	entitySetsByName map[string]uuid.UUID
}

// NewMemoryRegistry creates a registry pre-populated with the system
// metadata property types.
func NewMemoryRegistry() *MemoryRegistry {
	r := &MemoryRegistry{
		propertyTypes:    make(map[uuid.UUID]PropertyType),
		entityTypes:      make(map[uuid.UUID]EntityType),
		associationTypes: make(map[uuid.UUID]AssociationType),
		entitySets:       make(map[uuid.UUID]EntitySet),
		entitySetsByName: make(map[string]uuid.UUID),
	}
	for _, pt := range SystemPropertyTypes() {
		r.propertyTypes[pt.ID] = pt
	}
	return r
}

// PropertyType resolves a property type by id.
func (r *MemoryRegistry) PropertyType(_ context.Context, id uuid.UUID) (PropertyType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pt, ok := r.propertyTypes[id]
	if !ok {
		return PropertyType{}, oops.Code("TYPE_NOT_FOUND").With("property_type_id", id.String()).Wrap(ErrTypeNotFound)
	}
	return pt, nil
}

// EntityType resolves an entity type by id.
func (r *MemoryRegistry) EntityType(_ context.Context, id uuid.UUID) (EntityType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.entityTypes[id]
	if !ok {
		return EntityType{}, oops.Code("TYPE_NOT_FOUND").With("entity_type_id", id.String()).Wrap(ErrTypeNotFound)
	}
	return et, nil
}

// AssociationType resolves an association type by its entity type id.
func (r *MemoryRegistry) AssociationType(_ context.Context, id uuid.UUID) (AssociationType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	at, ok := r.associationTypes[id]
	if !ok {
		return AssociationType{}, oops.Code("TYPE_NOT_FOUND").With("association_type_id", id.String()).Wrap(ErrTypeNotFound)
	}
	return at, nil
}

// EntitySet resolves an entity set by id.
func (r *MemoryRegistry) EntitySet(_ context.Context, id uuid.UUID) (EntitySet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	es, ok := r.entitySets[id]
	if !ok {
		return EntitySet{}, oops.Code("TYPE_NOT_FOUND").With("entity_set_id", id.String()).Wrap(ErrTypeNotFound)
	}
	return es, nil
}

// EntitySetByName resolves an entity set by its unique name.
func (r *MemoryRegistry) EntitySetByName(_ context.Context, name string) (EntitySet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.entitySetsByName[name]
	if !ok {
		return EntitySet{}, oops.Code("TYPE_NOT_FOUND").With("entity_set_name", name).Wrap(ErrTypeNotFound)
	}
	return r.entitySets[id], nil
}

// RegisterPropertyType adds a property type definition.
func (r *MemoryRegistry) RegisterPropertyType(pt PropertyType) error {
	if !pt.Datatype.Valid() {
		return oops.Code("INVALID_DATATYPE").
			With("property_type_id", pt.ID.String()).
			Errorf("unsupported datatype %q", pt.Datatype)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.propertyTypes[pt.ID] = pt
	return nil
}

// RegisterEntityType adds an entity type definition. Every declared property
// (and every key property) must already be registered.
func (r *MemoryRegistry) RegisterEntityType(et EntityType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range et.Properties {
		if _, ok := r.propertyTypes[p]; !ok {
			return oops.Code("TYPE_NOT_FOUND").
				With("entity_type_id", et.ID.String()).
				With("property_type_id", p.String()).
				Wrapf(ErrTypeNotFound, "entity type %s declares unknown property type %s", et.ID, p)
		}
	}
	for _, k := range et.Key {
		if !et.HasProperty(k) {
			return oops.Code("INVALID_KEY").
				With("entity_type_id", et.ID.String()).
				With("property_type_id", k.String()).
				Errorf("key property %s is not declared on entity type %s", k, et.ID)
		}
	}
	r.entityTypes[et.ID] = et
	return nil
}

// RegisterAssociationType adds an association type. Its wrapped entity type
// is registered alongside so edge entity sets resolve like any other.
func (r *MemoryRegistry) RegisterAssociationType(at AssociationType) error {
	if err := r.RegisterEntityType(at.EntityType); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.associationTypes[at.EntityType.ID] = at
	return nil
}

// RegisterEntitySet adds an entity set bound to a registered type.
// Entity set names are unique.
func (r *MemoryRegistry) RegisterEntitySet(es EntitySet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entityTypes[es.EntityTypeID]; !ok {
		return oops.Code("TYPE_NOT_FOUND").
			With("entity_set_id", es.ID.String()).
			With("entity_type_id", es.EntityTypeID.String()).
			Wrapf(ErrTypeNotFound, "entity set %s binds unknown entity type %s", es.ID, es.EntityTypeID)
	}
	if existing, ok := r.entitySetsByName[es.Name]; ok && existing != es.ID {
		return oops.Code("DUPLICATE_ENTITY_SET").
			With("name", es.Name).
			Errorf("entity set name %q is already bound to %s", es.Name, existing)
	}
	r.entitySets[es.ID] = es
	r.entitySetsByName[es.Name] = es.ID
	return nil
}

// AddSrcEntityType extends an association type's allowed source set.
// Mirrors the external EDM collaborator's addSrcEntityTypeToAssociationType.
func (r *MemoryRegistry) AddSrcEntityType(associationTypeID, entityTypeID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.associationTypes[associationTypeID]
	if !ok {
		return oops.Code("TYPE_NOT_FOUND").With("association_type_id", associationTypeID.String()).Wrap(ErrTypeNotFound)
	}
	if !containsID(at.Src, entityTypeID) {
		at.Src = append(at.Src, entityTypeID)
		r.associationTypes[associationTypeID] = at
	}
	return nil
}

// AddDstEntityType extends an association type's allowed destination set.
func (r *MemoryRegistry) AddDstEntityType(associationTypeID, entityTypeID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.associationTypes[associationTypeID]
	if !ok {
		return oops.Code("TYPE_NOT_FOUND").With("association_type_id", associationTypeID.String()).Wrap(ErrTypeNotFound)
	}
	if !containsID(at.Dst, entityTypeID) {
		at.Dst = append(at.Dst, entityTypeID)
		r.associationTypes[associationTypeID] = at
	}
	return nil
}

// Compile-time interface check.
var _ Registry = (*MemoryRegistry)(nil)
