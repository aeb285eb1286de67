// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package graph

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Entity is one stored entity: its key, its property value sets, and the
// last primary-store write time.
type Entity struct {
	Key       EntityDataKey
	Data      EntityData
	LastWrite time.Time
}

// GraphStore is the arena the engines mutate. Implementations must be safe
// for concurrent use; natural-key convergence relies on UpsertEntity being
// atomic per key.
type GraphStore interface {
	// UpsertEntity writes an entity. With merge set, incoming values union
	// into existing value sets (create semantics); otherwise each named
	// property's value set is fully replaced (partial-replace update).
	UpsertEntity(ctx context.Context, key EntityDataKey, data EntityData, merge bool) error

	// Entity returns a live entity or ErrNotFound (absent, soft- or
	// hard-deleted all read as not found).
	Entity(ctx context.Context, key EntityDataKey) (*Entity, error)

	// ListEntities returns live entities of a set. A nil keyIDs filter
	// returns the full membership.
	ListEntities(ctx context.Context, entitySetID uuid.UUID, keyIDs []uuid.UUID) ([]*Entity, error)

	// CountEntities returns the live entity count of a set.
	CountEntities(ctx context.Context, entitySetID uuid.UUID) (int64, error)

	// PutEdges records edge triples. Edge entities must already exist.
	PutEdges(ctx context.Context, edges []DataEdgeKey) error

	// IncidentEdges returns live edges with any of the given keys as src or
	// dst endpoint.
	IncidentEdges(ctx context.Context, keys []EntityDataKey) ([]DataEdgeKey, error)

	// EdgesOf returns live edges whose edge entity is one of the given keys.
	EdgesOf(ctx context.Context, edgeEntityKeys []EntityDataKey) ([]DataEdgeKey, error)

	// DeleteEntities removes entities. Soft marks them invisible without
	// reclaiming the slot; hard removes them irrecoverably. Returns the
	// number of entities that were live before the call.
	DeleteEntities(ctx context.Context, entitySetID uuid.UUID, keyIDs []uuid.UUID, deleteType DeleteType) (int, error)

	// DeleteAllEntities removes the full current membership of a set.
	DeleteAllEntities(ctx context.Context, entitySetID uuid.UUID, deleteType DeleteType) (int, error)

	// ClearProperties removes the named properties' values from one entity.
	// Returns the number of properties that had values.
	ClearProperties(ctx context.Context, key EntityDataKey, propertyTypeIDs []uuid.UUID, deleteType DeleteType) (int, error)

	// DeleteEdges removes edge triples (not their edge entities).
	DeleteEdges(ctx context.Context, edges []DataEdgeKey, deleteType DeleteType) (int, error)
}

// entityRecord is the arena slot for one entity.
type entityRecord struct {
	data      EntityData
	lastWrite time.Time
	deleted   bool
}

// edgeRecord tracks one edge triple's liveness.
type edgeRecord struct {
	deleted bool
}

// MemoryGraphStore is an in-memory GraphStore guarded by a RWMutex.
// It is the authoritative implementation for unit tests and small
// deployments; the postgres package provides the durable one.
type MemoryGraphStore struct {
	mu       sync.RWMutex
	entities map[EntityDataKey]*entityRecord
	bySet    map[uuid.UUID]map[uuid.UUID]struct{}
	edges    map[DataEdgeKey]*edgeRecord
	incident map[EntityDataKey]map[DataEdgeKey]struct{}
	byEdge   map[EntityDataKey]map[DataEdgeKey]struct{}
	now      func() time.Time
}

// NewMemoryGraphStore creates an empty in-memory store.
func NewMemoryGraphStore() *MemoryGraphStore {
	return &MemoryGraphStore{
		entities: make(map[EntityDataKey]*entityRecord),
		bySet:    make(map[uuid.UUID]map[uuid.UUID]struct{}),
		edges:    make(map[DataEdgeKey]*edgeRecord),
		incident: make(map[EntityDataKey]map[DataEdgeKey]struct{}),
		byEdge:   make(map[EntityDataKey]map[DataEdgeKey]struct{}),
		now:      time.Now,
	}
}

// UpsertEntity writes an entity, merging or replacing per property.
func (s *MemoryGraphStore) UpsertEntity(_ context.Context, key EntityDataKey, data EntityData, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.entities[key]
	if !ok || record.deleted {
		// A soft-deleted slot is reused: the new entity replaces it.
		record = &entityRecord{data: make(EntityData)}
		s.entities[key] = record
		members, ok := s.bySet[key.EntitySetID]
		if !ok {
			members = make(map[uuid.UUID]struct{})
			s.bySet[key.EntitySetID] = members
		}
		members[key.EntityKeyID] = struct{}{}
	}

	for propertyTypeID, values := range data {
		if merge {
			record.data[propertyTypeID] = mergeValues(record.data[propertyTypeID], values)
		} else {
			record.data[propertyTypeID] = dedupeValues(values)
		}
	}
	record.lastWrite = s.now()
	return nil
}

// Entity returns a live entity by key.
func (s *MemoryGraphStore) Entity(_ context.Context, key EntityDataKey) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.entities[key]
	if !ok || record.deleted {
		return nil, oops.Code("NOT_FOUND").With("key", key.String()).Wrap(ErrNotFound)
	}
	return &Entity{Key: key, Data: record.data.Clone(), LastWrite: record.lastWrite}, nil
}

// ListEntities returns live entities of a set, optionally filtered by key id.
func (s *MemoryGraphStore) ListEntities(_ context.Context, entitySetID uuid.UUID, keyIDs []uuid.UUID) ([]*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []uuid.UUID
	if keyIDs != nil {
		candidates = keyIDs
	} else {
		for id := range s.bySet[entitySetID] {
			candidates = append(candidates, id)
		}
	}

	entities := make([]*Entity, 0, len(candidates))
	for _, id := range candidates {
		key := EntityDataKey{EntitySetID: entitySetID, EntityKeyID: id}
		record, ok := s.entities[key]
		if !ok || record.deleted {
			continue
		}
		entities = append(entities, &Entity{Key: key, Data: record.data.Clone(), LastWrite: record.lastWrite})
	}
	return entities, nil
}

// CountEntities returns the live entity count of a set.
func (s *MemoryGraphStore) CountEntities(_ context.Context, entitySetID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for id := range s.bySet[entitySetID] {
		record := s.entities[EntityDataKey{EntitySetID: entitySetID, EntityKeyID: id}]
		if record != nil && !record.deleted {
			count++
		}
	}
	return count, nil
}

// PutEdges records edge triples and indexes both endpoints.
func (s *MemoryGraphStore) PutEdges(_ context.Context, edges []DataEdgeKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, edge := range edges {
		s.edges[edge] = &edgeRecord{}
		s.indexEndpoint(edge.Src, edge)
		s.indexEndpoint(edge.Dst, edge)
		byEdge, ok := s.byEdge[edge.Edge]
		if !ok {
			byEdge = make(map[DataEdgeKey]struct{})
			s.byEdge[edge.Edge] = byEdge
		}
		byEdge[edge] = struct{}{}
	}
	return nil
}

func (s *MemoryGraphStore) indexEndpoint(key EntityDataKey, edge DataEdgeKey) {
	edges, ok := s.incident[key]
	if !ok {
		edges = make(map[DataEdgeKey]struct{})
		s.incident[key] = edges
	}
	edges[edge] = struct{}{}
}

// IncidentEdges returns live edges touching any of the given entity keys.
func (s *MemoryGraphStore) IncidentEdges(_ context.Context, keys []EntityDataKey) ([]DataEdgeKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[DataEdgeKey]struct{})
	var result []DataEdgeKey
	for _, key := range keys {
		for edge := range s.incident[key] {
			if _, ok := seen[edge]; ok {
				continue
			}
			if record := s.edges[edge]; record == nil || record.deleted {
				continue
			}
			seen[edge] = struct{}{}
			result = append(result, edge)
		}
	}
	return result, nil
}

// EdgesOf returns live edges whose edge entity is one of the given keys.
func (s *MemoryGraphStore) EdgesOf(_ context.Context, edgeEntityKeys []EntityDataKey) ([]DataEdgeKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []DataEdgeKey
	for _, key := range edgeEntityKeys {
		for edge := range s.byEdge[key] {
			if record := s.edges[edge]; record == nil || record.deleted {
				continue
			}
			result = append(result, edge)
		}
	}
	return result, nil
}

// DeleteEntities removes entities from a set.
func (s *MemoryGraphStore) DeleteEntities(_ context.Context, entitySetID uuid.UUID, keyIDs []uuid.UUID, deleteType DeleteType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteEntitiesLocked(entitySetID, keyIDs, deleteType), nil
}

// DeleteAllEntities removes the full current membership of a set.
func (s *MemoryGraphStore) DeleteAllEntities(_ context.Context, entitySetID uuid.UUID, deleteType DeleteType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keyIDs []uuid.UUID
	for id := range s.bySet[entitySetID] {
		keyIDs = append(keyIDs, id)
	}
	return s.deleteEntitiesLocked(entitySetID, keyIDs, deleteType), nil
}

func (s *MemoryGraphStore) deleteEntitiesLocked(entitySetID uuid.UUID, keyIDs []uuid.UUID, deleteType DeleteType) int {
	deleted := 0
	for _, id := range keyIDs {
		key := EntityDataKey{EntitySetID: entitySetID, EntityKeyID: id}
		record, ok := s.entities[key]
		if !ok || record.deleted {
			continue
		}
		deleted++
		if deleteType == DeleteHard {
			delete(s.entities, key)
			delete(s.bySet[entitySetID], id)
		} else {
			record.deleted = true
		}
	}
	return deleted
}

// ClearProperties removes the named properties' values from one entity.
func (s *MemoryGraphStore) ClearProperties(_ context.Context, key EntityDataKey, propertyTypeIDs []uuid.UUID, _ DeleteType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.entities[key]
	if !ok || record.deleted {
		return 0, oops.Code("NOT_FOUND").With("key", key.String()).Wrap(ErrNotFound)
	}

	cleared := 0
	for _, propertyTypeID := range propertyTypeIDs {
		if values, ok := record.data[propertyTypeID]; ok && len(values) > 0 {
			cleared++
		}
		delete(record.data, propertyTypeID)
	}
	record.lastWrite = s.now()
	return cleared, nil
}

// DeleteEdges removes edge triples.
func (s *MemoryGraphStore) DeleteEdges(_ context.Context, edges []DataEdgeKey, deleteType DeleteType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, edge := range edges {
		record, ok := s.edges[edge]
		if !ok || record.deleted {
			continue
		}
		deleted++
		if deleteType == DeleteHard {
			delete(s.edges, edge)
			delete(s.incident[edge.Src], edge)
			delete(s.incident[edge.Dst], edge)
			delete(s.byEdge[edge.Edge], edge)
		} else {
			record.deleted = true
		}
	}
	return deleted, nil
}

// Compile-time interface check.
var _ GraphStore = (*MemoryGraphStore)(nil)
