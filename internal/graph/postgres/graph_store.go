// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

// Package postgres provides the durable pgx-backed storage layer. The
// entities table's composite primary key plus ON CONFLICT upsert is the
// storage half of natural-key idempotency: two submissions deriving the same
// entity key id converge on one row. Soft delete sets deleted_at; hard
// delete removes the row.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/graphvault/graphvault/internal/graph"
)

// GraphStore implements graph.GraphStore using PostgreSQL. All methods
// participate in an active Transactor transaction when one is in context.
type GraphStore struct {
	pool querier
}

// NewGraphStore creates a GraphStore backed by the given connection pool.
func NewGraphStore(pool *pgxpool.Pool) *GraphStore {
	return &GraphStore{pool: pool}
}

// newGraphStoreWithQuerier is the test seam for pgxmock.
func newGraphStoreWithQuerier(q querier) *GraphStore {
	return &GraphStore{pool: q}
}

// UpsertEntity writes an entity, merging or replacing per property. A
// soft-deleted row is reused: the new data replaces it and the row revives.
func (s *GraphStore) UpsertEntity(ctx context.Context, key graph.EntityDataKey, data graph.EntityData, merge bool) error {
	q := executorFrom(ctx, s.pool)

	existing := make(graph.EntityData)
	var raw []byte
	err := q.QueryRow(ctx, `
		SELECT data FROM entities
		WHERE entity_set_id = $1 AND entity_key_id = $2 AND deleted_at IS NULL
	`, key.EntitySetID.String(), key.EntityKeyID.String()).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// New or soft-deleted row: incoming data stands alone.
	case err != nil:
		return oops.With("operation", "read entity for upsert").With("key", key.String()).Wrap(err)
	default:
		existing, err = decodeData(raw)
		if err != nil {
			return err
		}
	}

	encoded, err := encodeData(graph.MergeData(existing, data, merge))
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO entities (entity_set_id, entity_key_id, data, last_write, deleted_at)
		VALUES ($1, $2, $3, now(), NULL)
		ON CONFLICT (entity_set_id, entity_key_id)
		DO UPDATE SET data = EXCLUDED.data, last_write = now(), deleted_at = NULL
	`, key.EntitySetID.String(), key.EntityKeyID.String(), encoded)
	if err != nil {
		return oops.With("operation", "upsert entity").With("key", key.String()).Wrap(mapPgError(err))
	}
	return nil
}

// Entity retrieves a live entity by key.
func (s *GraphStore) Entity(ctx context.Context, key graph.EntityDataKey) (*graph.Entity, error) {
	q := executorFrom(ctx, s.pool)

	var raw []byte
	var lastWrite time.Time
	err := q.QueryRow(ctx, `
		SELECT data, last_write FROM entities
		WHERE entity_set_id = $1 AND entity_key_id = $2 AND deleted_at IS NULL
	`, key.EntitySetID.String(), key.EntityKeyID.String()).Scan(&raw, &lastWrite)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("NOT_FOUND").With("key", key.String()).Wrap(graph.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get entity").With("key", key.String()).Wrap(err)
	}

	data, err := decodeData(raw)
	if err != nil {
		return nil, err
	}
	return &graph.Entity{Key: key, Data: data, LastWrite: lastWrite}, nil
}

// ListEntities returns live entities of a set, optionally filtered by key id.
func (s *GraphStore) ListEntities(ctx context.Context, entitySetID uuid.UUID, keyIDs []uuid.UUID) ([]*graph.Entity, error) {
	q := executorFrom(ctx, s.pool)

	var rows pgx.Rows
	var err error
	if keyIDs == nil {
		rows, err = q.Query(ctx, `
			SELECT entity_key_id, data, last_write FROM entities
			WHERE entity_set_id = $1 AND deleted_at IS NULL
		`, entitySetID.String())
	} else {
		rows, err = q.Query(ctx, `
			SELECT entity_key_id, data, last_write FROM entities
			WHERE entity_set_id = $1 AND entity_key_id = ANY($2) AND deleted_at IS NULL
		`, entitySetID.String(), uuidStrings(keyIDs))
	}
	if err != nil {
		return nil, oops.With("operation", "list entities").With("entity_set_id", entitySetID.String()).Wrap(err)
	}
	defer rows.Close()

	return scanEntities(rows, entitySetID)
}

// CountEntities returns the live entity count of a set.
func (s *GraphStore) CountEntities(ctx context.Context, entitySetID uuid.UUID) (int64, error) {
	q := executorFrom(ctx, s.pool)

	var count int64
	err := q.QueryRow(ctx, `
		SELECT count(*) FROM entities
		WHERE entity_set_id = $1 AND deleted_at IS NULL
	`, entitySetID.String()).Scan(&count)
	if err != nil {
		return 0, oops.With("operation", "count entities").With("entity_set_id", entitySetID.String()).Wrap(err)
	}
	return count, nil
}

// PutEdges records edge triples. Re-inserting a soft-deleted triple revives it.
func (s *GraphStore) PutEdges(ctx context.Context, edges []graph.DataEdgeKey) error {
	q := executorFrom(ctx, s.pool)

	for _, edge := range edges {
		_, err := q.Exec(ctx, `
			INSERT INTO edges (src_entity_set_id, src_entity_key_id,
				dst_entity_set_id, dst_entity_key_id,
				edge_entity_set_id, edge_entity_key_id, deleted_at)
			VALUES ($1, $2, $3, $4, $5, $6, NULL)
			ON CONFLICT (src_entity_set_id, src_entity_key_id,
				dst_entity_set_id, dst_entity_key_id,
				edge_entity_set_id, edge_entity_key_id)
			DO UPDATE SET deleted_at = NULL
		`, edge.Src.EntitySetID.String(), edge.Src.EntityKeyID.String(),
			edge.Dst.EntitySetID.String(), edge.Dst.EntityKeyID.String(),
			edge.Edge.EntitySetID.String(), edge.Edge.EntityKeyID.String())
		if err != nil {
			return oops.With("operation", "put edge").With("edge", edge.Edge.String()).Wrap(mapPgError(err))
		}
	}
	return nil
}

// IncidentEdges returns live edges with any of the given keys as src or dst.
func (s *GraphStore) IncidentEdges(ctx context.Context, keys []graph.EntityDataKey) ([]graph.DataEdgeKey, error) {
	q := executorFrom(ctx, s.pool)

	rows, err := q.Query(ctx, `
		SELECT src_entity_set_id, src_entity_key_id,
			dst_entity_set_id, dst_entity_key_id,
			edge_entity_set_id, edge_entity_key_id
		FROM edges
		WHERE deleted_at IS NULL
		AND (src_entity_set_id::text || '/' || src_entity_key_id::text = ANY($1)
			OR dst_entity_set_id::text || '/' || dst_entity_key_id::text = ANY($1))
	`, dataKeyStrings(keys))
	if err != nil {
		return nil, oops.With("operation", "list incident edges").Wrap(err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// EdgesOf returns live edges whose edge entity is one of the given keys.
func (s *GraphStore) EdgesOf(ctx context.Context, edgeEntityKeys []graph.EntityDataKey) ([]graph.DataEdgeKey, error) {
	q := executorFrom(ctx, s.pool)

	rows, err := q.Query(ctx, `
		SELECT src_entity_set_id, src_entity_key_id,
			dst_entity_set_id, dst_entity_key_id,
			edge_entity_set_id, edge_entity_key_id
		FROM edges
		WHERE deleted_at IS NULL
		AND edge_entity_set_id::text || '/' || edge_entity_key_id::text = ANY($1)
	`, dataKeyStrings(edgeEntityKeys))
	if err != nil {
		return nil, oops.With("operation", "list edges of edge entities").Wrap(err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// DeleteEntities removes entities from a set. Returns the live-before count.
func (s *GraphStore) DeleteEntities(ctx context.Context, entitySetID uuid.UUID, keyIDs []uuid.UUID, deleteType graph.DeleteType) (int, error) {
	q := executorFrom(ctx, s.pool)

	if deleteType == graph.DeleteHard {
		rows, err := q.Query(ctx, `
			DELETE FROM entities
			WHERE entity_set_id = $1 AND entity_key_id = ANY($2)
			RETURNING (deleted_at IS NULL)
		`, entitySetID.String(), uuidStrings(keyIDs))
		if err != nil {
			return 0, oops.With("operation", "hard delete entities").With("entity_set_id", entitySetID.String()).Wrap(err)
		}
		return countLive(rows)
	}

	tag, err := q.Exec(ctx, `
		UPDATE entities SET deleted_at = now()
		WHERE entity_set_id = $1 AND entity_key_id = ANY($2) AND deleted_at IS NULL
	`, entitySetID.String(), uuidStrings(keyIDs))
	if err != nil {
		return 0, oops.With("operation", "soft delete entities").With("entity_set_id", entitySetID.String()).Wrap(err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteAllEntities removes the full current membership of a set.
func (s *GraphStore) DeleteAllEntities(ctx context.Context, entitySetID uuid.UUID, deleteType graph.DeleteType) (int, error) {
	q := executorFrom(ctx, s.pool)

	if deleteType == graph.DeleteHard {
		rows, err := q.Query(ctx, `
			DELETE FROM entities WHERE entity_set_id = $1
			RETURNING (deleted_at IS NULL)
		`, entitySetID.String())
		if err != nil {
			return 0, oops.With("operation", "hard delete all entities").With("entity_set_id", entitySetID.String()).Wrap(err)
		}
		return countLive(rows)
	}

	tag, err := q.Exec(ctx, `
		UPDATE entities SET deleted_at = now()
		WHERE entity_set_id = $1 AND deleted_at IS NULL
	`, entitySetID.String())
	if err != nil {
		return 0, oops.With("operation", "soft delete all entities").With("entity_set_id", entitySetID.String()).Wrap(err)
	}
	return int(tag.RowsAffected()), nil
}

// ClearProperties removes the named properties' values from one entity.
func (s *GraphStore) ClearProperties(ctx context.Context, key graph.EntityDataKey, propertyTypeIDs []uuid.UUID, _ graph.DeleteType) (int, error) {
	q := executorFrom(ctx, s.pool)

	var raw []byte
	err := q.QueryRow(ctx, `
		SELECT data FROM entities
		WHERE entity_set_id = $1 AND entity_key_id = $2 AND deleted_at IS NULL
	`, key.EntitySetID.String(), key.EntityKeyID.String()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("NOT_FOUND").With("key", key.String()).Wrap(graph.ErrNotFound)
	}
	if err != nil {
		return 0, oops.With("operation", "read entity for clear").With("key", key.String()).Wrap(err)
	}

	data, err := decodeData(raw)
	if err != nil {
		return 0, err
	}
	cleared := 0
	for _, propertyTypeID := range propertyTypeIDs {
		if values, ok := data[propertyTypeID]; ok && len(values) > 0 {
			cleared++
		}
		delete(data, propertyTypeID)
	}

	encoded, err := encodeData(data)
	if err != nil {
		return 0, err
	}
	_, err = q.Exec(ctx, `
		UPDATE entities SET data = $3, last_write = now()
		WHERE entity_set_id = $1 AND entity_key_id = $2 AND deleted_at IS NULL
	`, key.EntitySetID.String(), key.EntityKeyID.String(), encoded)
	if err != nil {
		return 0, oops.With("operation", "clear properties").With("key", key.String()).Wrap(err)
	}
	return cleared, nil
}

// DeleteEdges removes edge triples.
func (s *GraphStore) DeleteEdges(ctx context.Context, edges []graph.DataEdgeKey, deleteType graph.DeleteType) (int, error) {
	q := executorFrom(ctx, s.pool)

	deleted := 0
	for _, edge := range edges {
		args := []any{
			edge.Src.EntitySetID.String(), edge.Src.EntityKeyID.String(),
			edge.Dst.EntitySetID.String(), edge.Dst.EntityKeyID.String(),
			edge.Edge.EntitySetID.String(), edge.Edge.EntityKeyID.String(),
		}
		var tag int64
		if deleteType == graph.DeleteHard {
			rows, err := q.Query(ctx, `
				DELETE FROM edges
				WHERE src_entity_set_id = $1 AND src_entity_key_id = $2
				AND dst_entity_set_id = $3 AND dst_entity_key_id = $4
				AND edge_entity_set_id = $5 AND edge_entity_key_id = $6
				RETURNING (deleted_at IS NULL)
			`, args...)
			if err != nil {
				return deleted, oops.With("operation", "hard delete edge").With("edge", edge.Edge.String()).Wrap(err)
			}
			live, err := countLive(rows)
			if err != nil {
				return deleted, err
			}
			tag = int64(live)
		} else {
			result, err := q.Exec(ctx, `
				UPDATE edges SET deleted_at = now()
				WHERE src_entity_set_id = $1 AND src_entity_key_id = $2
				AND dst_entity_set_id = $3 AND dst_entity_key_id = $4
				AND edge_entity_set_id = $5 AND edge_entity_key_id = $6
				AND deleted_at IS NULL
			`, args...)
			if err != nil {
				return deleted, oops.With("operation", "soft delete edge").With("edge", edge.Edge.String()).Wrap(err)
			}
			tag = result.RowsAffected()
		}
		deleted += int(tag)
	}
	return deleted, nil
}

func scanEntities(rows pgx.Rows, entitySetID uuid.UUID) ([]*graph.Entity, error) {
	entities := make([]*graph.Entity, 0)
	for rows.Next() {
		var keyIDStr string
		var raw []byte
		var lastWrite time.Time
		if err := rows.Scan(&keyIDStr, &raw, &lastWrite); err != nil {
			return nil, oops.With("operation", "scan entity").Wrap(err)
		}
		keyID, err := uuid.Parse(keyIDStr)
		if err != nil {
			return nil, oops.With("operation", "parse entity key id").With("entity_key_id", keyIDStr).Wrap(err)
		}
		data, err := decodeData(raw)
		if err != nil {
			return nil, err
		}
		entities = append(entities, &graph.Entity{
			Key:       graph.EntityDataKey{EntitySetID: entitySetID, EntityKeyID: keyID},
			Data:      data,
			LastWrite: lastWrite,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate entities").Wrap(err)
	}
	return entities, nil
}

func scanEdges(rows pgx.Rows) ([]graph.DataEdgeKey, error) {
	edges := make([]graph.DataEdgeKey, 0)
	for rows.Next() {
		var fields [6]string
		if err := rows.Scan(&fields[0], &fields[1], &fields[2], &fields[3], &fields[4], &fields[5]); err != nil {
			return nil, oops.With("operation", "scan edge").Wrap(err)
		}
		ids := make([]uuid.UUID, 6)
		for i, f := range fields {
			id, err := uuid.Parse(f)
			if err != nil {
				return nil, oops.With("operation", "parse edge id").With("value", f).Wrap(err)
			}
			ids[i] = id
		}
		edges = append(edges, graph.DataEdgeKey{
			Src:  graph.EntityDataKey{EntitySetID: ids[0], EntityKeyID: ids[1]},
			Dst:  graph.EntityDataKey{EntitySetID: ids[2], EntityKeyID: ids[3]},
			Edge: graph.EntityDataKey{EntitySetID: ids[4], EntityKeyID: ids[5]},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate edges").Wrap(err)
	}
	return edges, nil
}

// countLive counts RETURNING rows whose deleted_at was NULL before the
// delete, giving the live-before count for hard deletes.
func countLive(rows pgx.Rows) (int, error) {
	defer rows.Close()
	live := 0
	for rows.Next() {
		var wasLive bool
		if err := rows.Scan(&wasLive); err != nil {
			return 0, oops.With("operation", "scan delete result").Wrap(err)
		}
		if wasLive {
			live++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, oops.With("operation", "iterate delete results").Wrap(err)
	}
	return live, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func dataKeyStrings(keys []graph.EntityDataKey) []string {
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = key.String()
	}
	return out
}

// Compile-time interface check.
var _ graph.GraphStore = (*GraphStore)(nil)
