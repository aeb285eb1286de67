// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

// Package graph implements the property graph mutation, deletion, and read
// engines. Entities are held in arena-style storage keyed by
// (entitySetId, entityKeyId); edges reference those keys by value, never by
// pointer, so the cyclic src/dst/edge structure carries no ownership cycles.
package graph

import (
	"fmt"

	"github.com/google/uuid"
)

// EntityDataKey identifies one entity: the set it lives in plus its key id.
type EntityDataKey struct {
	EntitySetID uuid.UUID
	EntityKeyID uuid.UUID
}

// String returns the "entitySetId/entityKeyId" form.
func (k EntityDataKey) String() string {
	return fmt.Sprintf("%s/%s", k.EntitySetID, k.EntityKeyID)
}

// DataEdgeKey identifies one edge: its endpoints plus the edge entity that
// carries the association's properties.
type DataEdgeKey struct {
	Src  EntityDataKey
	Dst  EntityDataKey
	Edge EntityDataKey
}

// DataEdge is the payload form used when edge entities are created together
// with the edge itself.
type DataEdge struct {
	Src  EntityDataKey
	Dst  EntityDataKey
	Data EntityData
}

// DeleteType selects soft (recoverable, WRITE-gated) or hard (irreversible,
// OWNER-gated) removal.
type DeleteType string

// DeleteType constants define the two removal modes.
const (
	DeleteSoft DeleteType = "Soft"
	DeleteHard DeleteType = "Hard"
)
