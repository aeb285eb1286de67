// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package graph

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/graphvault/graphvault/internal/edm"
)

// deriveEntityKeyID produces the entity key id for one entity.
//
// When the entity type declares a natural key, the id is a v5 UUID in the
// entity set's namespace over a canonical encoding of the key properties'
// values: deterministic, so resubmitting identical key values converges on
// the same entity (upsert, not duplicate), and entity-set-scoped, so the
// same key values in two sets never collide. Without a natural key the id
// is a random v4 UUID.
func deriveEntityKeyID(entitySetID uuid.UUID, entityType edm.EntityType, data EntityData) (uuid.UUID, error) {
	if len(entityType.Key) == 0 {
		return uuid.New(), nil
	}

	keyIDs := make([]uuid.UUID, len(entityType.Key))
	copy(keyIDs, entityType.Key)
	sort.Slice(keyIDs, func(i, j int) bool {
		return strings.Compare(keyIDs[i].String(), keyIDs[j].String()) < 0
	})

	var encoded strings.Builder
	for _, propertyTypeID := range keyIDs {
		values := data[propertyTypeID]
		if len(values) == 0 {
			return uuid.Nil, oops.Code("SCHEMA_INCONSISTENCY").
				With("entity_type_id", entityType.ID.String()).
				With("property_type_id", propertyTypeID.String()).
				Errorf("entity is missing a value for key property type %s", propertyTypeID)
		}
		tokens := make([]string, len(values))
		for i, v := range values {
			tokens[i] = v.canonical()
		}
		sort.Strings(tokens)

		encoded.WriteString(propertyTypeID.String())
		encoded.WriteString("=[")
		encoded.WriteString(strings.Join(tokens, "|"))
		encoded.WriteString("];")
	}

	return uuid.NewSHA1(entitySetID, []byte(encoded.String())), nil
}
