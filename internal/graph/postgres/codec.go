// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package postgres

import (
	"encoding/json"

	"github.com/samber/oops"

	"github.com/graphvault/graphvault/internal/graph"
)

// encodeData serializes entity data for the JSONB column: property type id
// keys over arrays of kind-tagged values (graph.PropertyValue's JSON form).
func encodeData(data graph.EntityData) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, oops.Code("VALUE_ENCODE_FAILED").Wrap(err)
	}
	return raw, nil
}

// decodeData deserializes the JSONB column back into entity data.
func decodeData(raw []byte) (graph.EntityData, error) {
	var data graph.EntityData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, oops.Code("VALUE_DECODE_FAILED").Wrap(err)
	}
	return data, nil
}
