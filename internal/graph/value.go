// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package graph

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/graphvault/graphvault/internal/edm"
)

// ValueKind tags a PropertyValue variant.
type ValueKind int

// ValueKind constants define the property value variants.
const (
	ValueString ValueKind = iota
	ValueNumber
	ValueBool
	ValueDate
	ValueDateTime
	ValueBytes
)

// PropertyValue is a tagged union over the primitive datatypes a property
// may carry. Only the field matching Kind is meaningful.
type PropertyValue struct {
	Kind  ValueKind
	Str   string
	Num   float64
	Bool  bool
	Time  time.Time
	Bytes []byte
}

// StringValue wraps a string.
func StringValue(s string) PropertyValue { return PropertyValue{Kind: ValueString, Str: s} }

// NumberValue wraps a number.
func NumberValue(n float64) PropertyValue { return PropertyValue{Kind: ValueNumber, Num: n} }

// BoolValue wraps a boolean.
func BoolValue(b bool) PropertyValue { return PropertyValue{Kind: ValueBool, Bool: b} }

// DateValue wraps a date (time component ignored by comparison).
func DateValue(t time.Time) PropertyValue { return PropertyValue{Kind: ValueDate, Time: t} }

// DateTimeValue wraps an instant.
func DateTimeValue(t time.Time) PropertyValue { return PropertyValue{Kind: ValueDateTime, Time: t} }

// BytesValue wraps binary data.
func BytesValue(b []byte) PropertyValue { return PropertyValue{Kind: ValueBytes, Bytes: b} }

// Matches reports whether the value's kind is storable under the datatype.
func (v PropertyValue) Matches(dt edm.Datatype) bool {
	switch v.Kind {
	case ValueString:
		return dt == edm.DatatypeString
	case ValueNumber:
		return dt == edm.DatatypeNumber
	case ValueBool:
		return dt == edm.DatatypeBoolean
	case ValueDate:
		return dt == edm.DatatypeDate
	case ValueDateTime:
		return dt == edm.DatatypeDateTime
	case ValueBytes:
		return dt == edm.DatatypeBinary
	}
	return false
}

// canonical returns a stable token used for set deduplication and
// natural-key derivation. Two values are the same set member iff their
// canonical tokens are equal.
func (v PropertyValue) canonical() string {
	switch v.Kind {
	case ValueString:
		return "s:" + v.Str
	case ValueNumber:
		return "n:" + strconv.FormatFloat(v.Num, 'g', -1, 64)
	case ValueBool:
		return "b:" + strconv.FormatBool(v.Bool)
	case ValueDate:
		return "d:" + v.Time.Format("2006-01-02")
	case ValueDateTime:
		return "t:" + v.Time.UTC().Format(time.RFC3339Nano)
	case ValueBytes:
		return "x:" + hex.EncodeToString(v.Bytes)
	}
	return fmt.Sprintf("?:%d", v.Kind)
}

// wireValue is the kind-tagged JSON form of a PropertyValue, shared by the
// HTTP API and the JSONB storage column.
type wireValue struct {
	Kind   string    `json:"kind"`
	String string    `json:"string,omitempty"`
	Number float64   `json:"number,omitempty"`
	Bool   bool      `json:"boolean,omitempty"`
	Time   time.Time `json:"time,omitzero"`
	Bytes  []byte    `json:"binary,omitempty"`
}

var kindNames = map[ValueKind]string{
	ValueString:   "string",
	ValueNumber:   "number",
	ValueBool:     "boolean",
	ValueDate:     "date",
	ValueDateTime: "datetime",
	ValueBytes:    "binary",
}

// MarshalJSON renders the value in kind-tagged object form.
func (v PropertyValue) MarshalJSON() ([]byte, error) {
	name, ok := kindNames[v.Kind]
	if !ok {
		return nil, oops.Code("VALUE_ENCODE_FAILED").Errorf("unknown value kind %d", v.Kind)
	}
	w := wireValue{Kind: name}
	switch v.Kind {
	case ValueString:
		w.String = v.Str
	case ValueNumber:
		w.Number = v.Num
	case ValueBool:
		w.Bool = v.Bool
	case ValueDate, ValueDateTime:
		w.Time = v.Time
	case ValueBytes:
		w.Bytes = v.Bytes
	}
	return json.Marshal(w) //nolint:wrapcheck // marshal of plain struct cannot fail
}

// UnmarshalJSON parses the kind-tagged object form.
func (v *PropertyValue) UnmarshalJSON(raw []byte) error {
	var w wireValue
	if err := json.Unmarshal(raw, &w); err != nil {
		return oops.Code("VALUE_DECODE_FAILED").Wrap(err)
	}
	switch w.Kind {
	case "string":
		*v = StringValue(w.String)
	case "number":
		*v = NumberValue(w.Number)
	case "boolean":
		*v = BoolValue(w.Bool)
	case "date":
		*v = DateValue(w.Time)
	case "datetime":
		*v = DateTimeValue(w.Time)
	case "binary":
		*v = BytesValue(w.Bytes)
	default:
		return oops.Code("VALUE_DECODE_FAILED").With("kind", w.Kind).Errorf("unknown value kind %q", w.Kind)
	}
	return nil
}

// EntityData maps property type ids to value sets. Duplicate values collapse.
type EntityData map[uuid.UUID][]PropertyValue

// Normalize returns a copy with duplicate values collapsed per property.
func (d EntityData) Normalize() EntityData {
	normalized := make(EntityData, len(d))
	for propertyTypeID, values := range d {
		normalized[propertyTypeID] = dedupeValues(values)
	}
	return normalized
}

// Clone returns a deep copy.
func (d EntityData) Clone() EntityData {
	cloned := make(EntityData, len(d))
	for propertyTypeID, values := range d {
		copied := make([]PropertyValue, len(values))
		copy(copied, values)
		cloned[propertyTypeID] = copied
	}
	return cloned
}

func dedupeValues(values []PropertyValue) []PropertyValue {
	seen := make(map[string]struct{}, len(values))
	deduped := make([]PropertyValue, 0, len(values))
	for _, v := range values {
		token := v.canonical()
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		deduped = append(deduped, v)
	}
	return deduped
}

// mergeValues unions incoming values into existing ones (create semantics).
func mergeValues(existing, incoming []PropertyValue) []PropertyValue {
	return dedupeValues(append(append([]PropertyValue{}, existing...), incoming...))
}

// MergeData applies incoming data over existing data. With merge set, each
// named property's values union into the existing set; otherwise the named
// property's value set is fully replaced. Properties not named keep their
// values. Storage implementations share this so both halves of the upsert
// behave identically.
func MergeData(existing, incoming EntityData, merge bool) EntityData {
	out := existing.Clone()
	for propertyTypeID, values := range incoming {
		if merge {
			out[propertyTypeID] = mergeValues(out[propertyTypeID], values)
		} else {
			out[propertyTypeID] = dedupeValues(values)
		}
	}
	return out
}

// validateData checks that every property in data is declared on the entity
// type and that every value matches its property type's datatype.
func validateData(ctx context.Context, registry edm.Registry, entityType edm.EntityType, data EntityData) error {
	for propertyTypeID, values := range data {
		if !entityType.HasProperty(propertyTypeID) {
			return oops.Code("SCHEMA_INCONSISTENCY").
				With("entity_type_id", entityType.ID.String()).
				With("property_type_id", propertyTypeID.String()).
				Errorf("property type %s is not declared on entity type %s", propertyTypeID, entityType.ID)
		}
		propertyType, err := registry.PropertyType(ctx, propertyTypeID)
		if err != nil {
			return schemaInconsistency(err, "property type", propertyTypeID)
		}
		for _, v := range values {
			if !v.Matches(propertyType.Datatype) {
				return oops.Code("SCHEMA_INCONSISTENCY").
					With("property_type_id", propertyTypeID.String()).
					With("datatype", string(propertyType.Datatype)).
					Errorf("value of kind %d does not match datatype %q of property type %s",
						v.Kind, propertyType.Datatype, propertyTypeID)
			}
		}
	}
	return nil
}
