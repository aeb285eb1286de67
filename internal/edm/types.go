// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

// Package edm defines the entity data model: property types, entity types,
// association types, and entity sets. The registry is the read-only view the
// mutation and deletion engines consult; type CRUD is owned by an external
// EDM component, of which only the extension operations are mirrored here.
package edm

import (
	"fmt"

	"github.com/google/uuid"
)

// Datatype is the primitive datatype of a property type.
type Datatype string

// Datatype constants define the supported primitive datatypes.
const (
	DatatypeString   Datatype = "string"
	DatatypeNumber   Datatype = "number"
	DatatypeBoolean  Datatype = "boolean"
	DatatypeDate     Datatype = "date"
	DatatypeDateTime Datatype = "datetime"
	DatatypeBinary   Datatype = "binary"
)

// Valid reports whether dt is one of the supported datatypes.
func (dt Datatype) Valid() bool {
	switch dt {
	case DatatypeString, DatatypeNumber, DatatypeBoolean, DatatypeDate, DatatypeDateTime, DatatypeBinary:
		return true
	}
	return false
}

// FQN is a fully-qualified name, globally unique across property types.
type FQN struct {
	Namespace string
	Name      string
}

// String returns the canonical "namespace.name" form.
func (f FQN) String() string {
	return fmt.Sprintf("%s.%s", f.Namespace, f.Name)
}

// PropertyType describes a single typed property.
// The id and datatype are immutable once entities reference the property;
// namespace and title edits propagate to readers, not to stored data.
type PropertyType struct {
	ID       uuid.UUID
	Type     FQN
	Title    string
	Datatype Datatype
}

// EntityType constrains which property types an entity may carry.
// Key names the subset of Properties used to derive a deterministic
// entity key id when no explicit id is supplied.
type EntityType struct {
	ID         uuid.UUID
	Type       FQN
	Title      string
	Properties []uuid.UUID
	Key        []uuid.UUID
}

// HasProperty reports whether the entity type declares the given property type.
func (et EntityType) HasProperty(propertyTypeID uuid.UUID) bool {
	for _, p := range et.Properties {
		if p == propertyTypeID {
			return true
		}
	}
	return false
}

// AssociationType wraps an EntityType (an edge carries properties like any
// entity) plus the declared sets of allowed endpoint entity types.
// If Bidirectional, an edge is valid when the (src, dst) entity type pair
// matches the allowed pairing in either orientation.
type AssociationType struct {
	EntityType    EntityType
	Src           []uuid.UUID
	Dst           []uuid.UUID
	Bidirectional bool
}

// AllowsSrc reports whether the given entity type is an allowed source.
// An empty allowed set matches nothing.
func (at AssociationType) AllowsSrc(entityTypeID uuid.UUID) bool {
	return containsID(at.Src, entityTypeID)
}

// AllowsDst reports whether the given entity type is an allowed destination.
func (at AssociationType) AllowsDst(entityTypeID uuid.UUID) bool {
	return containsID(at.Dst, entityTypeID)
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// EntitySetFlag marks entity set variants.
type EntitySetFlag string

// EntitySetFlag constants define the recognized entity set variants.
const (
	// EntitySetFlagAssociation marks a set whose entities are edges.
	EntitySetFlagAssociation EntitySetFlag = "association"
	// EntitySetFlagLinking marks a virtual, read-only union of entity sets
	// sharing an entity type.
	EntitySetFlagLinking EntitySetFlag = "linking"
)

// EntitySet is a named, independently-permissioned collection of entities
// bound to exactly one entity type (or association type, for edge sets).
type EntitySet struct {
	ID           uuid.UUID
	Name         string
	Title        string
	EntityTypeID uuid.UUID
	Flags        []EntitySetFlag
	// LinkedEntitySets names the member sets of a linking entity set.
	LinkedEntitySets []uuid.UUID
}

// IsAssociation reports whether the set holds edges.
func (es EntitySet) IsAssociation() bool {
	return es.hasFlag(EntitySetFlagAssociation)
}

// IsLinking reports whether the set is a virtual linking entity set.
func (es EntitySet) IsLinking() bool {
	return es.hasFlag(EntitySetFlagLinking)
}

func (es EntitySet) hasFlag(flag EntitySetFlag) bool {
	for _, f := range es.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// System metadata property types. These appear on every entity read but are
// never writable by callers and are not part of any entity type declaration.
var (
	// IDPropertyTypeID carries the entity key id.
	IDPropertyTypeID = uuid.MustParse("d9b70a4d-dd24-4b54-b38a-4a46e0ee0f0f")
	// LastWritePropertyTypeID carries the last primary-store write time.
	LastWritePropertyTypeID = uuid.MustParse("24f039a5-3fcb-4b4e-b0a1-66e0bee0b0aa")
	// LastIndexPropertyTypeID carries the last search-index refresh time.
	LastIndexPropertyTypeID = uuid.MustParse("8103b26e-6441-4ae6-bd0e-f0bbd0e0c0bb")
)

// SystemPropertyTypes returns the metadata property type definitions
// pre-registered in every registry.
func SystemPropertyTypes() []PropertyType {
	return []PropertyType{
		{ID: IDPropertyTypeID, Type: FQN{Namespace: "gv", Name: "@id"}, Title: "Entity key id", Datatype: DatatypeString},
		{ID: LastWritePropertyTypeID, Type: FQN{Namespace: "gv", Name: "@lastWrite"}, Title: "Last write", Datatype: DatatypeDateTime},
		{ID: LastIndexPropertyTypeID, Type: FQN{Namespace: "gv", Name: "@lastIndex"}, Title: "Last index", Datatype: DatatypeDateTime},
	}
}

// IsSystemPropertyType reports whether the id names a system metadata property.
func IsSystemPropertyType(id uuid.UUID) bool {
	return id == IDPropertyTypeID || id == LastWritePropertyTypeID || id == LastIndexPropertyTypeID
}
