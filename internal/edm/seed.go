// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package edm

import (
	"os"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// SeedFile is the on-disk YAML shape for bootstrapping a registry.
type SeedFile struct {
	PropertyTypes    []seedPropertyType    `yaml:"propertyTypes"`
	EntityTypes      []seedEntityType      `yaml:"entityTypes"`
	AssociationTypes []seedAssociationType `yaml:"associationTypes"`
	EntitySets       []seedEntitySet       `yaml:"entitySets"`
}

type seedPropertyType struct {
	ID        string `yaml:"id"`
	Namespace string `yaml:"namespace"`
	Name      string `yaml:"name"`
	Title     string `yaml:"title"`
	Datatype  string `yaml:"datatype"`
}

type seedEntityType struct {
	ID         string   `yaml:"id"`
	Namespace  string   `yaml:"namespace"`
	Name       string   `yaml:"name"`
	Title      string   `yaml:"title"`
	Properties []string `yaml:"properties"`
	Key        []string `yaml:"key"`
}

type seedAssociationType struct {
	EntityType    seedEntityType `yaml:"entityType"`
	Src           []string       `yaml:"src"`
	Dst           []string       `yaml:"dst"`
	Bidirectional bool           `yaml:"bidirectional"`
}

type seedEntitySet struct {
	ID               string   `yaml:"id"`
	Name             string   `yaml:"name"`
	Title            string   `yaml:"title"`
	EntityTypeID     string   `yaml:"entityTypeId"`
	Flags            []string `yaml:"flags"`
	LinkedEntitySets []string `yaml:"linkedEntitySets"`
}

// LoadSeed parses a YAML seed file and registers its contents.
// Registration order follows declaration dependencies: property types,
// entity types, association types, then entity sets.
func LoadSeed(path string, registry *MemoryRegistry) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return oops.Code("SEED_READ_FAILED").With("path", path).Wrap(err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return oops.Code("SEED_PARSE_FAILED").With("path", path).Wrap(err)
	}

	for _, spt := range seed.PropertyTypes {
		pt, err := spt.toPropertyType()
		if err != nil {
			return err
		}
		if err := registry.RegisterPropertyType(pt); err != nil {
			return err
		}
	}
	for _, set := range seed.EntityTypes {
		et, err := set.toEntityType()
		if err != nil {
			return err
		}
		if err := registry.RegisterEntityType(et); err != nil {
			return err
		}
	}
	for _, sat := range seed.AssociationTypes {
		at, err := sat.toAssociationType()
		if err != nil {
			return err
		}
		if err := registry.RegisterAssociationType(at); err != nil {
			return err
		}
	}
	for _, ses := range seed.EntitySets {
		es, err := ses.toEntitySet()
		if err != nil {
			return err
		}
		if err := registry.RegisterEntitySet(es); err != nil {
			return err
		}
	}
	return nil
}

func (s seedPropertyType) toPropertyType() (PropertyType, error) {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return PropertyType{}, oops.Code("SEED_INVALID_ID").With("id", s.ID).With("kind", "property type").Wrap(err)
	}
	return PropertyType{
		ID:       id,
		Type:     FQN{Namespace: s.Namespace, Name: s.Name},
		Title:    s.Title,
		Datatype: Datatype(s.Datatype),
	}, nil
}

func (s seedEntityType) toEntityType() (EntityType, error) {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return EntityType{}, oops.Code("SEED_INVALID_ID").With("id", s.ID).With("kind", "entity type").Wrap(err)
	}
	properties, err := parseIDList(s.Properties)
	if err != nil {
		return EntityType{}, err
	}
	key, err := parseIDList(s.Key)
	if err != nil {
		return EntityType{}, err
	}
	return EntityType{
		ID:         id,
		Type:       FQN{Namespace: s.Namespace, Name: s.Name},
		Title:      s.Title,
		Properties: properties,
		Key:        key,
	}, nil
}

func (s seedAssociationType) toAssociationType() (AssociationType, error) {
	et, err := s.EntityType.toEntityType()
	if err != nil {
		return AssociationType{}, err
	}
	src, err := parseIDList(s.Src)
	if err != nil {
		return AssociationType{}, err
	}
	dst, err := parseIDList(s.Dst)
	if err != nil {
		return AssociationType{}, err
	}
	return AssociationType{
		EntityType:    et,
		Src:           src,
		Dst:           dst,
		Bidirectional: s.Bidirectional,
	}, nil
}

func (s seedEntitySet) toEntitySet() (EntitySet, error) {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return EntitySet{}, oops.Code("SEED_INVALID_ID").With("id", s.ID).With("kind", "entity set").Wrap(err)
	}
	etID, err := uuid.Parse(s.EntityTypeID)
	if err != nil {
		return EntitySet{}, oops.Code("SEED_INVALID_ID").With("id", s.EntityTypeID).With("kind", "entity set type binding").Wrap(err)
	}
	linked, err := parseIDList(s.LinkedEntitySets)
	if err != nil {
		return EntitySet{}, err
	}
	flags := make([]EntitySetFlag, 0, len(s.Flags))
	for _, f := range s.Flags {
		flags = append(flags, EntitySetFlag(f))
	}
	return EntitySet{
		ID:               id,
		Name:             s.Name,
		Title:            s.Title,
		EntityTypeID:     etID,
		Flags:            flags,
		LinkedEntitySets: linked,
	}, nil
}

func parseIDList(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, oops.Code("SEED_INVALID_ID").With("id", r).Wrap(err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
