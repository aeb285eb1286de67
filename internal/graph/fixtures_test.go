// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package graph_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/graphvault/graphvault/internal/authz"
	"github.com/graphvault/graphvault/internal/edm"
	"github.com/graphvault/graphvault/internal/graph"
)

// fixture wires a registry, an in-memory store, and an in-memory ACL store
// into the three engines, with a small office-worlds schema:
//
//	person (name*, age) -- works_at (since) --> office (name)
//	person -- friend_of (bidirectional) --> person
//
// The starred property is the natural key of person; office has none.
type fixture struct {
	registry   *edm.MemoryRegistry
	store      *graph.MemoryGraphStore
	acls       *authz.MemoryAclStore
	authorizer *authz.Authorizer

	namePropID  uuid.UUID
	agePropID   uuid.UUID
	sincePropID uuid.UUID

	personTypeID   uuid.UUID
	officeTypeID   uuid.UUID
	worksAtTypeID  uuid.UUID
	friendOfTypeID uuid.UUID

	peopleSetID  uuid.UUID
	officesSetID uuid.UUID
	worksAtSetID uuid.UUID
	friendsSetID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		registry: edm.NewMemoryRegistry(),
		store:    graph.NewMemoryGraphStore(),
		acls:     authz.NewMemoryAclStore(),

		namePropID:  uuid.New(),
		agePropID:   uuid.New(),
		sincePropID: uuid.New(),

		personTypeID:   uuid.New(),
		officeTypeID:   uuid.New(),
		worksAtTypeID:  uuid.New(),
		friendOfTypeID: uuid.New(),

		peopleSetID:  uuid.New(),
		officesSetID: uuid.New(),
		worksAtSetID: uuid.New(),
		friendsSetID: uuid.New(),
	}
	f.authorizer = authz.NewAuthorizer(f.acls)

	require.NoError(t, f.registry.RegisterPropertyType(edm.PropertyType{
		ID: f.namePropID, Type: edm.FQN{Namespace: "test", Name: "name"}, Title: "Name", Datatype: edm.DatatypeString,
	}))
	require.NoError(t, f.registry.RegisterPropertyType(edm.PropertyType{
		ID: f.agePropID, Type: edm.FQN{Namespace: "test", Name: "age"}, Title: "Age", Datatype: edm.DatatypeNumber,
	}))
	require.NoError(t, f.registry.RegisterPropertyType(edm.PropertyType{
		ID: f.sincePropID, Type: edm.FQN{Namespace: "test", Name: "since"}, Title: "Since", Datatype: edm.DatatypeString,
	}))

	require.NoError(t, f.registry.RegisterEntityType(edm.EntityType{
		ID:         f.personTypeID,
		Type:       edm.FQN{Namespace: "test", Name: "person"},
		Properties: []uuid.UUID{f.namePropID, f.agePropID},
		Key:        []uuid.UUID{f.namePropID},
	}))
	require.NoError(t, f.registry.RegisterEntityType(edm.EntityType{
		ID:         f.officeTypeID,
		Type:       edm.FQN{Namespace: "test", Name: "office"},
		Properties: []uuid.UUID{f.namePropID},
	}))
	require.NoError(t, f.registry.RegisterAssociationType(edm.AssociationType{
		EntityType: edm.EntityType{
			ID:         f.worksAtTypeID,
			Type:       edm.FQN{Namespace: "test", Name: "works_at"},
			Properties: []uuid.UUID{f.sincePropID},
		},
		Src: []uuid.UUID{f.personTypeID},
		Dst: []uuid.UUID{f.officeTypeID},
	}))
	require.NoError(t, f.registry.RegisterAssociationType(edm.AssociationType{
		EntityType: edm.EntityType{
			ID:   f.friendOfTypeID,
			Type: edm.FQN{Namespace: "test", Name: "friend_of"},
		},
		Src:           []uuid.UUID{f.personTypeID},
		Dst:           []uuid.UUID{f.personTypeID},
		Bidirectional: true,
	}))

	require.NoError(t, f.registry.RegisterEntitySet(edm.EntitySet{
		ID: f.peopleSetID, Name: "people", EntityTypeID: f.personTypeID,
	}))
	require.NoError(t, f.registry.RegisterEntitySet(edm.EntitySet{
		ID: f.officesSetID, Name: "offices", EntityTypeID: f.officeTypeID,
	}))
	require.NoError(t, f.registry.RegisterEntitySet(edm.EntitySet{
		ID: f.worksAtSetID, Name: "works_at", EntityTypeID: f.worksAtTypeID,
		Flags: []edm.EntitySetFlag{edm.EntitySetFlagAssociation},
	}))
	require.NoError(t, f.registry.RegisterEntitySet(edm.EntitySet{
		ID: f.friendsSetID, Name: "friends", EntityTypeID: f.friendOfTypeID,
		Flags: []edm.EntitySetFlag{edm.EntitySetFlagAssociation},
	}))

	return f
}

func (f *fixture) mutator() *graph.Mutator {
	return graph.NewMutator(graph.MutatorConfig{
		Registry: f.registry,
		Store:    f.store,
		Access:   f.authorizer,
	})
}

func (f *fixture) deleter() *graph.Deleter {
	return graph.NewDeleter(graph.DeleterConfig{
		Registry: f.registry,
		Store:    f.store,
		Access:   f.authorizer,
	})
}

func (f *fixture) reader() *graph.Reader {
	return graph.NewReader(graph.ReaderConfig{
		Registry: f.registry,
		Store:    f.store,
		Access:   f.authorizer,
	})
}

// grant gives the principal the permissions on the acl key.
func (f *fixture) grant(t *testing.T, p authz.Principal, key authz.AclKey, perms ...authz.Permission) {
	t.Helper()
	err := f.acls.UpdateAcl(context.Background(), authz.Acl{
		Key:  key,
		Aces: []authz.Ace{{Principal: p, Permissions: authz.NewPermissionSet(perms...)}},
	}, authz.ActionAdd)
	require.NoError(t, err)
}

// grantSet gives the principal the permissions on the entity set key, on
// every property key the fixture schema declares for that set's type, and
// on the write-time and index-time metadata keys.
func (f *fixture) grantSet(t *testing.T, p authz.Principal, entitySetID uuid.UUID, perms ...authz.Permission) {
	t.Helper()
	f.grant(t, p, authz.NewAclKey(entitySetID), perms...)

	entitySet, err := f.registry.EntitySet(context.Background(), entitySetID)
	require.NoError(t, err)
	entityType, err := f.registry.EntityType(context.Background(), entitySet.EntityTypeID)
	require.NoError(t, err)
	for _, propertyTypeID := range entityType.Properties {
		f.grant(t, p, authz.NewAclKey(entitySetID, propertyTypeID), perms...)
	}
	f.grant(t, p, authz.NewAclKey(entitySetID, edm.LastWritePropertyTypeID), perms...)
	f.grant(t, p, authz.NewAclKey(entitySetID, edm.LastIndexPropertyTypeID), perms...)
}

var alice = authz.Principal{Type: authz.PrincipalUser, ID: "alice"}

// createPerson writes one person with the given name and returns its key id.
func (f *fixture) createPerson(t *testing.T, m *graph.Mutator, name string) uuid.UUID {
	t.Helper()
	ids, err := m.CreateEntities(context.Background(), []authz.Principal{alice}, f.peopleSetID, []graph.EntityData{
		{f.namePropID: {graph.StringValue(name)}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	return ids[0]
}

// createOffice writes one office and returns its key id.
func (f *fixture) createOffice(t *testing.T, m *graph.Mutator, name string) uuid.UUID {
	t.Helper()
	ids, err := m.CreateEntities(context.Background(), []authz.Principal{alice}, f.officesSetID, []graph.EntityData{
		{f.namePropID: {graph.StringValue(name)}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	return ids[0]
}
