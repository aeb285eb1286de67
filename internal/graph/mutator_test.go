// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package graph_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphvault/graphvault/internal/authz"
	"github.com/graphvault/graphvault/internal/edm"
	"github.com/graphvault/graphvault/internal/graph"
	"github.com/graphvault/graphvault/pkg/errutil"
)

func TestCreateEntities(t *testing.T) {
	ctx := context.Background()
	principals := []authz.Principal{alice}

	t.Run("returns ids in input order", func(t *testing.T) {
		f := newFixture(t)
		f.grantSet(t, alice, f.peopleSetID, authz.PermissionWrite)
		m := f.mutator()

		ids, err := m.CreateEntities(ctx, principals, f.peopleSetID, []graph.EntityData{
			{f.namePropID: {graph.StringValue("ada")}},
			{f.namePropID: {graph.StringValue("grace")}},
		})
		require.NoError(t, err)
		require.Len(t, ids, 2)
		assert.NotEqual(t, ids[0], ids[1])

		count, err := f.store.CountEntities(ctx, f.peopleSetID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)
	})

	t.Run("identical natural keys converge on one entity", func(t *testing.T) {
		f := newFixture(t)
		f.grantSet(t, alice, f.peopleSetID, authz.PermissionWrite)
		m := f.mutator()

		first := f.createPerson(t, m, "ada")
		second := f.createPerson(t, m, "ada")
		assert.Equal(t, first, second)

		count, err := f.store.CountEntities(ctx, f.peopleSetID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("resubmission unions non-key values", func(t *testing.T) {
		f := newFixture(t)
		f.grantSet(t, alice, f.peopleSetID, authz.PermissionWrite)
		m := f.mutator()

		ids, err := m.CreateEntities(ctx, principals, f.peopleSetID, []graph.EntityData{
			{f.namePropID: {graph.StringValue("ada")}, f.agePropID: {graph.NumberValue(36)}},
		})
		require.NoError(t, err)
		_, err = m.CreateEntities(ctx, principals, f.peopleSetID, []graph.EntityData{
			{f.namePropID: {graph.StringValue("ada")}, f.agePropID: {graph.NumberValue(37)}},
		})
		require.NoError(t, err)

		entity, err := f.store.Entity(ctx, graph.EntityDataKey{EntitySetID: f.peopleSetID, EntityKeyID: ids[0]})
		require.NoError(t, err)
		assert.Len(t, entity.Data[f.agePropID], 2)
	})

	t.Run("missing property write permission denies whole call", func(t *testing.T) {
		f := newFixture(t)
		f.grant(t, alice, authz.NewAclKey(f.peopleSetID), authz.PermissionWrite)
		m := f.mutator()

		_, err := m.CreateEntities(ctx, principals, f.peopleSetID, []graph.EntityData{
			{f.namePropID: {graph.StringValue("ada")}},
		})
		require.ErrorIs(t, err, graph.ErrAuthorizationDenied)
		assert.Contains(t, err.Error(), "unable to write to entity set")
		assert.Contains(t, err.Error(), f.namePropID.String())

		count, err := f.store.CountEntities(ctx, f.peopleSetID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("undeclared property aborts before authorization", func(t *testing.T) {
		f := newFixture(t)
		f.grantSet(t, alice, f.peopleSetID, authz.PermissionWrite)
		m := f.mutator()

		_, err := m.CreateEntities(ctx, principals, f.peopleSetID, []graph.EntityData{
			{f.sincePropID: {graph.StringValue("2020")}},
		})
		errutil.AssertErrorCode(t, err, "SCHEMA_INCONSISTENCY")
	})

	t.Run("datatype mismatch rejected", func(t *testing.T) {
		f := newFixture(t)
		f.grantSet(t, alice, f.peopleSetID, authz.PermissionWrite)
		m := f.mutator()

		_, err := m.CreateEntities(ctx, principals, f.peopleSetID, []graph.EntityData{
			{f.agePropID: {graph.StringValue("not a number")}},
		})
		errutil.AssertErrorCode(t, err, "SCHEMA_INCONSISTENCY")
	})

	t.Run("unknown entity set", func(t *testing.T) {
		f := newFixture(t)
		m := f.mutator()

		_, err := m.CreateEntities(ctx, principals, uuid.New(), nil)
		errutil.AssertErrorCode(t, err, "SCHEMA_INCONSISTENCY")
		assert.ErrorIs(t, err, edm.ErrTypeNotFound)
	})

	t.Run("linking entity set is read-only", func(t *testing.T) {
		f := newFixture(t)
		linkingID := uuid.New()
		require.NoError(t, f.registry.RegisterEntitySet(edm.EntitySet{
			ID: linkingID, Name: "linked-people", EntityTypeID: f.personTypeID,
			Flags:            []edm.EntitySetFlag{edm.EntitySetFlagLinking},
			LinkedEntitySets: []uuid.UUID{f.peopleSetID},
		}))
		m := f.mutator()

		_, err := m.CreateEntities(ctx, principals, linkingID, nil)
		errutil.AssertErrorCode(t, err, "SCHEMA_INCONSISTENCY")
	})
}

func TestUpdateEntities(t *testing.T) {
	ctx := context.Background()
	principals := []authz.Principal{alice}

	t.Run("named properties are replaced, others kept", func(t *testing.T) {
		f := newFixture(t)
		f.grantSet(t, alice, f.peopleSetID, authz.PermissionWrite)
		m := f.mutator()

		ids, err := m.CreateEntities(ctx, principals, f.peopleSetID, []graph.EntityData{
			{f.namePropID: {graph.StringValue("ada")}, f.agePropID: {graph.NumberValue(36), graph.NumberValue(37)}},
		})
		require.NoError(t, err)

		updated, err := m.UpdateEntities(ctx, principals, f.peopleSetID, map[uuid.UUID]graph.EntityData{
			ids[0]: {f.agePropID: {graph.NumberValue(38)}},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, updated)

		entity, err := f.store.Entity(ctx, graph.EntityDataKey{EntitySetID: f.peopleSetID, EntityKeyID: ids[0]})
		require.NoError(t, err)
		require.Len(t, entity.Data[f.agePropID], 1)
		assert.Equal(t, graph.NumberValue(38), entity.Data[f.agePropID][0])
		assert.Len(t, entity.Data[f.namePropID], 1)
	})

	t.Run("unknown entity reported, rest still updated", func(t *testing.T) {
		f := newFixture(t)
		f.grantSet(t, alice, f.peopleSetID, authz.PermissionWrite)
		m := f.mutator()
		id := f.createPerson(t, m, "ada")

		updated, err := m.UpdateEntities(ctx, principals, f.peopleSetID, map[uuid.UUID]graph.EntityData{
			id:         {f.agePropID: {graph.NumberValue(40)}},
			uuid.New(): {f.agePropID: {graph.NumberValue(1)}},
		})
		require.ErrorIs(t, err, graph.ErrNotFound)
		assert.Equal(t, 1, updated)
	})
}

func TestCreateAssociations(t *testing.T) {
	ctx := context.Background()
	principals := []authz.Principal{alice}

	// setup grants write everywhere and creates one person and one office.
	setup := func(t *testing.T) (*fixture, *graph.Mutator, graph.EntityDataKey, graph.EntityDataKey) {
		t.Helper()
		f := newFixture(t)
		for _, setID := range []uuid.UUID{f.peopleSetID, f.officesSetID, f.worksAtSetID, f.friendsSetID} {
			f.grantSet(t, alice, setID, authz.PermissionWrite)
		}
		m := f.mutator()
		person := graph.EntityDataKey{EntitySetID: f.peopleSetID, EntityKeyID: f.createPerson(t, m, "ada")}
		office := graph.EntityDataKey{EntitySetID: f.officesSetID, EntityKeyID: f.createOffice(t, m, "hq")}
		return f, m, person, office
	}

	t.Run("creates edge entity and triple", func(t *testing.T) {
		f, m, person, office := setup(t)

		created, err := m.CreateAssociations(ctx, principals, map[uuid.UUID][]graph.DataEdge{
			f.worksAtSetID: {{Src: person, Dst: office, Data: graph.EntityData{f.sincePropID: {graph.StringValue("2020")}}}},
		})
		require.NoError(t, err)
		require.Len(t, created[f.worksAtSetID], 1)

		edges, err := f.store.IncidentEdges(ctx, []graph.EntityDataKey{person})
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, office, edges[0].Dst)
	})

	t.Run("disallowed endpoint types rejected until declared", func(t *testing.T) {
		f, m, person, office := setup(t)

		// works_at declares person -> office; office -> person is not allowed.
		_, err := m.CreateAssociations(ctx, principals, map[uuid.UUID][]graph.DataEdge{
			f.worksAtSetID: {{Src: office, Dst: person}},
		})
		require.ErrorIs(t, err, graph.ErrTypeMismatch)
		assert.Contains(t, err.Error(), "differ from allowed entity types")

		require.NoError(t, f.registry.AddSrcEntityType(f.worksAtTypeID, f.officeTypeID))
		require.NoError(t, f.registry.AddDstEntityType(f.worksAtTypeID, f.personTypeID))

		_, err = m.CreateAssociations(ctx, principals, map[uuid.UUID][]graph.DataEdge{
			f.worksAtSetID: {{Src: office, Dst: person}},
		})
		require.NoError(t, err)
	})

	t.Run("bidirectional type accepts either orientation", func(t *testing.T) {
		f, m, person, _ := setup(t)
		other := graph.EntityDataKey{EntitySetID: f.peopleSetID, EntityKeyID: f.createPerson(t, m, "grace")}

		_, err := m.CreateAssociations(ctx, principals, map[uuid.UUID][]graph.DataEdge{
			f.friendsSetID: {{Src: person, Dst: other}},
		})
		require.NoError(t, err)
		_, err = m.CreateAssociations(ctx, principals, map[uuid.UUID][]graph.DataEdge{
			f.friendsSetID: {{Src: other, Dst: person}},
		})
		require.NoError(t, err)
	})

	t.Run("missing endpoint write denies", func(t *testing.T) {
		f, m, person, office := setup(t)

		bob := authz.Principal{Type: authz.PrincipalUser, ID: "bob"}
		f.grantSet(t, bob, f.worksAtSetID, authz.PermissionWrite)
		f.grant(t, bob, authz.NewAclKey(f.peopleSetID), authz.PermissionWrite)

		_, err := m.CreateAssociations(ctx, []authz.Principal{bob}, map[uuid.UUID][]graph.DataEdge{
			f.worksAtSetID: {{Src: person, Dst: office}},
		})
		require.ErrorIs(t, err, graph.ErrAuthorizationDenied)
		assert.Contains(t, err.Error(), "unable to create associations")
		assert.Contains(t, err.Error(), f.officesSetID.String())
	})

	t.Run("soft deleted endpoint reads as not found", func(t *testing.T) {
		f, m, person, office := setup(t)

		_, err := f.store.DeleteEntities(ctx, f.officesSetID, []uuid.UUID{office.EntityKeyID}, graph.DeleteSoft)
		require.NoError(t, err)

		_, err = m.CreateAssociations(ctx, principals, map[uuid.UUID][]graph.DataEdge{
			f.worksAtSetID: {{Src: person, Dst: office}},
		})
		require.ErrorIs(t, err, graph.ErrNotFound)
	})
}

func TestCreateEdges(t *testing.T) {
	ctx := context.Background()
	principals := []authz.Principal{alice}

	t.Run("records triples for existing edge entities", func(t *testing.T) {
		f := newFixture(t)
		for _, setID := range []uuid.UUID{f.peopleSetID, f.officesSetID, f.worksAtSetID} {
			f.grantSet(t, alice, setID, authz.PermissionWrite)
		}
		m := f.mutator()
		person := graph.EntityDataKey{EntitySetID: f.peopleSetID, EntityKeyID: f.createPerson(t, m, "ada")}
		office := graph.EntityDataKey{EntitySetID: f.officesSetID, EntityKeyID: f.createOffice(t, m, "hq")}

		edgeEntity := graph.EntityDataKey{EntitySetID: f.worksAtSetID, EntityKeyID: uuid.New()}
		require.NoError(t, f.store.UpsertEntity(ctx, edgeEntity, graph.EntityData{}, true))

		err := m.CreateEdges(ctx, principals, []graph.DataEdgeKey{{Src: person, Dst: office, Edge: edgeEntity}})
		require.NoError(t, err)

		edges, err := f.store.EdgesOf(ctx, []graph.EntityDataKey{edgeEntity})
		require.NoError(t, err)
		assert.Len(t, edges, 1)
	})

	t.Run("missing edge entity rejected", func(t *testing.T) {
		f := newFixture(t)
		for _, setID := range []uuid.UUID{f.peopleSetID, f.officesSetID, f.worksAtSetID} {
			f.grantSet(t, alice, setID, authz.PermissionWrite)
		}
		m := f.mutator()
		person := graph.EntityDataKey{EntitySetID: f.peopleSetID, EntityKeyID: f.createPerson(t, m, "ada")}
		office := graph.EntityDataKey{EntitySetID: f.officesSetID, EntityKeyID: f.createOffice(t, m, "hq")}

		err := m.CreateEdges(ctx, principals, []graph.DataEdgeKey{{
			Src: person, Dst: office,
			Edge: graph.EntityDataKey{EntitySetID: f.worksAtSetID, EntityKeyID: uuid.New()},
		}})
		require.ErrorIs(t, err, graph.ErrNotFound)
	})
}
