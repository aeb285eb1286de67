// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

//go:build integration

package integration

import (
	"context"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/graphvault/graphvault/internal/graph"
)

var _ = Describe("GraphStore", func() {
	var (
		ctx         context.Context
		entitySetID uuid.UUID
		namePropID  uuid.UUID
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupTables(ctx, env.pool)
		entitySetID = uuid.New()
		namePropID = uuid.New()
	})

	newKey := func() graph.EntityDataKey {
		return graph.EntityDataKey{EntitySetID: entitySetID, EntityKeyID: uuid.New()}
	}

	Describe("UpsertEntity", func() {
		It("persists data and last write", func() {
			key := newKey()
			data := graph.EntityData{namePropID: {graph.StringValue("ada")}}

			Expect(env.Store.UpsertEntity(ctx, key, data, true)).To(Succeed())

			got, err := env.Store.Entity(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Key).To(Equal(key))
			Expect(got.Data[namePropID]).To(ConsistOf(graph.StringValue("ada")))
			Expect(got.LastWrite).NotTo(BeZero())
		})

		It("merges values into the stored row", func() {
			key := newKey()
			Expect(env.Store.UpsertEntity(ctx, key,
				graph.EntityData{namePropID: {graph.StringValue("ada")}}, true)).To(Succeed())
			Expect(env.Store.UpsertEntity(ctx, key,
				graph.EntityData{namePropID: {graph.StringValue("countess")}}, true)).To(Succeed())

			got, err := env.Store.Entity(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Data[namePropID]).To(ConsistOf(
				graph.StringValue("ada"), graph.StringValue("countess")))
		})

		It("replaces named properties when not merging", func() {
			key := newKey()
			Expect(env.Store.UpsertEntity(ctx, key,
				graph.EntityData{namePropID: {graph.StringValue("ada")}}, true)).To(Succeed())
			Expect(env.Store.UpsertEntity(ctx, key,
				graph.EntityData{namePropID: {graph.StringValue("countess")}}, false)).To(Succeed())

			got, err := env.Store.Entity(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Data[namePropID]).To(ConsistOf(graph.StringValue("countess")))
		})

		It("revives a soft deleted row with fresh data", func() {
			key := newKey()
			Expect(env.Store.UpsertEntity(ctx, key,
				graph.EntityData{namePropID: {graph.StringValue("ada")}}, true)).To(Succeed())

			_, err := env.Store.DeleteEntities(ctx, entitySetID,
				[]uuid.UUID{key.EntityKeyID}, graph.DeleteSoft)
			Expect(err).NotTo(HaveOccurred())

			Expect(env.Store.UpsertEntity(ctx, key,
				graph.EntityData{namePropID: {graph.StringValue("babbage")}}, true)).To(Succeed())

			got, err := env.Store.Entity(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Data[namePropID]).To(ConsistOf(graph.StringValue("babbage")))
		})
	})

	Describe("Entity", func() {
		It("returns not found for an absent key", func() {
			_, err := env.Store.Entity(ctx, newKey())
			Expect(err).To(MatchError(graph.ErrNotFound))
		})

		It("hides soft deleted rows", func() {
			key := newKey()
			Expect(env.Store.UpsertEntity(ctx, key, graph.EntityData{}, true)).To(Succeed())

			_, err := env.Store.DeleteEntities(ctx, entitySetID,
				[]uuid.UUID{key.EntityKeyID}, graph.DeleteSoft)
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Store.Entity(ctx, key)
			Expect(err).To(MatchError(graph.ErrNotFound))
		})
	})

	Describe("ListEntities and CountEntities", func() {
		It("lists live rows and honors the key filter", func() {
			first := newKey()
			second := newKey()
			Expect(env.Store.UpsertEntity(ctx, first, graph.EntityData{}, true)).To(Succeed())
			Expect(env.Store.UpsertEntity(ctx, second, graph.EntityData{}, true)).To(Succeed())

			all, err := env.Store.ListEntities(ctx, entitySetID, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))

			one, err := env.Store.ListEntities(ctx, entitySetID, []uuid.UUID{first.EntityKeyID})
			Expect(err).NotTo(HaveOccurred())
			Expect(one).To(HaveLen(1))
			Expect(one[0].Key).To(Equal(first))

			count, err := env.Store.CountEntities(ctx, entitySetID)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeEquivalentTo(2))
		})

		It("excludes soft deleted rows from the count", func() {
			key := newKey()
			Expect(env.Store.UpsertEntity(ctx, key, graph.EntityData{}, true)).To(Succeed())

			_, err := env.Store.DeleteEntities(ctx, entitySetID,
				[]uuid.UUID{key.EntityKeyID}, graph.DeleteSoft)
			Expect(err).NotTo(HaveOccurred())

			count, err := env.Store.CountEntities(ctx, entitySetID)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})
	})

	Describe("DeleteEntities", func() {
		It("counts each row only once across repeated deletes", func() {
			key := newKey()
			Expect(env.Store.UpsertEntity(ctx, key, graph.EntityData{}, true)).To(Succeed())

			deleted, err := env.Store.DeleteEntities(ctx, entitySetID,
				[]uuid.UUID{key.EntityKeyID}, graph.DeleteSoft)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(Equal(1))

			deleted, err = env.Store.DeleteEntities(ctx, entitySetID,
				[]uuid.UUID{key.EntityKeyID}, graph.DeleteSoft)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeZero())
		})

		It("hard delete after soft delete counts zero", func() {
			key := newKey()
			Expect(env.Store.UpsertEntity(ctx, key, graph.EntityData{}, true)).To(Succeed())

			_, err := env.Store.DeleteEntities(ctx, entitySetID,
				[]uuid.UUID{key.EntityKeyID}, graph.DeleteSoft)
			Expect(err).NotTo(HaveOccurred())

			deleted, err := env.Store.DeleteEntities(ctx, entitySetID,
				[]uuid.UUID{key.EntityKeyID}, graph.DeleteHard)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeZero())
		})

		It("delete all clears the whole set", func() {
			Expect(env.Store.UpsertEntity(ctx, newKey(), graph.EntityData{}, true)).To(Succeed())
			Expect(env.Store.UpsertEntity(ctx, newKey(), graph.EntityData{}, true)).To(Succeed())

			deleted, err := env.Store.DeleteAllEntities(ctx, entitySetID, graph.DeleteHard)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(Equal(2))

			count, err := env.Store.CountEntities(ctx, entitySetID)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})
	})

	Describe("ClearProperties", func() {
		It("removes named values and keeps the rest", func() {
			agePropID := uuid.New()
			key := newKey()
			Expect(env.Store.UpsertEntity(ctx, key, graph.EntityData{
				namePropID: {graph.StringValue("ada")},
				agePropID:  {graph.NumberValue(36)},
			}, true)).To(Succeed())

			cleared, err := env.Store.ClearProperties(ctx, key,
				[]uuid.UUID{agePropID}, graph.DeleteSoft)
			Expect(err).NotTo(HaveOccurred())
			Expect(cleared).To(Equal(1))

			got, err := env.Store.Entity(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Data).NotTo(HaveKey(agePropID))
			Expect(got.Data[namePropID]).To(ConsistOf(graph.StringValue("ada")))
		})
	})

	Describe("Edges", func() {
		var edge graph.DataEdgeKey

		BeforeEach(func() {
			edge = graph.DataEdgeKey{
				Src:  newKey(),
				Dst:  graph.EntityDataKey{EntitySetID: uuid.New(), EntityKeyID: uuid.New()},
				Edge: graph.EntityDataKey{EntitySetID: uuid.New(), EntityKeyID: uuid.New()},
			}
			Expect(env.Store.PutEdges(ctx, []graph.DataEdgeKey{edge})).To(Succeed())
		})

		It("finds edges incident to either endpoint", func() {
			fromSrc, err := env.Store.IncidentEdges(ctx, []graph.EntityDataKey{edge.Src})
			Expect(err).NotTo(HaveOccurred())
			Expect(fromSrc).To(ConsistOf(edge))

			fromDst, err := env.Store.IncidentEdges(ctx, []graph.EntityDataKey{edge.Dst})
			Expect(err).NotTo(HaveOccurred())
			Expect(fromDst).To(ConsistOf(edge))
		})

		It("resolves triples by edge entity", func() {
			found, err := env.Store.EdgesOf(ctx, []graph.EntityDataKey{edge.Edge})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(ConsistOf(edge))
		})

		It("re-put of the same triple is idempotent", func() {
			Expect(env.Store.PutEdges(ctx, []graph.DataEdgeKey{edge})).To(Succeed())

			found, err := env.Store.IncidentEdges(ctx, []graph.EntityDataKey{edge.Src})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
		})

		It("soft deleted edges disappear from reads", func() {
			deleted, err := env.Store.DeleteEdges(ctx, []graph.DataEdgeKey{edge}, graph.DeleteSoft)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(Equal(1))

			found, err := env.Store.IncidentEdges(ctx, []graph.EntityDataKey{edge.Src})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeEmpty())
		})
	})
})
