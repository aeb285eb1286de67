// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

//go:build integration

package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/graphvault/graphvault/internal/authz"
)

var _ = Describe("PostgresAclStore", func() {
	var (
		ctx   context.Context
		key   authz.AclKey
		alice authz.Principal
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupTables(ctx, env.pool)
		key = authz.NewAclKey(uuid.New(), uuid.New())
		alice = authz.Principal{Type: authz.PrincipalUser, ID: "alice"}
	})

	aclOf := func(k authz.AclKey, aces ...authz.Ace) authz.Acl {
		return authz.Acl{Key: k, Aces: aces}
	}

	Describe("UpdateAcl", func() {
		It("add merges permissions into the principal's row", func() {
			Expect(env.Acls.UpdateAcl(ctx, aclOf(key, authz.Ace{
				Principal:   alice,
				Permissions: authz.NewPermissionSet(authz.PermissionRead),
			}), authz.ActionAdd)).To(Succeed())
			Expect(env.Acls.UpdateAcl(ctx, aclOf(key, authz.Ace{
				Principal:   alice,
				Permissions: authz.NewPermissionSet(authz.PermissionWrite),
			}), authz.ActionAdd)).To(Succeed())

			acls, err := env.Acls.AclsFor(ctx, []authz.AclKey{key}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(acls).To(HaveKey(key.MapKey()))

			acl := acls[key.MapKey()]
			Expect(acl.Aces).To(HaveLen(1))
			Expect(acl.Aces[0].Permissions.Has(authz.PermissionRead)).To(BeTrue())
			Expect(acl.Aces[0].Permissions.Has(authz.PermissionWrite)).To(BeTrue())
		})

		It("remove subtracts and drops the row when empty", func() {
			Expect(env.Acls.UpdateAcl(ctx, aclOf(key, authz.Ace{
				Principal:   alice,
				Permissions: authz.NewPermissionSet(authz.PermissionRead),
			}), authz.ActionAdd)).To(Succeed())
			Expect(env.Acls.UpdateAcl(ctx, aclOf(key, authz.Ace{
				Principal:   alice,
				Permissions: authz.NewPermissionSet(authz.PermissionRead),
			}), authz.ActionRemove)).To(Succeed())

			acls, err := env.Acls.AclsFor(ctx, []authz.AclKey{key}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(acls).NotTo(HaveKey(key.MapKey()))
		})

		It("persists expiry timestamps", func() {
			expires := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
			Expect(env.Acls.UpdateAcl(ctx, aclOf(key, authz.Ace{
				Principal:   alice,
				Permissions: authz.NewPermissionSet(authz.PermissionRead),
				ExpiresAt:   expires,
			}), authz.ActionAdd)).To(Succeed())

			acls, err := env.Acls.AclsFor(ctx, []authz.AclKey{key}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(acls[key.MapKey()].Aces[0].ExpiresAt).To(BeTemporally("==", expires))
		})
	})

	Describe("AclsFor", func() {
		It("fetches multiple keys in one call, one acl per key", func() {
			other := authz.NewAclKey(uuid.New())
			for _, k := range []authz.AclKey{key, other} {
				Expect(env.Acls.UpdateAcl(ctx, aclOf(k, authz.Ace{
					Principal:   alice,
					Permissions: authz.NewPermissionSet(authz.PermissionOwner),
				}), authz.ActionAdd)).To(Succeed())
			}

			acls, err := env.Acls.AclsFor(ctx, []authz.AclKey{key, other}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(acls).To(HaveLen(2))
			Expect(acls[other.MapKey()].Key).To(Equal(other))
		})

		It("groups multiple principals under one acl", func() {
			bob := authz.Principal{Type: authz.PrincipalRole, ID: "admin"}
			for _, p := range []authz.Principal{alice, bob} {
				Expect(env.Acls.UpdateAcl(ctx, aclOf(key, authz.Ace{
					Principal:   p,
					Permissions: authz.NewPermissionSet(authz.PermissionRead),
				}), authz.ActionAdd)).To(Succeed())
			}

			acls, err := env.Acls.AclsFor(ctx, []authz.AclKey{key}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(acls[key.MapKey()].Aces).To(HaveLen(2))
		})

		It("returns an empty map for no keys", func() {
			acls, err := env.Acls.AclsFor(ctx, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(acls).To(BeEmpty())
		})
	})
})
