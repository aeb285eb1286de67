// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package authz_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphvault/graphvault/internal/authz"
	"github.com/graphvault/graphvault/pkg/errutil"
)

func TestMemoryAclStoreUpdateAcl(t *testing.T) {
	ctx := context.Background()

	t.Run("add merges permissions per principal", func(t *testing.T) {
		store := authz.NewMemoryAclStore()
		key := authz.NewAclKey(uuid.New())
		grant(t, store, key, authz.Ace{Principal: user, Permissions: authz.NewPermissionSet(authz.PermissionRead)})
		grant(t, store, key, authz.Ace{Principal: user, Permissions: authz.NewPermissionSet(authz.PermissionWrite)})

		acls, err := store.AclsFor(ctx, []authz.AclKey{key}, nil)
		require.NoError(t, err)
		acl := acls[key.MapKey()]
		require.Len(t, acl.Aces, 1)
		assert.True(t, acl.Aces[0].Permissions.Has(authz.PermissionRead))
		assert.True(t, acl.Aces[0].Permissions.Has(authz.PermissionWrite))
	})

	t.Run("remove subtracts and drops empty aces", func(t *testing.T) {
		store := authz.NewMemoryAclStore()
		key := authz.NewAclKey(uuid.New())
		grant(t, store, key, authz.Ace{Principal: user, Permissions: authz.NewPermissionSet(authz.PermissionRead, authz.PermissionWrite)})

		err := store.UpdateAcl(ctx, authz.Acl{Key: key, Aces: []authz.Ace{
			{Principal: user, Permissions: authz.NewPermissionSet(authz.PermissionWrite)},
		}}, authz.ActionRemove)
		require.NoError(t, err)

		acls, err := store.AclsFor(ctx, []authz.AclKey{key}, nil)
		require.NoError(t, err)
		acl := acls[key.MapKey()]
		require.Len(t, acl.Aces, 1)
		assert.True(t, acl.Aces[0].Permissions.Has(authz.PermissionRead))
		assert.False(t, acl.Aces[0].Permissions.Has(authz.PermissionWrite))

		err = store.UpdateAcl(ctx, authz.Acl{Key: key, Aces: []authz.Ace{
			{Principal: user, Permissions: authz.NewPermissionSet(authz.PermissionRead)},
		}}, authz.ActionRemove)
		require.NoError(t, err)

		acls, err = store.AclsFor(ctx, []authz.AclKey{key}, nil)
		require.NoError(t, err)
		assert.Empty(t, acls[key.MapKey()].Aces)
	})

	t.Run("unknown keys are absent, not errors", func(t *testing.T) {
		store := authz.NewMemoryAclStore()
		acls, err := store.AclsFor(ctx, []authz.AclKey{authz.NewAclKey(uuid.New())}, nil)
		require.NoError(t, err)
		assert.Empty(t, acls)
	})

	t.Run("unknown action rejected", func(t *testing.T) {
		store := authz.NewMemoryAclStore()
		err := store.UpdateAcl(ctx, authz.Acl{Key: authz.NewAclKey(uuid.New())}, authz.Action("REPLACE"))
		errutil.AssertErrorCode(t, err, "INVALID_ACTION")
	})

	t.Run("results are copies, not aliases", func(t *testing.T) {
		store := authz.NewMemoryAclStore()
		key := authz.NewAclKey(uuid.New())
		grant(t, store, key, authz.Ace{Principal: user, Permissions: authz.NewPermissionSet(authz.PermissionRead)})

		acls, err := store.AclsFor(ctx, []authz.AclKey{key}, nil)
		require.NoError(t, err)
		acls[key.MapKey()].Aces[0].Permissions.Add(authz.PermissionOwner)

		fresh, err := store.AclsFor(ctx, []authz.AclKey{key}, nil)
		require.NoError(t, err)
		assert.False(t, fresh[key.MapKey()].Aces[0].Permissions.Has(authz.PermissionOwner))
	})
}
