// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package authz

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// querier is the subset of pgxpool.Pool the ACL store needs. pgxmock's
// PgxPoolIface satisfies it, so unit tests run without a database.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresAclStore reads ACLs from PostgreSQL. The acls table is written by
// the external grants component; this store only observes it.
type PostgresAclStore struct {
	pool querier
}

// NewPostgresAclStore creates a PostgreSQL-backed ACL store.
func NewPostgresAclStore(pool querier) *PostgresAclStore {
	return &PostgresAclStore{pool: pool}
}

// AclsFor fetches the Acls for every requested key in a single query.
// Expired Aces are filtered by the engine, not here, so the store stays a
// plain read of what the grants component wrote.
func (s *PostgresAclStore) AclsFor(ctx context.Context, keys []AclKey, _ []Principal) (map[string]Acl, error) {
	if len(keys) == 0 {
		return map[string]Acl{}, nil
	}

	mapKeys := make([]string, len(keys))
	byMapKey := make(map[string]AclKey, len(keys))
	for i, key := range keys {
		mapKeys[i] = key.MapKey()
		byMapKey[key.MapKey()] = key
	}

	rows, err := s.pool.Query(ctx, `
		SELECT acl_key, principal_type, principal_id, permissions, expires_at
		FROM acls WHERE acl_key = ANY($1)
	`, mapKeys)
	if err != nil {
		return nil, oops.Code("ACL_QUERY_FAILED").With("keys", len(keys)).Wrap(err)
	}
	defer rows.Close()

	result := make(map[string]Acl)
	for rows.Next() {
		var (
			mapKey        string
			principalType string
			principalID   string
			permsJSON     []byte
			expiresAt     *time.Time
		)
		if err := rows.Scan(&mapKey, &principalType, &principalID, &permsJSON, &expiresAt); err != nil {
			return nil, oops.Code("ACL_SCAN_FAILED").Wrap(err)
		}

		var permNames []string
		if err := json.Unmarshal(permsJSON, &permNames); err != nil {
			return nil, oops.Code("ACL_PARSE_FAILED").With("acl_key", mapKey).Wrap(err)
		}
		perms := NewPermissionSet()
		for _, name := range permNames {
			perms.Add(Permission(name))
		}

		ace := Ace{
			Principal:   Principal{Type: PrincipalType(principalType), ID: principalID},
			Permissions: perms,
		}
		if expiresAt != nil {
			ace.ExpiresAt = *expiresAt
		}

		acl, ok := result[mapKey]
		if !ok {
			acl = Acl{Key: byMapKey[mapKey]}
		}
		acl.Aces = append(acl.Aces, ace)
		result[mapKey] = acl
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACL_ITERATE_FAILED").Wrap(err)
	}

	return result, nil
}

// UpdateAcl applies a grants mutation. ADD merges each Ace's permissions
// into the principal's row; REMOVE subtracts them, deleting the row when no
// permissions remain. Last writer wins per (key, principal).
func (s *PostgresAclStore) UpdateAcl(ctx context.Context, acl Acl, action Action) error {
	for _, ace := range acl.Aces {
		if err := s.updateAce(ctx, action, acl.Key, ace); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresAclStore) updateAce(ctx context.Context, action Action, key AclKey, ace Ace) error {
	mapKey := key.MapKey()

	perms := NewPermissionSet()
	var existingJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT permissions FROM acls
		WHERE acl_key = $1 AND principal_type = $2 AND principal_id = $3
	`, mapKey, string(ace.Principal.Type), ace.Principal.ID).Scan(&existingJSON)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return oops.Code("ACL_QUERY_FAILED").With("acl_key", mapKey).Wrap(err)
	default:
		var names []string
		if err := json.Unmarshal(existingJSON, &names); err != nil {
			return oops.Code("ACL_PARSE_FAILED").With("acl_key", mapKey).Wrap(err)
		}
		for _, name := range names {
			perms.Add(Permission(name))
		}
	}

	switch action {
	case ActionAdd:
		for p := range ace.Permissions {
			perms.Add(p)
		}
	case ActionRemove:
		for p := range ace.Permissions {
			perms.Remove(p)
		}
	default:
		return oops.Code("ACL_INVALID_ACTION").Errorf("unknown acl action %q", action)
	}

	if len(perms) == 0 {
		_, err := s.pool.Exec(ctx, `
			DELETE FROM acls
			WHERE acl_key = $1 AND principal_type = $2 AND principal_id = $3
		`, mapKey, string(ace.Principal.Type), ace.Principal.ID)
		if err != nil {
			return oops.Code("ACL_WRITE_FAILED").With("acl_key", mapKey).Wrap(err)
		}
		return nil
	}

	names := make([]string, 0, len(perms))
	for p := range perms {
		names = append(names, string(p))
	}
	permsJSON, err := json.Marshal(names)
	if err != nil {
		return oops.Code("ACL_WRITE_FAILED").With("acl_key", mapKey).Wrap(err)
	}

	var expiresAt *time.Time
	if !ace.ExpiresAt.IsZero() {
		expiresAt = &ace.ExpiresAt
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO acls (acl_key, principal_type, principal_id, permissions, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (acl_key, principal_type, principal_id)
		DO UPDATE SET permissions = EXCLUDED.permissions, expires_at = EXCLUDED.expires_at
	`, mapKey, string(ace.Principal.Type), ace.Principal.ID, permsJSON, expiresAt)
	if err != nil {
		return oops.Code("ACL_WRITE_FAILED").With("acl_key", mapKey).Wrap(err)
	}
	return nil
}

// Compile-time interface checks.
var (
	_ AclStore  = (*PostgresAclStore)(nil)
	_ AclWriter = (*PostgresAclStore)(nil)
)
