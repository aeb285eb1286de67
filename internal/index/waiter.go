// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package index

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// WaitForSize polls until the index reports the expected size for the entity
// set, with exponential backoff. Intended for tests and callers that must
// observe index convergence after a write.
func WaitForSize(ctx context.Context, idx *Indexer, entitySetID uuid.UUID, expected int64, timeout time.Duration) error {
	backoff := retry.WithMaxDuration(timeout, retry.NewExponential(5*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		size, ok := idx.Size(entitySetID)
		if !ok || size != expected {
			return retry.RetryableError(oops.
				With("entity_set_id", entitySetID.String()).
				With("expected", expected).
				With("observed", size).
				Errorf("index has not converged"))
		}
		return nil
	})
}
