// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

// Package errutil provides logging and test helpers for structured errors.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// ErrorCode extracts the oops error code, or "" for plain errors.
func ErrorCode(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok {
			return code
		}
	}
	return ""
}

// LogError logs an error with its structured context. For oops errors the
// code and context map are attached as attributes; plain errors log the
// error string only.
func LogError(logger *slog.Logger, msg string, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.Error(msg, "error", err)
		return
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	logger.Error(msg, attrs...)
}
