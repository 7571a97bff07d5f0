// Package testutil provides shared helpers for package tests.
package testutil

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DiscardLogger returns a logger that drops every record. Tests use it to
// silence components that log denials and handler failures.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// AssertJSONEqual compares two JSON documents for structural equality,
// ignoring formatting and key order.
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...interface{}) {
	t.Helper()

	var expectedJSON, actualJSON interface{}
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}
