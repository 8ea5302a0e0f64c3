// Package storetest provides shared conformance tests for store.Store
// implementations. Call RunAll from a test function to verify a store
// satisfies the full behavioral contract.
package storetest

import (
	"testing"

	"github.com/dwsmith1983/testgate/internal/store"
)

// RunAll runs the complete store conformance suite as subtests.
func RunAll(t *testing.T, s store.Store) {
	t.Helper()

	t.Run("Lifecycle", func(t *testing.T) { TestLifecycle(t, s) })
	t.Run("RunPutGet", func(t *testing.T) { TestRunPutGet(t, s) })
	t.Run("RunUpdate", func(t *testing.T) { TestRunUpdate(t, s) })
	t.Run("RunList", func(t *testing.T) { TestRunList(t, s) })
	t.Run("RunListKeyIsolation", func(t *testing.T) { TestRunListKeyIsolation(t, s) })
	t.Run("EventAppendAndList", func(t *testing.T) { TestEventAppendAndList(t, s) })
	t.Run("EventTail", func(t *testing.T) { TestEventTail(t, s) })
}
