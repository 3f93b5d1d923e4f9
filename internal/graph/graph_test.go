package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// depsFromMap adapts a plain adjacency map to a DepsFunc.
func depsFromMap(m map[string][]string) DepsFunc {
	return func(name string) ([]string, bool) {
		deps, ok := m[name]
		return deps, ok
	}
}

func TestClosure(t *testing.T) {
	t.Parallel()

	t.Run("single root with no deps", func(t *testing.T) {
		closure, err := Closure([]string{"a"}, depsFromMap(map[string][]string{
			"a": nil,
		}))
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, closure)
	})

	t.Run("closure includes transitive deps and roots", func(t *testing.T) {
		closure, err := Closure([]string{"c"}, depsFromMap(map[string][]string{
			"a": nil,
			"b": {"a"},
			"c": {"b"},
			"d": {"c"}, // not reachable from the root
		}))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, closure)
	})

	t.Run("shared dep appears once", func(t *testing.T) {
		closure, err := Closure([]string{"b", "c"}, depsFromMap(map[string][]string{
			"a": nil,
			"b": {"a"},
			"c": {"a"},
		}))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, closure)
	})

	t.Run("repeated roots are idempotent", func(t *testing.T) {
		closure, err := Closure([]string{"b", "b", "a"}, depsFromMap(map[string][]string{
			"a": nil,
			"b": {"a"},
		}))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, closure)
	})
}

func TestClosureCycles(t *testing.T) {
	t.Parallel()

	t.Run("two node cycle", func(t *testing.T) {
		_, err := Closure([]string{"a"}, depsFromMap(map[string][]string{
			"a": {"b"},
			"b": {"a"},
		}))
		var cycleErr *CycleError
		require.ErrorAs(t, err, &cycleErr)
		assert.Equal(t, []string{"a", "b", "a"}, cycleErr.Path)
		assert.Contains(t, err.Error(), "a -> b -> a")
	})

	t.Run("self cycle", func(t *testing.T) {
		_, err := Closure([]string{"a"}, depsFromMap(map[string][]string{
			"a": {"a"},
		}))
		var cycleErr *CycleError
		require.ErrorAs(t, err, &cycleErr)
		assert.Equal(t, []string{"a", "a"}, cycleErr.Path)
	})

	t.Run("cycle below an acyclic prefix", func(t *testing.T) {
		_, err := Closure([]string{"top"}, depsFromMap(map[string][]string{
			"top": {"mid"},
			"mid": {"x"},
			"x":   {"y"},
			"y":   {"x"},
		}))
		var cycleErr *CycleError
		require.ErrorAs(t, err, &cycleErr)
		// The reported path covers only the cycle, not the walk into it.
		assert.Equal(t, []string{"x", "y", "x"}, cycleErr.Path)
	})

	t.Run("cycle takes precedence over unknown names", func(t *testing.T) {
		_, err := Closure([]string{"a"}, depsFromMap(map[string][]string{
			"a": {"missing", "b"},
			"b": {"a"},
		}))
		var cycleErr *CycleError
		assert.ErrorAs(t, err, &cycleErr)
	})
}

func TestClosureUnknownNames(t *testing.T) {
	t.Parallel()

	t.Run("unknown root", func(t *testing.T) {
		_, err := Closure([]string{"nope"}, depsFromMap(nil))
		var unknownErr *UnknownDependencyError
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, []string{"nope"}, unknownErr.Missing)
	})

	t.Run("all unknown names collected and sorted", func(t *testing.T) {
		_, err := Closure([]string{"a"}, depsFromMap(map[string][]string{
			"a": {"zeta", "alpha", "b"},
			"b": {"zeta"},
		}))
		var unknownErr *UnknownDependencyError
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, []string{"alpha", "zeta"}, unknownErr.Missing)
		assert.Contains(t, err.Error(), "unknown modules: alpha, zeta")
	})
}
