package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSortedKeys(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
	require.Empty(t, SortedKeys(map[int]bool{}))
}

func TestFindIndex(t *testing.T) {
	require.Equal(t, 1, FindIndex([]string{"x", "y"}, "y"))
	require.Equal(t, -1, FindIndex([]string{"x", "y"}, "z"))
}

func TestDedupe(t *testing.T) {
	require.Equal(t, []string{"t1", "t2"}, Dedupe([]string{"t1", "t2", "t1"}))
}
