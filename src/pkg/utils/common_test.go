package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMust(t *testing.T) {
	require.Equal(t, 5, Must(5, nil))
	require.Panics(t, func() {
		Must(0, errors.New("boom"))
	})
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"c": 1, "a": 2, "b": 3}

	require.Equal(t, []string{"a", "b", "c"}, SortedKeys(m))
	require.Empty(t, SortedKeys(map[string]int{}))
}
