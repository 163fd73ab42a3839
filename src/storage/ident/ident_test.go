package ident

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
)

func TestLong_OrderPreserving(t *testing.T) {
	values := []int64{-1 << 40, -5, -1, 0, 1, 7, 1 << 40}

	for i := 1; i < len(values); i++ {
		require.Negative(t, bytes.Compare(Long(values[i-1]), Long(values[i])))
	}

	for _, v := range values {
		back, err := ToLong(Long(v))
		require.NoError(t, err)
		require.Equal(t, v, back)
	}
}

func TestSerializedID_Stable(t *testing.T) {
	s := SerializedID{}

	first, err := s.ID("graph_node_A", int64(42))
	require.NoError(t, err)
	second, err := s.ID("graph_node_A", int64(42))
	require.NoError(t, err)

	require.Equal(t, first, second)

	// pinned so that a change of the encoding is caught
	require.Equal(t, "0c67726170685f6e6f64655f4101800000000000002a", hex.EncodeToString(first))
}

func TestSerializedID_NoCollisionAcrossTables(t *testing.T) {
	s := SerializedID{}

	// "ab"+"c" and "a"+"bc" would collide without the length prefix
	left, err := s.ID("ab", "c")
	require.NoError(t, err)
	right, err := s.ID("a", "bc")
	require.NoError(t, err)
	require.NotEqual(t, left, right)

	for _, key := range []any{int64(1), "1", []byte("1"), true, 1.5} {
		a, err := s.ID("t1", key)
		require.NoError(t, err)
		b, err := s.ID("t2", key)
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	}
}

func TestSerializedID_OrderPreservingWithinTable(t *testing.T) {
	s := SerializedID{}

	ints := []any{int64(-3), int64(0), int64(12)}
	floats := []any{-2.5, -0.5, 0.0, 3.25}
	strs := []any{"a", "ab", "b"}

	for _, keys := range [][]any{ints, floats, strs} {
		for i := 1; i < len(keys); i++ {
			prev, err := s.ID("t", keys[i-1])
			require.NoError(t, err)
			next, err := s.ID("t", keys[i])
			require.NoError(t, err)
			require.Negative(t, bytes.Compare(prev, next), "%v !< %v", keys[i-1], keys[i])
		}
	}
}

func TestDecodeSerialized_Lossless(t *testing.T) {
	s := SerializedID{}

	for _, key := range []any{int64(-9), "key", []byte{0, 1}, false, -1.25} {
		id, err := s.ID("table", key)
		require.NoError(t, err)

		table, decoded, err := DecodeSerialized(id)
		require.NoError(t, err)
		require.Equal(t, "table", table)
		require.Equal(t, key, decoded)
	}

	_, _, err := DecodeSerialized([]byte{0x40})
	require.ErrorIs(t, err, errs.ErrIllegalArgument)
}

func TestHashedID_Stable(t *testing.T) {
	h := HashedID{}

	first, err := h.ID("graph_node_A", int64(42))
	require.NoError(t, err)
	second, err := h.ID("graph_node_A", int64(42))
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Len(t, first, 16)

	// ids must not change between runs or releases
	require.Equal(t, "5fe650e05be652ffb822bb7ef49fb470", hex.EncodeToString(first))

	other, err := h.ID("graph_node_B", int64(42))
	require.NoError(t, err)
	require.NotEqual(t, first, other)
}

func TestID_NullKeyRejected(t *testing.T) {
	_, err := SerializedID{}.ID("t", nil)
	require.ErrorIs(t, err, errs.ErrIllegalArgument)

	_, err = HashedID{}.ID("t", nil)
	require.ErrorIs(t, err, errs.ErrIllegalArgument)
}

func TestStrategyByName(t *testing.T) {
	s, err := StrategyByName("hashed")
	require.NoError(t, err)
	require.Equal(t, HashedName, s.Name())

	_, err = StrategyByName("random")
	require.ErrorIs(t, err, errs.ErrNotFound)
}
