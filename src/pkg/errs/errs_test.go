package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotFound_Is(t *testing.T) {
	err := NotFound("namespace", "foo")

	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrAlreadyExists)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	require.Equal(t, "namespace", nf.Kind)
	require.Equal(t, "foo", nf.Name)
	require.Equal(t, `namespace "foo" not found`, err.Error())
}

func TestUnsupported_MatchesBothKinds(t *testing.T) {
	err := Unsupported("delete", "sql")

	require.ErrorIs(t, err, ErrForbidden)
	require.ErrorIs(t, err, ErrUnsupportedOperation)
	require.Contains(t, err.Error(), "unsupported operation")
}

func TestForbidden_WithoutCause(t *testing.T) {
	err := Forbidden("deregister", "session")

	require.ErrorIs(t, err, ErrForbidden)
	require.NotErrorIs(t, err, ErrUnsupportedOperation)
}

func TestIllegalArgument(t *testing.T) {
	err := IllegalArgument("relLabels", "expected exactly one")

	require.ErrorIs(t, err, ErrIllegalArgument)
	require.Equal(t, "illegal argument relLabels: expected exactly one", err.Error())
}
