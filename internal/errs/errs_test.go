package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, KindDatabase, "ignored"))
}

func TestError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Database(cause, "write composite")

	assert.Equal(t, "write composite: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindDatabase, KindOf(err))
}

func TestError_IsMatchesKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("session: %w", Cancelled(context.Canceled))

	assert.True(t, errors.Is(err, New(KindCancelled, "")))
	assert.False(t, errors.Is(err, New(KindDatabase, "")))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, IsKind(err, KindCancelled))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestDetailedString(t *testing.T) {
	err := Inputf("class %q has no name", "").WithContext("index", 3)

	s := err.DetailedString()
	require.Contains(t, s, "[INPUT]")
	assert.Contains(t, s, "index: 3")
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "PRECONDITION", KindPrecondition.String())
	assert.Equal(t, "UNKNOWN", Kind(99).String())
}
