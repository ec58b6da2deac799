package outcome

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutcomeKinds(t *testing.T) {
	live := Live("hello")
	require.True(t, live.IsLive())
	require.True(t, live.Usable())
	require.NoError(t, live.Err)
	require.Equal(t, "hello", live.Value)

	cause := errors.New("offline")
	fb := Fallback(42, cause)
	require.True(t, fb.IsFallback())
	require.True(t, fb.Usable())
	require.ErrorIs(t, fb.Err, cause)
	require.Equal(t, 42, fb.Value)

	failed := Failed[string](cause)
	require.True(t, failed.IsFailed())
	require.False(t, failed.Usable())
	require.Empty(t, failed.Value)
}
