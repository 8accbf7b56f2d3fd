package randmac

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_HasExpectedPrefixAndLength(t *testing.T) {
	mac, err := New()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(mac, Prefix+":"))
	assert.Len(t, strings.Split(mac, ":"), 6)
}

func TestNew_GeneratesDistinctValues(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTopUp_PreservesExistingAndFillsShortfall(t *testing.T) {
	existing := []string{"52:54:00:aa:bb:cc"}
	out, err := TopUp(existing, 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, existing[0], out[0])
	assert.True(t, strings.HasPrefix(out[1], Prefix+":"))
	assert.True(t, strings.HasPrefix(out[2], Prefix+":"))
	assert.NotEqual(t, out[1], out[2])
}

func TestTopUp_TruncatesWhenExistingExceedsN(t *testing.T) {
	existing := []string{"a", "b", "c"}
	out, err := TopUp(existing, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out)
}

func TestTopUp_NoShortfallReturnsExistingUnchanged(t *testing.T) {
	existing := []string{"a", "b"}
	out, err := TopUp(existing, 2)
	require.NoError(t, err)
	assert.Equal(t, existing, out)
}
