package stopflag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileFlag_SetIsSetClear(t *testing.T) {
	f := NewFileFlag(t.TempDir())

	assert.False(t, f.IsSet("abc"))

	require.NoError(t, f.Set("abc"))
	assert.True(t, f.IsSet("abc"))
	assert.False(t, f.IsSet("other"))

	require.NoError(t, f.Clear("abc"))
	assert.False(t, f.IsSet("abc"))
}

func TestFileFlag_ClearIsIdempotent(t *testing.T) {
	f := NewFileFlag(t.TempDir())

	require.NoError(t, f.Clear("never-set"))
	require.NoError(t, f.Set("x"))
	require.NoError(t, f.Clear("x"))
	require.NoError(t, f.Clear("x"))
}

func TestFileFlag_SetCreatesDir(t *testing.T) {
	f := NewFileFlag(t.TempDir() + "/nested/out")
	require.NoError(t, f.Set("abc"))
	assert.True(t, f.IsSet("abc"))
}
