package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"a/b/c", "a/b/c", true},
		{"/a/b/", "a/b", true},
		{"a/./b", "a/b", true},
		{"", "", false},
		{"/", "", false},
		{"a//b", "", false},
		{"a/../b", "", false},
		{"..", "", false},
	}
	for _, c := range cases {
		got, err := Normalize(c.in)
		if c.ok {
			require.NoError(t, err, c.in)
			assert.Equal(t, c.want, got, c.in)
		} else {
			assert.Error(t, err, c.in)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, in := range []string{"a/b/c", "/a/b/", "a/./b/c"} {
		first, err := NormalizeRoot(in)
		require.NoError(t, err)
		second, err := NormalizeRoot(first)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestNormalizeRoot(t *testing.T) {
	got, err := NormalizeRoot("")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	got, err = NormalizeRoot("/")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestValidateRefName(t *testing.T) {
	good := []string{"main", "feature/x", "release-1.0"}
	bad := []string{"", "/main", "main/", "a..b", "a@{b", "a.lock", "a b", "a:b", "a\tb"}
	for _, g := range good {
		assert.NoError(t, ValidateRefName(g), g)
	}
	for _, b := range bad {
		assert.Error(t, ValidateRefName(b), b)
	}
}

func TestValidateHexOID(t *testing.T) {
	assert.NoError(t, ValidateHexOID("0123456789abcdef0123456789abcdef01234567"))
	assert.Error(t, ValidateHexOID("0123456789ABCDEF0123456789abcdef01234567"))
	assert.Error(t, ValidateHexOID("abc"))
}

func TestJoinDirBase(t *testing.T) {
	assert.Equal(t, "a/b", Join("a", "b"))
	assert.Equal(t, "b", Join("", "b"))
	assert.Equal(t, "a", Dir("a/b"))
	assert.Equal(t, "", Dir("a"))
	assert.Equal(t, "b", Base("a/b"))
	assert.Equal(t, "a", Base("a"))
}
