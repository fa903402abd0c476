package lspuri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToURIRoundTripsForNormalPaths(t *testing.T) {
	cases := []string{
		"/home/user/project/main.go",
		"/a",
	}
	for _, p := range cases {
		u, err := ToURI(p, Normal)
		require.NoError(t, err)
		assert.Contains(t, u, "file://")

		back, err := FromURI(u, Normal)
		require.NoError(t, err)
		assert.Equal(t, p, back, "round trip must preserve the original path")
	}
}

func TestToURIRejectsRelativePath(t *testing.T) {
	_, err := ToURI("relative/path.go", Normal)
	assert.Error(t, err)
}

func TestToURIRejectsBackslashPath(t *testing.T) {
	_, err := ToURI(`/C:\Users\dev`, Normal)
	assert.Error(t, err)
}

func TestFromURIRejectsPercentEncoding(t *testing.T) {
	_, err := FromURI("file:///a%20b", Normal)
	assert.Error(t, err)
}

func TestFromURIRejectsQuery(t *testing.T) {
	_, err := FromURI("file:///a?x=1", Normal)
	assert.Error(t, err)
}

func TestFromURIRejectsUserInfo(t *testing.T) {
	_, err := FromURI("file://user@host/a", Normal)
	assert.Error(t, err)
}

func TestFromURIRejectsNonFileScheme(t *testing.T) {
	_, err := FromURI("http:///a", Normal)
	assert.Error(t, err)
}

func TestWindowsDriveSlashIsDropped(t *testing.T) {
	// spec.md §6: "A Windows-style path /C:/foo/bar has its leading /
	// dropped on conversion to a native path."
	back, err := FromURI("file:///C:/Users/dev/project/main.go", Normal)
	require.NoError(t, err)
	assert.Equal(t, "C:/Users/dev/project/main.go", back)
}

func TestWindowsDrivePathRoundTrips(t *testing.T) {
	p := "C:/Users/dev/project/main.go"
	u, err := ToURI(p, Normal)
	require.NoError(t, err)
	assert.Equal(t, "file:///C:/Users/dev/project/main.go", u)

	back, err := FromURI(u, Normal)
	require.NoError(t, err)
	assert.Equal(t, p, back, "round trip must preserve the native, leading-slash-free form")
}

func TestCygwinRoundTrip(t *testing.T) {
	p := "/cygdrive/c/Users/dev/project/main.py"
	u, err := ToURI(p, Cygwin)
	require.NoError(t, err)

	back, err := FromURI(u, Cygwin)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestIsValidLSPPath(t *testing.T) {
	assert.True(t, IsValidLSPPath("/a/b/c"))
	assert.True(t, IsValidLSPPath("C:/Users/dev"))
	assert.False(t, IsValidLSPPath("a/b/c"))
	assert.False(t, IsValidLSPPath(`/a\b\c`))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "/a/b/c", Normalize(`/a/./b/../b/c`))
	assert.Equal(t, "/a/b/c", Normalize(`\a\b\c`))
}
