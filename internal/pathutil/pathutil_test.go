package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandHomeExpandsLeadingTilde(t *testing.T) {
	t.Setenv("HOME", "/home/perf")
	assert.Equal(t, filepath.Join("/home/perf", "src/foo"), ExpandHome("~/src/foo"))
	assert.Equal(t, "/home/perf", ExpandHome("~"))
}

func TestExpandHomeLeavesOtherPathsAlone(t *testing.T) {
	t.Setenv("HOME", "/home/perf")
	assert.Equal(t, "/var/tmp/foo", ExpandHome("/var/tmp/foo"))
	assert.Equal(t, "notilde~inside", ExpandHome("notilde~inside"))
}

func TestSplitPartsDecomposesPath(t *testing.T) {
	p := SplitParts("dir1/dir2/file.ext")
	assert.Equal(t, "dir1/dir2", p.Dir)
	assert.Equal(t, "file", p.Base)
	assert.Equal(t, "ext", p.Ext)
}

func TestMakeFnReconstructsSplitPath(t *testing.T) {
	p := SplitParts("dir1/dir2/file.ext")
	assert.Equal(t, "dir1/dir2/file.ext", MakeFn(p.Dir, p.Base, p.Ext))
}

func TestMakeFnOmitsEmptyParts(t *testing.T) {
	assert.Equal(t, "file", MakeFn("", "file", ""))
	assert.Equal(t, "file.ext", MakeFn("", "file", "ext"))
}

func TestIsDirIsFileIsLink(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(fn, []byte("x"), 0o644))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(fn, link))

	assert.True(t, IsDir(dir))
	assert.True(t, IsFile(fn))
	assert.True(t, IsLink(link))
	assert.False(t, IsDir(fn))
	assert.False(t, IsFile(dir))
	assert.False(t, IsLink(fn))
}
