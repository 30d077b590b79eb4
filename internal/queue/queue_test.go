package queue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndList(t *testing.T) {
	q := New(filepath.Join(t.TempDir(), "pipelines", "queue.txt"))

	added, err := q.Append("/archive/SPINS/pipelines/SPINS_CMH_0001_01.sh")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = q.Append("/archive/SPINS/pipelines/SPINS_CMH_0002_01.sh")
	require.NoError(t, err)
	assert.True(t, added)

	// Duplicate append is a no-op
	added, err = q.Append("/archive/SPINS/pipelines/SPINS_CMH_0001_01.sh")
	require.NoError(t, err)
	assert.False(t, added)

	paths, err := q.List()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/archive/SPINS/pipelines/SPINS_CMH_0001_01.sh",
		"/archive/SPINS/pipelines/SPINS_CMH_0002_01.sh",
	}, paths)
}

func TestListMissingFile(t *testing.T) {
	q := New(filepath.Join(t.TempDir(), "queue.txt"))

	paths, err := q.List()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestListSkipsBlanksAndComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.txt")
	require.NoError(t, os.WriteFile(path, []byte("# batch of 2026-08-29\n\n/a.sh\n  \n/b.sh\n"), 0644))

	paths, err := New(path).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.sh", "/b.sh"}, paths)
}

func TestDrain(t *testing.T) {
	q := New(filepath.Join(t.TempDir(), "queue.txt"))

	_, err := q.Append("/a.sh")
	require.NoError(t, err)
	_, err = q.Append("/b.sh")
	require.NoError(t, err)

	paths, err := q.Drain()
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.sh", "/b.sh"}, paths)

	// Queue is now empty
	paths, err = q.List()
	require.NoError(t, err)
	assert.Empty(t, paths)

	// Draining an empty queue is fine
	paths, err = q.Drain()
	require.NoError(t, err)
	assert.Empty(t, paths)
}
