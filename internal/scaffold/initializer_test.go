package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// chtemp switches into a fresh temp dir for the duration of the test.
func chtemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
	return dir
}

func TestInitialize(t *testing.T) {
	t.Run("creates study.yml and directory roots", func(t *testing.T) {
		dir := chtemp(t)

		require.NoError(t, Initialize(false))

		content, err := os.ReadFile(filepath.Join(dir, "study.yml"))
		require.NoError(t, err)
		assert.Contains(t, string(content), "version:")
		assert.Contains(t, string(content), "stages:")

		for _, sub := range []string{"data/nii", "data/dcm", "qc", "logs", "pipelines"} {
			info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(sub)))
			require.NoError(t, err, "expected directory %s", sub)
			assert.True(t, info.IsDir())
		}
	})

	t.Run("template is valid YAML", func(t *testing.T) {
		chtemp(t)
		require.NoError(t, Initialize(false))

		content, err := os.ReadFile("study.yml")
		require.NoError(t, err)

		var parsed map[string]interface{}
		require.NoError(t, yaml.Unmarshal(content, &parsed))
		assert.Equal(t, "1.0", parsed["version"])
		assert.NotEmpty(t, parsed["stages"])
	})

	t.Run("refuses to overwrite existing study.yml", func(t *testing.T) {
		chtemp(t)
		require.NoError(t, os.WriteFile("study.yml", []byte("study: MINE\n"), 0644))

		err := Initialize(false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")

		content, err := os.ReadFile("study.yml")
		require.NoError(t, err)
		assert.Equal(t, "study: MINE\n", string(content))
	})

	t.Run("force replaces existing study.yml", func(t *testing.T) {
		chtemp(t)
		require.NoError(t, os.WriteFile("study.yml", []byte("study: MINE\n"), 0644))

		require.NoError(t, Initialize(true))

		content, err := os.ReadFile("study.yml")
		require.NoError(t, err)
		assert.Contains(t, string(content), "version:")
	})
}
