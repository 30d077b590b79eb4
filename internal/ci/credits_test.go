package ci

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContributors(t *testing.T) {
	t.Run("tallies and sorts", func(t *testing.T) {
		input := strings.Join([]string{
			"# name\torcid\tlines",
			"Dawn Smith\t0000-0002-1234-5678\t120",
			"Alex Chen\t\t450",
			"",
			"Dawn Smith\t\t80",
			"Bo Park\t0000-0003-9999-0000\t200",
		}, "\n")

		contributors, err := ParseContributors(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, contributors, 3)

		// Descending by merged line count
		assert.Equal(t, "Alex Chen", contributors[0].Name)
		assert.Equal(t, 450, contributors[0].Lines)
		assert.Equal(t, "Dawn Smith", contributors[1].Name)
		assert.Equal(t, 200, contributors[1].Lines)
		assert.Equal(t, "0000-0002-1234-5678", contributors[1].ORCID)
		assert.Equal(t, "Bo Park", contributors[2].Name)
	})

	t.Run("name tiebreak is alphabetical", func(t *testing.T) {
		input := "Zoe Lu\t\t100\nAmy Wu\t\t100\n"
		contributors, err := ParseContributors(strings.NewReader(input))
		require.NoError(t, err)
		assert.Equal(t, "Amy Wu", contributors[0].Name)
		assert.Equal(t, "Zoe Lu", contributors[1].Name)
	})

	t.Run("malformed records rejected", func(t *testing.T) {
		for _, input := range []string{
			"Just A Name\n",
			"Name\torcid\tnot-a-number\n",
			"Name\torcid\t-5\n",
			"\t0000-0002-1234-5678\t10\n",
		} {
			_, err := ParseContributors(strings.NewReader(input))
			require.Error(t, err, input)
		}
	})
}

func TestUpdateZenodo(t *testing.T) {
	contributors := []Contributor{
		{Name: "Alex Chen", Lines: 450},
		{Name: "Dawn Smith", ORCID: "0000-0002-1234-5678", Lines: 200},
	}

	t.Run("creates file when missing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".zenodo.json")
		require.NoError(t, UpdateZenodo(path, contributors))

		var doc map[string]interface{}
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &doc))

		creators := doc["creators"].([]interface{})
		require.Len(t, creators, 2)
		first := creators[0].(map[string]interface{})
		assert.Equal(t, "Alex Chen", first["name"])
		_, hasORCID := first["orcid"]
		assert.False(t, hasORCID, "empty ORCID omitted")
	})

	t.Run("preserves unrelated fields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".zenodo.json")
		existing := `{"title": "sulcus", "license": "Apache-2.0", "creators": [{"name": "Old Author"}]}`
		require.NoError(t, os.WriteFile(path, []byte(existing), 0644))

		require.NoError(t, UpdateZenodo(path, contributors))

		var doc map[string]interface{}
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &doc))

		assert.Equal(t, "sulcus", doc["title"])
		assert.Equal(t, "Apache-2.0", doc["license"])

		creators := doc["creators"].([]interface{})
		require.Len(t, creators, 2)
		second := creators[1].(map[string]interface{})
		assert.Equal(t, "0000-0002-1234-5678", second["orcid"])
	})

	t.Run("corrupt existing file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".zenodo.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
		require.Error(t, UpdateZenodo(path, contributors))
	})
}
