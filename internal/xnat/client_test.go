package xnat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	_, err := NewClient("", "u", "p")
	require.Error(t, err)

	_, err = NewClient("https://xnat.example.org", "", "")
	require.Error(t, err)

	c, err := NewClient("https://xnat.example.org", "svc-mri", "hunter2")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestListExperiments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "svc-mri", user)
		assert.Equal(t, "hunter2", pass)
		assert.Equal(t, "/data/projects/SPINS/experiments", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ResultSet":{"Result":[
			{"ID":"XNAT_E0001","label":"SPINS_CMH_0001_01","project":"SPINS","date":"2026-01-15"},
			{"ID":"XNAT_E0002","label":"SPINS_CMH_0002_01","project":"SPINS","date":"2026-02-03"}
		]}}`))
	}))
	defer server.Close()

	c, err := NewClient(server.URL, "svc-mri", "hunter2")
	require.NoError(t, err)

	experiments, err := c.ListExperiments(context.Background(), "SPINS")
	require.NoError(t, err)
	require.Len(t, experiments, 2)
	assert.Equal(t, "SPINS_CMH_0001_01", experiments[0].Label)
	assert.Equal(t, "XNAT_E0002", experiments[1].ID)
}

func TestListExperimentsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such project", http.StatusNotFound)
	}))
	defer server.Close()

	c, err := NewClient(server.URL, "svc-mri", "hunter2")
	require.NoError(t, err)

	_, err = c.ListExperiments(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestDownloadSession(t *testing.T) {
	archive := []byte("PK\x03\x04 fake zip payload")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/projects/SPINS/experiments/SPINS_CMH_0001_01/scans/ALL/files", r.URL.Path)
		assert.Equal(t, "zip", r.URL.Query().Get("format"))
		w.Write(archive)
	}))
	defer server.Close()

	c, err := NewClient(server.URL, "svc-mri", "hunter2")
	require.NoError(t, err)

	destDir := filepath.Join(t.TempDir(), "dcm")
	path, err := c.DownloadSession(context.Background(), "SPINS", "SPINS_CMH_0001_01", destDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "SPINS_CMH_0001_01.zip"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, archive, data)

	// No leftover partial file
	_, err = os.Stat(path + ".part")
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadSessionServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer server.Close()

	c, err := NewClient(server.URL, "svc-mri", "hunter2")
	require.NoError(t, err)

	_, err = c.DownloadSession(context.Background(), "SPINS", "SPINS_CMH_0001_01", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
