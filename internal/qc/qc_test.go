package qc

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "qc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestImportCSV(t *testing.T) {
	t.Run("plain rows", func(t *testing.T) {
		store := newTestStore(t)

		csv := "snr,112.4\nmean_fd,0.12\ntsnr,48.9\n"
		n, err := store.ImportCSV("SPINS_CMH_0001_01", "05", strings.NewReader(csv))
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		values, err := store.Values("snr")
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.Equal(t, "SPINS_CMH_0001_01", values[0].Subject)
		assert.Equal(t, "05", values[0].Series)
		assert.InDelta(t, 112.4, values[0].Value, 1e-9)
	})

	t.Run("header row tolerated", func(t *testing.T) {
		store := newTestStore(t)

		csv := "metric,value\nsnr,100\n"
		n, err := store.ImportCSV("SPINS_CMH_0001_01", "05", strings.NewReader(csv))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("re-import replaces values", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.ImportCSV("SPINS_CMH_0001_01", "05", strings.NewReader("snr,100\n"))
		require.NoError(t, err)
		_, err = store.ImportCSV("SPINS_CMH_0001_01", "05", strings.NewReader("snr,120\n"))
		require.NoError(t, err)

		values, err := store.Values("snr")
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.InDelta(t, 120, values[0].Value, 1e-9)
	})

	t.Run("bad value mid-file is an error", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.ImportCSV("SPINS_CMH_0001_01", "05", strings.NewReader("snr,100\nmean_fd,squishy\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad value")
	})
}

func TestMetrics(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put("SPINS_CMH_0001_01", "05", "snr", 100))
	require.NoError(t, store.Put("SPINS_CMH_0001_01", "05", "mean_fd", 0.1))
	require.NoError(t, store.Put("SPINS_CMH_0002_01", "05", "snr", 105))

	metrics, err := store.Metrics()
	require.NoError(t, err)
	assert.Equal(t, []string{"mean_fd", "snr"}, metrics)
}

func TestBuildReport(t *testing.T) {
	store := newTestStore(t)

	// Nine clustered values and one far outlier
	subjects := []float64{100, 101, 99, 100, 102, 98, 100, 101, 99}
	for i, v := range subjects {
		subject := "SPINS_CMH_000" + string(rune('1'+i)) + "_01"
		require.NoError(t, store.Put(subject, "05", "snr", v))
	}
	require.NoError(t, store.Put("SPINS_MRC_0099_01", "05", "snr", 10))

	summaries, err := BuildReport(store, 2.0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, "snr", s.Metric)
	assert.Equal(t, 10, s.N)
	require.Len(t, s.Outliers, 1)
	assert.Equal(t, "SPINS_MRC_0099_01", s.Outliers[0].Subject)
	assert.Negative(t, s.Outliers[0].Z)
}

func TestBuildReportNoSpread(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Put("SPINS_CMH_0001_01", "05", "snr", 100))
	require.NoError(t, store.Put("SPINS_CMH_0002_01", "05", "snr", 100))

	summaries, err := BuildReport(store, 0) // default threshold
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Empty(t, summaries[0].Outliers)
	assert.Zero(t, summaries[0].Stddev)
}

func TestFormatTable(t *testing.T) {
	t.Run("empty report", func(t *testing.T) {
		var buf bytes.Buffer
		FormatTable(&buf, nil, "SPINS")
		assert.Contains(t, buf.String(), "No QC metrics recorded for study 'SPINS'")
	})

	t.Run("with outliers", func(t *testing.T) {
		summaries := []Summary{{
			Metric: "snr",
			N:      10,
			Mean:   91.0,
			Stddev: 27.0,
			Outliers: []Outlier{
				{Subject: "SPINS_MRC_0099_01", Series: "05", Value: 10, Z: -3.0},
			},
		}}

		var buf bytes.Buffer
		FormatTable(&buf, summaries, "SPINS")
		out := buf.String()
		assert.Contains(t, out, "QC metrics for study 'SPINS'")
		assert.Contains(t, out, "snr")
		assert.Contains(t, out, "SPINS_MRC_0099_01")
		assert.Contains(t, out, "z=-3.00")
		assert.Contains(t, out, "1 metric reported")
	})
}

func TestFormatJSONL(t *testing.T) {
	summaries := []Summary{
		{Metric: "snr", N: 2, Mean: 100, Stddev: 0},
		{Metric: "mean_fd", N: 2, Mean: 0.1, Stddev: 0.05},
	}

	var buf bytes.Buffer
	require.NoError(t, FormatJSONL(&buf, summaries))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first Summary
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "snr", first.Metric)
}
