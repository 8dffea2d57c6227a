package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxengine/internal/domain"
)

func TestWriteAndReadBars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bars.csv")

	want := []domain.Bar{
		{
			Time:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Symbol: "EURUSD",
			Open:   1.1000, High: 1.1010, Low: 1.0990, Close: 1.1005, Volume: 1234,
		},
		{
			Time:   time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC),
			Symbol: "EURUSD",
			Open:   1.1005, High: 1.1020, Low: 1.1001, Close: 1.1018, Volume: 987,
		},
	}

	require.NoError(t, WriteBarsToCSV(want, path))
	got, err := ReadBarsFromCSV(path)
	require.NoError(t, err)
	require.Len(t, got, len(want))

	for i := range want {
		assert.True(t, want[i].Time.Equal(got[i].Time))
		assert.Equal(t, want[i].Symbol, got[i].Symbol)
		assert.InDelta(t, want[i].Close, got[i].Close, 1e-12)
		assert.InDelta(t, want[i].Volume, got[i].Volume, 1e-12)
	}
}

func TestReadBarsMissingFile(t *testing.T) {
	_, err := ReadBarsFromCSV(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestReadBarsMalformedRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	content := "time,symbol,open,high,low,close,volume\nnot-a-time,EURUSD,1,1,1,1,1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := ReadBarsFromCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
