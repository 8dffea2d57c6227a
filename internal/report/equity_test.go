package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxengine/internal/backtest"
)

func TestWriteHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	res := &backtest.Result{
		EquityCurve:    []float64{10000, 10100, 10050, 10200},
		InitialBalance: 10000,
		FinalBalance:   10200,
		FinalEquity:    10200,
	}

	require.NoError(t, WriteHTML(Input{Symbol: "EURUSD", Result: res}, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Equity")
	assert.Contains(t, string(content), "Drawdown")
}

func TestWriteHTMLRequiresResult(t *testing.T) {
	err := WriteHTML(Input{}, filepath.Join(t.TempDir(), "report.html"))
	assert.Error(t, err)
}
