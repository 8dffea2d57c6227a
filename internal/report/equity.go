package report

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"fxengine/internal/analytics"
	"fxengine/internal/backtest"
)

// Input bundles everything the HTML report needs.
type Input struct {
	Title   string
	Symbol  string
	Result  *backtest.Result
	Metrics *analytics.Metrics
}

// WriteHTML renders the equity curve and drawdown of a backtest run into a
// self-contained HTML file.
func WriteHTML(input Input, filename string) error {
	if input.Result == nil {
		return fmt.Errorf("backtest result is required")
	}
	if input.Metrics == nil {
		input.Metrics = analytics.Calculate(input.Result.Trades, input.Result.EquityCurve)
	}
	title := input.Title
	if title == "" {
		title = fmt.Sprintf("Backtest %s", input.Symbol)
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(
		equityChart(title, input),
		drawdownChart(input.Result.EquityCurve),
	)

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer file.Close()
	if err := page.Render(file); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return nil
}

func equityChart(title string, input Input) *charts.Line {
	m := input.Metrics
	subtitle := fmt.Sprintf(
		"trades: %d  win rate: %.1f%%  net profit: %.2f  profit factor: %.2f  max drawdown: %.1f%%",
		m.TotalTrades, m.WinRate, m.NetProfit, m.ProfitFactor, m.MaxDrawdownPct,
	)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)

	x := make([]int, len(input.Result.EquityCurve))
	data := make([]opts.LineData, len(input.Result.EquityCurve))
	for i, v := range input.Result.EquityCurve {
		x[i] = i
		data[i] = opts.LineData{Value: v}
	}
	line.SetXAxis(x)
	line.AddSeries("Equity", data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

func drawdownChart(equity []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Drawdown %"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)

	x := make([]int, len(equity))
	data := make([]opts.LineData, len(equity))
	peak := 0.0
	for i, v := range equity {
		if v > peak {
			peak = v
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - v) / peak * 100
		}
		x[i] = i
		data[i] = opts.LineData{Value: -dd}
	}
	line.SetXAxis(x)
	line.AddSeries("Drawdown", data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}
