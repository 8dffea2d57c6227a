package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxengine/internal/domain"
	"fxengine/internal/indicators"
	"fxengine/internal/ports"
	"fxengine/internal/risk"
	"fxengine/internal/trailing"
)

type closeCall struct {
	positionID string
	reason     domain.ExitReason
}

type fakeExecutor struct {
	submitted []domain.Order
	modified  map[string]float64
	closed    []closeCall
	submitErr error
	closeErr  error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{modified: make(map[string]float64)}
}

func (f *fakeExecutor) SubmitOrder(ctx context.Context, order domain.Order) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, order)
	return nil
}

func (f *fakeExecutor) ModifyStopLoss(ctx context.Context, positionID string, newStopLoss float64) error {
	f.modified[positionID] = newStopLoss
	return nil
}

func (f *fakeExecutor) ClosePosition(ctx context.Context, positionID string, reason domain.ExitReason) error {
	if f.closeErr != nil {
		return f.closeErr
	}
	f.closed = append(f.closed, closeCall{positionID: positionID, reason: reason})
	return nil
}

type fakeFeed struct {
	bars []domain.Bar
}

func (f *fakeFeed) GetBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error) {
	if limit >= len(f.bars) {
		return f.bars, nil
	}
	return f.bars[len(f.bars)-limit:], nil
}

func (f *fakeFeed) GetBarsRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error) {
	return f.bars, nil
}

func liveBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		c := 1.1000 + float64(i)*0.0001
		if i%2 == 0 {
			c += 0.0004
		} else {
			c -= 0.0004
		}
		bars[i] = domain.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Symbol: "EURUSD",
			Open:   c,
			High:   c + 0.0002,
			Low:    c - 0.0002,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func liveRiskManager(t *testing.T) *risk.Manager {
	t.Helper()
	m, err := risk.NewManager(risk.Config{
		StopLossType:    domain.StopLossFixedPips,
		StopLossValue:   50,
		TakeProfitType:  domain.TakeProfitFixedPips,
		TakeProfitValue: 100,
		RiskPerTrade:    1.0,
		MinLot:          0.01,
		MaxLot:          5.0,
	}, nil)
	require.NoError(t, err)
	return m
}

func liveConfig(ruleSet []domain.Rule) Config {
	return Config{
		Symbol:         "EURUSD",
		Interval:       "1h",
		WarmupBars:     20,
		PipValuePerLot: 10,
		AccountBalance: 10000,
		Rules:          ruleSet,
		Indicators:     indicators.Config{RSIPeriod: 14, ATRPeriod: 14},
	}
}

func newTestService(t *testing.T, cfg Config, exec ports.OrderExecutor, trailEng *trailing.Engine) *LiveService {
	t.Helper()
	svc, err := NewLiveService(cfg, ports.NopLogger{}, &fakeFeed{bars: liveBars(60)}, exec, liveRiskManager(t), trailEng)
	require.NoError(t, err)
	return svc
}

// warmUp seeds the bar cache so the next processBar evaluates rules.
func warmUp(svc *LiveService, bars []domain.Bar) {
	svc.barCache = append(svc.barCache, bars...)
	svc.lastBarTime = bars[len(bars)-1].Time
}

func TestNewLiveServiceValidation(t *testing.T) {
	exec := newFakeExecutor()
	feed := &fakeFeed{}
	riskMgr := liveRiskManager(t)

	_, err := NewLiveService(liveConfig(nil), ports.NopLogger{}, nil, exec, riskMgr, nil)
	assert.Error(t, err)

	_, err = NewLiveService(liveConfig(nil), ports.NopLogger{}, feed, exec, nil, nil)
	assert.Error(t, err)

	cfg := liveConfig(nil)
	cfg.Symbol = ""
	_, err = NewLiveService(cfg, ports.NopLogger{}, feed, exec, riskMgr, nil)
	assert.Error(t, err)

	cfg = liveConfig(nil)
	cfg.AccountBalance = 0
	_, err = NewLiveService(cfg, ports.NopLogger{}, feed, exec, riskMgr, nil)
	assert.Error(t, err)
}

func TestEntrySubmitsOrder(t *testing.T) {
	exec := newFakeExecutor()
	ruleSet := []domain.Rule{{ID: "long", Condition: "RSI >= 0", Action: domain.ActionBuy}}
	svc := newTestService(t, liveConfig(ruleSet), exec, nil)

	bars := liveBars(60)
	warmUp(svc, bars[:50])
	svc.processBar(context.Background(), bars[50])

	require.Len(t, exec.submitted, 1)
	order := exec.submitted[0]
	assert.Equal(t, domain.Buy, order.Direction)
	assert.Equal(t, "EURUSD", order.Symbol)
	assert.InDelta(t, bars[50].Close, order.EntryPrice, 1e-9)
	assert.InDelta(t, bars[50].Close-0.0050, order.StopLoss, 1e-9)
	assert.InDelta(t, bars[50].Close+0.0100, order.TakeProfit, 1e-9)
	// 1% of 10000 over 50 pips at $10/pip.
	assert.InDelta(t, 0.2, order.Lots, 1e-9)

	require.NotNil(t, svc.currentPosition)
	assert.Equal(t, order.ID, svc.currentPosition.ID)
	assert.Equal(t, 1, svc.tradesToday)
}

func TestNoEntryWithoutMatchedRule(t *testing.T) {
	exec := newFakeExecutor()
	ruleSet := []domain.Rule{{ID: "never", Condition: "RSI < 0", Action: domain.ActionBuy}}
	svc := newTestService(t, liveConfig(ruleSet), exec, nil)

	bars := liveBars(60)
	warmUp(svc, bars[:50])
	svc.processBar(context.Background(), bars[50])

	assert.Empty(t, exec.submitted)
	assert.Nil(t, svc.currentPosition)
}

func TestDailyTradeLimit(t *testing.T) {
	exec := newFakeExecutor()
	ruleSet := []domain.Rule{{ID: "long", Condition: "RSI >= 0", Action: domain.ActionBuy}}
	cfg := liveConfig(ruleSet)
	cfg.MaxTradesPerDay = 1
	svc := newTestService(t, cfg, exec, nil)

	bars := liveBars(60)
	warmUp(svc, bars[:50])
	svc.processBar(context.Background(), bars[50])
	require.Len(t, exec.submitted, 1)

	// Flat the position; the same-day limit still blocks a re-entry.
	svc.currentPosition = nil
	svc.processBar(context.Background(), bars[51])
	assert.Len(t, exec.submitted, 1)
}

func TestExitRuleClosesPosition(t *testing.T) {
	exec := newFakeExecutor()
	ruleSet := []domain.Rule{
		{ID: "long", Condition: "RSI >= 0", Action: domain.ActionBuy},
		{ID: "flat", Condition: "RSI >= 0", Action: domain.ActionClose},
	}
	svc := newTestService(t, liveConfig(ruleSet), exec, nil)

	bars := liveBars(60)
	warmUp(svc, bars[:50])
	svc.processBar(context.Background(), bars[50])
	require.NotNil(t, svc.currentPosition)
	positionID := svc.currentPosition.ID

	svc.processBar(context.Background(), bars[51])

	require.Len(t, exec.closed, 1)
	assert.Equal(t, positionID, exec.closed[0].positionID)
	assert.Equal(t, domain.ExitReasonSignal, exec.closed[0].reason)
	assert.Nil(t, svc.currentPosition)
	// A close and a fresh entry never happen on the same bar.
	assert.Len(t, exec.submitted, 1)
}

func TestTrailingStopModificationTransmitted(t *testing.T) {
	trailEng, err := trailing.NewEngine(trailing.Config{
		Enabled:        true,
		Type:           domain.TrailingFixedPips,
		ActivationPips: 10,
		TrailPips:      20,
	}, nil)
	require.NoError(t, err)

	exec := newFakeExecutor()
	ruleSet := []domain.Rule{{ID: "long", Condition: "RSI >= 0", Action: domain.ActionBuy}}
	svc := newTestService(t, liveConfig(ruleSet), exec, trailEng)

	bars := liveBars(60)
	warmUp(svc, bars[:50])
	svc.processBar(context.Background(), bars[50])
	require.NotNil(t, svc.currentPosition)
	positionID := svc.currentPosition.ID
	entry := svc.currentPosition.EntryPrice

	// 30 pips beyond entry activates the trail.
	next := bars[51]
	next.Close = entry + 0.0030
	next.High = next.Close + 0.0002
	next.Low = next.Close - 0.0002
	svc.processBar(context.Background(), next)

	newStop, ok := exec.modified[positionID]
	require.True(t, ok)
	// Extreme minus the 20-pip trail.
	assert.InDelta(t, entry+0.0010, newStop, 1e-9)
	assert.InDelta(t, newStop, svc.currentPosition.StopLoss, 1e-9)
}

func TestCloseFailureKeepsPositionTracked(t *testing.T) {
	exec := newFakeExecutor()
	exec.closeErr = errors.New("terminal unreachable")
	ruleSet := []domain.Rule{
		{ID: "long", Condition: "RSI >= 0", Action: domain.ActionBuy},
		{ID: "flat", Condition: "RSI >= 0", Action: domain.ActionClose},
	}
	svc := newTestService(t, liveConfig(ruleSet), exec, nil)

	bars := liveBars(60)
	warmUp(svc, bars[:50])
	svc.processBar(context.Background(), bars[50])
	require.NotNil(t, svc.currentPosition)
	positionID := svc.currentPosition.ID

	// The close cannot be transmitted: the position must stay tracked and
	// keep aging so the exit is retried on the next bar.
	svc.processBar(context.Background(), bars[51])
	require.NotNil(t, svc.currentPosition)
	assert.Equal(t, positionID, svc.currentPosition.ID)
	assert.Equal(t, 1, svc.currentPosition.BarsHeld)
	assert.Empty(t, exec.closed)

	exec.closeErr = nil
	svc.processBar(context.Background(), bars[52])
	require.Len(t, exec.closed, 1)
	assert.Equal(t, positionID, exec.closed[0].positionID)
	assert.Nil(t, svc.currentPosition)
}

func TestSubmitFailureLeavesStateClean(t *testing.T) {
	exec := newFakeExecutor()
	exec.submitErr = errors.New("terminal unreachable")
	ruleSet := []domain.Rule{{ID: "long", Condition: "RSI >= 0", Action: domain.ActionBuy}}
	svc := newTestService(t, liveConfig(ruleSet), exec, nil)

	bars := liveBars(60)
	warmUp(svc, bars[:50])
	svc.processBar(context.Background(), bars[50])

	assert.Nil(t, svc.currentPosition)
	assert.Equal(t, 0, svc.tradesToday)
	assert.Empty(t, exec.submitted)
}
