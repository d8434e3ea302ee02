package engine

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/open-liontechsolution/tradingtool/internal/model"
	"github.com/open-liontechsolution/tradingtool/internal/strategy"
)

const dayMs = int64(86_400_000)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func candle(i int, o, h, l, c float64) model.Candle {
	return model.Candle{
		Symbol:   "BTCUSDT",
		Interval: "1d",
		OpenTime: dayMs * int64(i),
		Open:     dec(o),
		High:     dec(h),
		Low:      dec(l),
		Close:    dec(c),
		Volume:   dec(1000),
	}
}

// scripted is a strategy double: entries fire at fixed indices while flat,
// exits fire at fixed indices while in a position.
type scripted struct {
	entries map[int]*strategy.Signal
	exits   map[int]strategy.Action
}

type scriptedState struct{}

func (scriptedState) Warmup() int { return 0 }

func (s *scripted) Name() string                            { return "scripted" }
func (s *scripted) Description() string                     { return "test double" }
func (s *scripted) Parameters() []strategy.ParameterDef     { return nil }
func (s *scripted) Prepare(_ strategy.Params, _ []model.Candle) (strategy.PreparedState, error) {
	return scriptedState{}, nil
}

func (s *scripted) Evaluate(i int, _ strategy.PreparedState, pos *strategy.Position) *strategy.Signal {
	if pos != nil {
		if a, ok := s.exits[i]; ok {
			return &strategy.Signal{Action: a}
		}
		return nil
	}
	return s.entries[i]
}

func testParams(mode string, costBps float64) strategy.Params {
	return strategy.Params{
		strategy.ParamExecutionMode: mode,
		strategy.ParamCostBps:       costBps,
	}
}

func runCfg(capital float64) RunConfig {
	return RunConfig{InitialCapital: dec(capital), IntervalMs: dayMs}
}

func TestRun_EmptySeries(t *testing.T) {
	r := NewRunner(zap.NewNop())
	res, err := r.Run(nil, &scripted{}, testParams("open_next", 0), runCfg(10_000))
	require.NoError(t, err)

	assert.Empty(t, res.EquityCurve)
	assert.Empty(t, res.TradeLog)
	assert.False(t, res.Liquidated)
	assert.Equal(t, 0, res.Summary.NTrades)
}

func TestRun_NoSignalsKeepsEquityFlat(t *testing.T) {
	candles := []model.Candle{
		candle(0, 100, 101, 99, 100),
		candle(1, 100, 101, 99, 100),
		candle(2, 100, 101, 99, 100),
	}
	r := NewRunner(zap.NewNop())
	res, err := r.Run(candles, &scripted{}, testParams("open_next", 10), runCfg(10_000))
	require.NoError(t, err)

	require.Len(t, res.EquityCurve, 3)
	for _, eq := range res.EquityCurve {
		assert.True(t, eq.Equal(dec(10_000)), "equity should stay at initial capital, got %s", eq)
	}
	assert.Empty(t, res.TradeLog)
}

func TestRun_OpenNextEntryFillsAtNextOpen(t *testing.T) {
	// Spec'd breakout shape: signal at index 2, fill at the open of index 3.
	candles := []model.Candle{
		candle(0, 100, 101, 99, 100),
		candle(1, 100, 101, 99, 100),
		candle(2, 100, 105, 99, 105),
		candle(3, 105, 107, 104, 106),
		candle(4, 106, 108, 105, 107),
	}
	strat := &scripted{entries: map[int]*strategy.Signal{
		2: {Action: strategy.ActionEnterLong, StopPrice: dec(97)},
	}}

	r := NewRunner(zap.NewNop())
	res, err := r.Run(candles, strat, testParams("open_next", 0), runCfg(10_000))
	require.NoError(t, err)

	// No exit was ever signaled: the position stays open at series end and
	// is never force-closed, so the log is empty and equity is marked to
	// market.
	assert.Empty(t, res.TradeLog)
	assert.False(t, res.Liquidated)
	require.Len(t, res.EquityCurve, 5)

	// Before the fill the curve sits at initial capital.
	assert.True(t, res.EquityCurve[2].Equal(dec(10_000)))

	// qty = 10000/105; index 3 closes at 106.
	qty := dec(10_000).Div(dec(105))
	want3 := dec(10_000).Add(qty.Mul(dec(1)))
	assert.InDelta(t, want3.InexactFloat64(), res.EquityCurve[3].InexactFloat64(), 1e-9)

	// Two candles of five spent in market.
	assert.InDelta(t, 40.0, res.Summary.TimeInMarketPct, 1e-9)
}

func TestRun_CloseCurrentFillsSameCandle(t *testing.T) {
	candles := []model.Candle{
		candle(0, 100, 101, 99, 100),
		candle(1, 100, 106, 99, 105),
		candle(2, 105, 107, 104, 106),
	}
	strat := &scripted{
		entries: map[int]*strategy.Signal{1: {Action: strategy.ActionEnterLong, StopPrice: dec(90)}},
		exits:   map[int]strategy.Action{2: strategy.ActionExitLong},
	}

	r := NewRunner(zap.NewNop())
	res, err := r.Run(candles, strat, testParams("close_current", 0), runCfg(10_000))
	require.NoError(t, err)

	require.Len(t, res.TradeLog, 1)
	tr := res.TradeLog[0]
	assert.True(t, tr.EntryPrice.Equal(dec(105)), "entry at close of signal candle, got %s", tr.EntryPrice)
	assert.True(t, tr.ExitPrice.Equal(dec(106)), "exit at close of signal candle, got %s", tr.ExitPrice)
	assert.Equal(t, ExitReasonSignal, tr.ExitReason)
}

func TestRun_StopBeatsExitSignalOnSameCandle(t *testing.T) {
	candles := []model.Candle{
		candle(0, 100, 101, 99, 100),
		candle(1, 100, 101, 99, 100), // entry fill at open
		candle(2, 100, 101, 94, 95),  // stop breach and exit signal
	}
	strat := &scripted{
		entries: map[int]*strategy.Signal{0: {Action: strategy.ActionEnterLong, StopPrice: dec(96)}},
		exits:   map[int]strategy.Action{2: strategy.ActionExitLong},
	}

	r := NewRunner(zap.NewNop())
	res, err := r.Run(candles, strat, testParams("open_next", 0), runCfg(10_000))
	require.NoError(t, err)

	require.Len(t, res.TradeLog, 1)
	tr := res.TradeLog[0]
	assert.Equal(t, ExitReasonStopLong, tr.ExitReason)
	assert.True(t, tr.ExitPrice.Equal(dec(96)), "stop fills at the stop price, got %s", tr.ExitPrice)
}

func TestRun_GapThroughStopFillsAtOpen(t *testing.T) {
	candles := []model.Candle{
		candle(0, 100, 101, 99, 100),
		candle(1, 100, 101, 99, 100),
		candle(2, 92, 93, 90, 91), // opens below the 96 stop
	}
	strat := &scripted{
		entries: map[int]*strategy.Signal{0: {Action: strategy.ActionEnterLong, StopPrice: dec(96)}},
	}

	r := NewRunner(zap.NewNop())
	res, err := r.Run(candles, strat, testParams("open_next", 0), runCfg(10_000))
	require.NoError(t, err)

	require.Len(t, res.TradeLog, 1)
	tr := res.TradeLog[0]
	assert.Equal(t, ExitReasonStopLong, tr.ExitReason)
	assert.True(t, tr.ExitPrice.Equal(dec(92)), "gap through the stop fills at the open, got %s", tr.ExitPrice)
}

func TestRun_ShortStopGapFillsAtOpen(t *testing.T) {
	candles := []model.Candle{
		candle(0, 100, 101, 99, 100),
		candle(1, 100, 101, 99, 100),
		candle(2, 110, 112, 109, 111), // opens above the 104 stop
	}
	strat := &scripted{
		entries: map[int]*strategy.Signal{0: {Action: strategy.ActionEnterShort, StopPrice: dec(104)}},
	}

	r := NewRunner(zap.NewNop())
	res, err := r.Run(candles, strat, testParams("open_next", 0), runCfg(10_000))
	require.NoError(t, err)

	require.Len(t, res.TradeLog, 1)
	tr := res.TradeLog[0]
	assert.Equal(t, ExitReasonStopShort, tr.ExitReason)
	assert.True(t, tr.ExitPrice.Equal(dec(110)))
}

func TestRun_LiquidationTerminatesRun(t *testing.T) {
	// 5x leverage, a 22% gap against the position: 500 * 22 = 11000 loss
	// against 10000 of capital.
	candles := []model.Candle{
		candle(0, 100, 101, 99, 100),
		candle(1, 100, 101, 99, 100), // entry fill: qty 500 at 100
		candle(2, 78, 80, 75, 76),    // gap through the 90 stop
		candle(3, 76, 77, 75, 76),
		candle(4, 76, 77, 75, 76),
	}
	strat := &scripted{
		entries: map[int]*strategy.Signal{0: {Action: strategy.ActionEnterLong, StopPrice: dec(90)}},
	}

	cfg := runCfg(10_000)
	cfg.CapitalMode = CapitalModeLeverage
	cfg.Leverage = 5

	r := NewRunner(zap.NewNop())
	res, err := r.Run(candles, strat, testParams("open_next", 0), cfg)
	require.NoError(t, err)

	assert.True(t, res.Liquidated)
	require.Len(t, res.TradeLog, 1)
	tr := res.TradeLog[0]
	assert.True(t, tr.Pnl.Equal(dec(-11_000)), "pnl = %s", tr.Pnl)
	assert.True(t, tr.EquityAfter.Equal(decimal.Zero), "equity clamps at zero, got %s", tr.EquityAfter)

	// Only the candles up to and including liquidation are processed.
	require.Len(t, res.EquityCurve, 3)
	assert.True(t, res.EquityCurve[2].Equal(decimal.Zero))
}

func TestRun_EntriesRefusedWhilePositionOpen(t *testing.T) {
	entries := make(map[int]*strategy.Signal)
	for i := 0; i < 6; i++ {
		entries[i] = &strategy.Signal{Action: strategy.ActionEnterLong, StopPrice: dec(1)}
	}
	strat := &scripted{
		entries: entries,
		exits:   map[int]strategy.Action{3: strategy.ActionExitLong},
	}
	candles := []model.Candle{
		candle(0, 100, 101, 99, 100),
		candle(1, 100, 101, 99, 100),
		candle(2, 100, 101, 99, 100),
		candle(3, 100, 101, 99, 100),
		candle(4, 100, 101, 99, 100),
		candle(5, 100, 101, 99, 100),
	}

	r := NewRunner(zap.NewNop())
	res, err := r.Run(candles, strat, testParams("open_next", 0), runCfg(10_000))
	require.NoError(t, err)

	// First entry fills at open of 1, exit signal at 3 fills at open of 4,
	// re-entry fills at open of 5. Trades never overlap.
	require.Len(t, res.TradeLog, 1)
	tr := res.TradeLog[0]
	assert.Equal(t, dayMs*1, tr.EntryTime)
	assert.Equal(t, dayMs*4, tr.ExitTime)
	assert.True(t, tr.ExitTime <= dayMs*5, "closed trade must not overlap the next entry")
}

func TestRun_FeesDeductedAtFillTime(t *testing.T) {
	candles := []model.Candle{
		candle(0, 100, 101, 99, 100),
		candle(1, 100, 101, 99, 100),
	}
	strat := &scripted{
		entries: map[int]*strategy.Signal{0: {Action: strategy.ActionEnterLong, StopPrice: dec(1)}},
	}

	r := NewRunner(zap.NewNop())
	res, err := r.Run(candles, strat, testParams("close_current", 10), runCfg(10_000))
	require.NoError(t, err)

	// 10 bps on a 10000 notional entry: 10 deducted at the fill.
	require.Len(t, res.EquityCurve, 2)
	assert.InDelta(t, 9_990.0, res.EquityCurve[0].InexactFloat64(), 1e-9)
}

func TestRun_InvestedAmountSizing(t *testing.T) {
	candles := []model.Candle{
		candle(0, 100, 101, 99, 100),
		candle(1, 100, 101, 99, 100),
		candle(2, 110, 111, 109, 110),
	}
	strat := &scripted{
		entries: map[int]*strategy.Signal{0: {Action: strategy.ActionEnterLong, StopPrice: dec(1)}},
		exits:   map[int]strategy.Action{1: strategy.ActionExitLong},
	}

	cfg := runCfg(10_000)
	cfg.CapitalMode = CapitalModeInvested
	cfg.InvestedAmount = dec(2_000)

	r := NewRunner(zap.NewNop())
	res, err := r.Run(candles, strat, testParams("open_next", 0), cfg)
	require.NoError(t, err)

	// qty = 2000/100 = 20; exit at open of candle 2 (110): pnl = 20 * 10.
	require.Len(t, res.TradeLog, 1)
	assert.True(t, res.TradeLog[0].Pnl.Equal(dec(200)), "pnl = %s", res.TradeLog[0].Pnl)
}

func TestRun_BreakoutRoundTripOverSyntheticSeries(t *testing.T) {
	// Five flat candles, a clean breakout close at index 5, then a steady
	// drift up that never touches the stop or the exit window.
	candles := []model.Candle{
		candle(0, 100, 101, 99, 100),
		candle(1, 100, 101, 99, 100),
		candle(2, 100, 101, 99, 100),
		candle(3, 100, 101, 99, 100),
		candle(4, 100, 101, 99, 100),
		candle(5, 100, 105, 99.5, 105),
		candle(6, 105, 107, 104, 106),
		candle(7, 106, 108, 105, 107),
		candle(8, 107, 109, 106, 108),
		candle(9, 108, 110, 107, 109),
	}
	strat := strategy.NewBreakout()
	params, err := strategy.ValidateParams(strat.Parameters(), map[string]any{
		"n_entry": 4, "m_exit": 4, "cost_bps": 0.0,
	})
	require.NoError(t, err)

	r := NewRunner(zap.NewNop())
	res, err := r.Run(candles, strat, params, runCfg(10_000))
	require.NoError(t, err)

	// The breakout fills long at the open of index 6 and never exits, so
	// the log stays empty and the position is marked to market at the end.
	assert.Empty(t, res.TradeLog)
	assert.False(t, res.Liquidated)
	require.Len(t, res.EquityCurve, 10)
	assert.True(t, res.EquityCurve[5].Equal(dec(10_000)))

	qty := dec(10_000).Div(dec(105))
	for i, wantGain := range map[int]float64{6: 1, 7: 2, 8: 3, 9: 4} {
		want := dec(10_000).Add(qty.Mul(dec(wantGain)))
		assert.InDelta(t, want.InexactFloat64(), res.EquityCurve[i].InexactFloat64(), 1e-9, "index %d", i)
	}

	assert.InDelta(t, 40.0, res.Summary.TimeInMarketPct, 1e-9)
	assert.Greater(t, res.Summary.NetProfitPct, 0.0)
}

func TestRun_Deterministic(t *testing.T) {
	strat := strategy.NewBreakout()
	candles := trendingCandles(40)
	params, err := strategy.ValidateParams(strat.Parameters(), map[string]any{
		"n_entry": 4, "m_exit": 3,
	})
	require.NoError(t, err)

	r := NewRunner(zap.NewNop())
	first, err := r.Run(candles, strat, params, runCfg(10_000))
	require.NoError(t, err)
	second, err := r.Run(candles, strat, params, runCfg(10_000))
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

// trendingCandles rises for 25 candles and then sells off, producing at
// least one full breakout round trip.
func trendingCandles(n int) []model.Candle {
	out := make([]model.Candle, 0, n)
	price := 100.0
	for i := 0; i < n; i++ {
		var o, c float64
		if i < 25 {
			o, c = price, price+2
		} else {
			o, c = price, price-5
		}
		h := max(o, c) + 1
		l := min(o, c) - 1
		out = append(out, candle(i, o, h, l, c))
		price = c
	}
	return out
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
