package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/open-liontechsolution/tradingtool/internal/model"
)

// Breakout enters on a close beyond the rolling extreme of the previous
// n_entry candles and exits on a close beyond the opposite rolling extreme
// of the previous m_exit candles. All windows exclude the current candle.
type Breakout struct{}

func NewBreakout() *Breakout { return &Breakout{} }

func (*Breakout) Name() string { return "breakout" }

func (*Breakout) Description() string {
	return "Close-based breakout of the previous N-candle High/Low with a " +
		"percentage stop anchored to the opposite extreme and exit on a " +
		"break of the M-candle extreme."
}

func (*Breakout) Parameters() []ParameterDef {
	defs := []ParameterDef{
		{Name: "n_entry", Kind: KindInt, Default: 20, Min: fptr(2), Max: fptr(500),
			Description: "Lookback window for entry extrema, exclusive of the current candle"},
		{Name: "m_exit", Kind: KindInt, Default: 10, Min: fptr(1), Max: fptr(500),
			Description: "Lookback window for exit extrema"},
		{Name: ParamStopPct, Kind: KindFloat, Default: 0.02, Min: fptr(0.001), Max: fptr(0.5),
			Description: "Stop distance as a fraction of the reference extreme"},
	}
	return append(defs, commonParams()...)
}

type breakoutState struct {
	warmup      int
	enableLong  bool
	enableShort bool
	stopLongK   decimal.Decimal // 1 - stop_pct
	stopShortK  decimal.Decimal // 1 + stop_pct

	maxPrev []decimal.Decimal
	minPrev []decimal.Decimal
	maxExit []decimal.Decimal
	minExit []decimal.Decimal
	closes  []decimal.Decimal
}

func (s *breakoutState) Warmup() int { return s.warmup }

func (b *Breakout) Prepare(params Params, candles []model.Candle) (PreparedState, error) {
	n := params.Int("n_entry")
	m := params.Int("m_exit")
	stopPct := decimal.NewFromFloat(params.Float(ParamStopPct))

	warmup := n
	if m > warmup {
		warmup = m
	}

	st := &breakoutState{
		warmup:      warmup,
		enableLong:  params.Bool(ParamEnableLong),
		enableShort: params.Bool(ParamEnableShort),
		stopLongK:   decimal.NewFromInt(1).Sub(stopPct),
		stopShortK:  decimal.NewFromInt(1).Add(stopPct),
		maxPrev:     rollingMax(candles, n, highOf),
		minPrev:     rollingMin(candles, n, lowOf),
		maxExit:     rollingMax(candles, m, highOf),
		minExit:     rollingMin(candles, m, lowOf),
		closes:      make([]decimal.Decimal, len(candles)),
	}
	for i, c := range candles {
		st.closes[i] = c.Close
	}
	return st, nil
}

func (b *Breakout) Evaluate(i int, state PreparedState, pos *Position) *Signal {
	st, ok := state.(*breakoutState)
	if !ok || i < st.warmup || i >= len(st.closes) {
		return nil
	}
	close := st.closes[i]

	if pos != nil {
		switch pos.Side {
		case "long":
			if close.LessThan(st.minExit[i]) {
				return &Signal{Action: ActionExitLong}
			}
		case "short":
			if close.GreaterThan(st.maxExit[i]) {
				return &Signal{Action: ActionExitShort}
			}
		}
		return nil
	}

	if st.enableLong && close.GreaterThan(st.maxPrev[i]) {
		return &Signal{Action: ActionEnterLong, StopPrice: st.minPrev[i].Mul(st.stopLongK)}
	}
	if st.enableShort && close.LessThan(st.minPrev[i]) {
		return &Signal{Action: ActionEnterShort, StopPrice: st.maxPrev[i].Mul(st.stopShortK)}
	}
	return nil
}

func highOf(c model.Candle) decimal.Decimal { return c.High }
func lowOf(c model.Candle) decimal.Decimal  { return c.Low }

// rollingMax computes, for every index t, the maximum of pick over the
// window [t-w, t-1]. Indices with an incomplete window keep the zero value
// and are never consulted because they sit inside the warm-up period.
func rollingMax(candles []model.Candle, w int, pick func(model.Candle) decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for t := w; t < len(candles); t++ {
		m := pick(candles[t-w])
		for k := t - w + 1; k < t; k++ {
			if v := pick(candles[k]); v.GreaterThan(m) {
				m = v
			}
		}
		out[t] = m
	}
	return out
}

func rollingMin(candles []model.Candle, w int, pick func(model.Candle) decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for t := w; t < len(candles); t++ {
		m := pick(candles[t-w])
		for k := t - w + 1; k < t; k++ {
			if v := pick(candles[k]); v.LessThan(m) {
				m = v
			}
		}
		out[t] = m
	}
	return out
}
