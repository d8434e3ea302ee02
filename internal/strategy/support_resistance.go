package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/open-liontechsolution/tradingtool/internal/model"
)

// SupportResistance trades breaks of zigzag pivot levels. A pivot high or
// low is confirmed only once price retraces beyond reversal_pct from the
// running extreme, so confirmation always lags the extreme itself and the
// precomputed level arrays never encode future information.
type SupportResistance struct{}

func NewSupportResistance() *SupportResistance { return &SupportResistance{} }

func (*SupportResistance) Name() string { return "support_resistance" }

func (*SupportResistance) Description() string {
	return "Zigzag swing detection: the last confirmed swing high is " +
		"resistance, the last confirmed swing low is support. Entry on a " +
		"close through a level, exit on a close through the opposite level, " +
		"percentage stop beyond the broken level."
}

func (*SupportResistance) Parameters() []ParameterDef {
	defs := []ParameterDef{
		{Name: "reversal_pct", Kind: KindFloat, Default: 0.03, Min: fptr(0.005), Max: fptr(0.5),
			Description: "Minimum retrace from the running extreme to confirm a pivot"},
		{Name: ParamStopPct, Kind: KindFloat, Default: 0.02, Min: fptr(0.001), Max: fptr(0.5),
			Description: "Stop distance as a fraction of the broken level"},
	}
	return append(defs, commonParams()...)
}

type srState struct {
	enableLong  bool
	enableShort bool
	stopLongK   decimal.Decimal
	stopShortK  decimal.Decimal

	support    []decimal.Decimal
	resistance []decimal.Decimal
	confirmed  []bool // both levels known as of index i
	closes     []decimal.Decimal
}

// Warmup is not a fixed lookback here: signals stay suppressed until the
// zigzag has confirmed one pivot in each direction, tracked per index in
// confirmed.
func (s *srState) Warmup() int { return 0 }

func (s *SupportResistance) Prepare(params Params, candles []model.Candle) (PreparedState, error) {
	reversal := decimal.NewFromFloat(params.Float("reversal_pct"))
	stopPct := decimal.NewFromFloat(params.Float(ParamStopPct))

	st := &srState{
		enableLong:  params.Bool(ParamEnableLong),
		enableShort: params.Bool(ParamEnableShort),
		stopLongK:   decimal.NewFromInt(1).Sub(stopPct),
		stopShortK:  decimal.NewFromInt(1).Add(stopPct),
		support:     make([]decimal.Decimal, len(candles)),
		resistance:  make([]decimal.Decimal, len(candles)),
		confirmed:   make([]bool, len(candles)),
		closes:      make([]decimal.Decimal, len(candles)),
	}
	computeZigzag(candles, reversal, st)
	for i, c := range candles {
		st.closes[i] = c.Close
	}
	return st, nil
}

// computeZigzag walks the series once, alternating between tracking a
// running high and a running low. The running extreme becomes a confirmed
// pivot when price moves reversal_pct against it, at which point tracking
// flips direction.
func computeZigzag(candles []model.Candle, reversal decimal.Decimal, st *srState) {
	if len(candles) == 0 {
		return
	}
	one := decimal.NewFromInt(1)
	downK := one.Sub(reversal) // long retrace trigger: low <= high * (1 - reversal)
	upK := one.Add(reversal)   // short retrace trigger: high >= low * (1 + reversal)

	trackingHigh := true
	runningHigh := candles[0].High
	runningLow := candles[0].Low

	var support, resistance decimal.Decimal
	var haveSupport, haveResistance bool

	for t, c := range candles {
		if trackingHigh {
			if c.High.GreaterThan(runningHigh) {
				runningHigh = c.High
			}
			if c.Low.LessThanOrEqual(runningHigh.Mul(downK)) {
				resistance = runningHigh
				haveResistance = true
				trackingHigh = false
				runningLow = c.Low
			}
		} else {
			if c.Low.LessThan(runningLow) {
				runningLow = c.Low
			}
			if c.High.GreaterThanOrEqual(runningLow.Mul(upK)) {
				support = runningLow
				haveSupport = true
				trackingHigh = true
				runningHigh = c.High
			}
		}
		st.support[t] = support
		st.resistance[t] = resistance
		st.confirmed[t] = haveSupport && haveResistance
	}
}

func (s *SupportResistance) Evaluate(i int, state PreparedState, pos *Position) *Signal {
	st, ok := state.(*srState)
	if !ok || i >= len(st.closes) || !st.confirmed[i] {
		return nil
	}
	close := st.closes[i]
	support := st.support[i]
	resistance := st.resistance[i]

	if pos != nil {
		switch pos.Side {
		case "long":
			if close.LessThan(support) {
				return &Signal{Action: ActionExitLong}
			}
		case "short":
			if close.GreaterThan(resistance) {
				return &Signal{Action: ActionExitShort}
			}
		}
		return nil
	}

	if st.enableLong && close.GreaterThan(resistance) {
		return &Signal{Action: ActionEnterLong, StopPrice: support.Mul(st.stopLongK)}
	}
	if st.enableShort && close.LessThan(support) {
		return &Signal{Action: ActionEnterShort, StopPrice: resistance.Mul(st.stopShortK)}
	}
	return nil
}
