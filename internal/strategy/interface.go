package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/open-liontechsolution/tradingtool/internal/model"
)

type Action string

const (
	ActionEnterLong  Action = "enter_long"
	ActionEnterShort Action = "enter_short"
	ActionExitLong   Action = "exit_long"
	ActionExitShort  Action = "exit_short"
)

// Signal is a strategy decision for one candle. Strategies emit at most one
// signal per candle and never emit stops; the protective stop carried on an
// entry signal is tracked by the engine's ledger from then on.
type Signal struct {
	Action    Action
	StopPrice decimal.Decimal // only meaningful on entries
}

// Position is the single open position, owned and mutated only by the
// simulation loop. Strategies receive it read-only during Evaluate.
type Position struct {
	Side        string // "long" or "short"
	EntryIndex  int
	EntryTime   int64
	EntryPrice  decimal.Decimal
	EntryEquity decimal.Decimal
	StopPrice   decimal.Decimal
	Quantity    decimal.Decimal
}

// PreparedState holds everything a strategy precomputed over the full candle
// series. Each derived value at index i uses only candles [0..i]; the full
// precomputation is an optimization, not permission to look ahead.
type PreparedState interface {
	// Warmup returns the first index at which the strategy may signal.
	Warmup() int
}

// Strategy is the tradable rule-set contract. Implementations are stateless
// across runs: all per-run state lives in the PreparedState returned by
// Prepare, so one instance can serve concurrent runs.
type Strategy interface {
	Name() string
	Description() string
	Parameters() []ParameterDef
	Prepare(params Params, candles []model.Candle) (PreparedState, error)
	Evaluate(i int, state PreparedState, pos *Position) *Signal
}

// Parameter names shared by every built-in strategy. The engine reads these
// from the validated Params to resolve fills and costs.
const (
	ParamExecutionMode = "execution_mode"
	ParamCostBps       = "cost_bps"
	ParamEnableLong    = "enable_long"
	ParamEnableShort   = "enable_short"
	ParamStopPct       = "stop_pct"
)

const (
	ExecOpenNext     = "open_next"
	ExecCloseCurrent = "close_current"
)

func commonParams() []ParameterDef {
	return []ParameterDef{
		{Name: ParamExecutionMode, Kind: KindEnum, Default: ExecOpenNext,
			Enum:        []string{ExecOpenNext, ExecCloseCurrent},
			Description: "Fill timing for signal-driven trades"},
		{Name: ParamEnableLong, Kind: KindBool, Default: true,
			Description: "Enable long entries"},
		{Name: ParamEnableShort, Kind: KindBool, Default: true,
			Description: "Enable short entries"},
		{Name: ParamCostBps, Kind: KindFloat, Default: 10.0, Min: fptr(0), Max: fptr(100),
			Description: "Per-fill transaction cost in basis points of notional"},
	}
}
