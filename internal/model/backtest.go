package model

import (
	"github.com/shopspring/decimal"
)

// Trade is a closed-position record. Created exactly once per position
// closure and appended to the trade log in chronological order.
type Trade struct {
	TradeNum     int             `json:"trade_num"`
	Direction    string          `json:"direction"` // "long" or "short"
	EntryTime    int64           `json:"entry_time"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	ExitTime     int64           `json:"exit_time"`
	ExitPrice    decimal.Decimal `json:"exit_price"`
	ExitReason   string          `json:"exit_reason"` // signal_exit, stop_long, stop_short
	EquityBefore decimal.Decimal `json:"equity_before"`
	EquityAfter  decimal.Decimal `json:"equity_after"`
	Pnl          decimal.Decimal `json:"pnl"`
	PnlPct       float64         `json:"pnl_pct"`
	Fees         decimal.Decimal `json:"fees"`
}

// Summary holds the performance statistics computed from a finished run.
// Ratios with a zero denominator (no losing trades, zero return variance)
// are nil and marshal to JSON null rather than Inf or NaN.
type Summary struct {
	NetProfit       decimal.Decimal `json:"net_profit"`
	NetProfitPct    float64         `json:"net_profit_pct"`
	CagrPct         float64         `json:"cagr_pct"`
	MaxDrawdownPct  float64         `json:"max_drawdown_pct"`
	Sharpe          *float64        `json:"sharpe"`
	Sortino         *float64        `json:"sortino"`
	NTrades         int             `json:"n_trades"`
	WinRatePct      float64         `json:"win_rate_pct"`
	ProfitFactor    *float64        `json:"profit_factor"`
	Expectancy      float64         `json:"expectancy"`
	AvgWin          float64         `json:"avg_win"`
	AvgLoss         float64         `json:"avg_loss"`
	PayoffRatio     *float64        `json:"payoff_ratio"`
	TimeInMarketPct float64         `json:"time_in_market_pct"`
}

// BacktestResult is the immutable outcome of a single run. The equity curve
// has one mark-to-market point per processed candle; on liquidation both
// curves end at the liquidation candle rather than the requested range.
type BacktestResult struct {
	EquityCurve   []decimal.Decimal `json:"equity_curve"`
	DrawdownCurve []float64         `json:"drawdown_curve"`
	TradeLog      []Trade           `json:"trade_log"`
	Summary       Summary           `json:"summary"`
	Liquidated    bool              `json:"liquidated"`
}
