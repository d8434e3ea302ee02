package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/open-liontechsolution/tradingtool/internal/model"
	"github.com/open-liontechsolution/tradingtool/internal/strategy"
)

const (
	CapitalModeLeverage = "leverage"
	CapitalModeInvested = "invested_amount"
)

const (
	ExitReasonSignal    = "signal_exit"
	ExitReasonStopLong  = "stop_long"
	ExitReasonStopShort = "stop_short"
)

// RunConfig carries the per-run settings that are not strategy parameters.
type RunConfig struct {
	InitialCapital decimal.Decimal
	CapitalMode    string          // leverage or invested_amount
	Leverage       float64         // used in leverage mode, 0 means 1x
	InvestedAmount decimal.Decimal // used in invested_amount mode
	IntervalMs     int64           // candle duration, for annualized metrics
}

// Runner executes backtests. It holds no per-run state, so one Runner can
// serve concurrent runs.
type Runner struct {
	logger *zap.Logger
}

func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger}
}

// run is the mutable state of one simulation pass.
type run struct {
	cfg        RunConfig
	execMode   string
	costFactor decimal.Decimal

	equity   decimal.Decimal // realized cash equity
	pos      *strategy.Position
	entryFee decimal.Decimal // fee paid on the open position's entry fill

	pendingEntry *strategy.Signal // entry deferred to the next open
	pendingExit  bool             // signal exit deferred to the next open

	tradeLog    []model.Trade
	equityCurve []decimal.Decimal
	inMarket    int
	liquidated  bool
}

// Run replays candles against the strategy once, in order, applying the
// fixed per-candle priority: pending fills at the open, intrabar stop
// check, close-based exit, close-based entry, then mark-to-market. The
// candle series must be ascending by open time; params must already have
// passed ValidateParams for this strategy.
func (r *Runner) Run(candles []model.Candle, strat strategy.Strategy, params strategy.Params, cfg RunConfig) (*model.BacktestResult, error) {
	state, err := strat.Prepare(params, candles)
	if err != nil {
		return nil, err
	}
	if cfg.IntervalMs <= 0 {
		cfg.IntervalMs = model.IntervalMs("1d")
	}

	s := &run{
		cfg:         cfg,
		execMode:    params.Str(strategy.ParamExecutionMode),
		costFactor:  decimal.NewFromFloat(params.Float(strategy.ParamCostBps) / 10_000.0),
		equity:      cfg.InitialCapital,
		tradeLog:    []model.Trade{},
		equityCurve: make([]decimal.Decimal, 0, len(candles)),
	}
	if s.execMode == "" {
		s.execMode = strategy.ExecOpenNext
	}

	for i, c := range candles {
		closedHere := s.step(i, c, strat, state)

		if s.liquidated {
			// The liquidation candle still gets its (clamped) equity point;
			// nothing after it is processed.
			s.equityCurve = append(s.equityCurve, s.equity)
			s.inMarket++
			break
		}

		if s.pos != nil {
			s.equityCurve = append(s.equityCurve, s.markToMarket(c.Close))
			s.inMarket++
		} else {
			s.equityCurve = append(s.equityCurve, s.equity)
			if closedHere {
				s.inMarket++
			}
		}
	}

	drawdown := drawdownCurve(s.equityCurve)
	result := &model.BacktestResult{
		EquityCurve:   s.equityCurve,
		DrawdownCurve: drawdown,
		TradeLog:      s.tradeLog,
		Liquidated:    s.liquidated,
		Summary:       Summarize(s.tradeLog, s.equityCurve, drawdown, cfg.InitialCapital, cfg.IntervalMs, s.inMarket),
	}

	if r.logger != nil {
		r.logger.Debug("backtest finished",
			zap.String("strategy", strat.Name()),
			zap.Int("candles", len(candles)),
			zap.Int("trades", len(s.tradeLog)),
			zap.Bool("liquidated", s.liquidated),
		)
	}
	return result, nil
}

// step applies the event-priority order for one candle and reports whether
// a position was closed during it.
func (s *run) step(i int, c model.Candle, strat strategy.Strategy, state strategy.PreparedState) bool {
	closed := false

	// Scheduled fills from the previous candle execute at this open.
	if s.pendingExit && s.pos != nil {
		s.closePosition(c.Open, c.OpenTime, ExitReasonSignal)
		closed = true
	}
	s.pendingExit = false
	if sig := s.pendingEntry; sig != nil {
		s.pendingEntry = nil
		if s.pos == nil && !s.liquidated {
			s.openPosition(sig, c.Open, i, c.OpenTime)
		}
	}
	if s.liquidated {
		return closed
	}

	// Intrabar stop check, ahead of any close-based signal for the same
	// candle. A gap through the stop fills at the open; the market never
	// grants a better price than it traded at.
	if s.pos != nil {
		switch s.pos.Side {
		case "long":
			if c.Low.LessThanOrEqual(s.pos.StopPrice) {
				exec := s.pos.StopPrice
				if c.Open.LessThan(exec) {
					exec = c.Open
				}
				s.closePosition(exec, c.OpenTime, ExitReasonStopLong)
				closed = true
			}
		case "short":
			if c.High.GreaterThanOrEqual(s.pos.StopPrice) {
				exec := s.pos.StopPrice
				if c.Open.GreaterThan(exec) {
					exec = c.Open
				}
				s.closePosition(exec, c.OpenTime, ExitReasonStopShort)
				closed = true
			}
		}
	}
	if s.liquidated {
		return closed
	}

	// Close-based exit signal for a position that survived the stop check.
	if s.pos != nil {
		if sig := strat.Evaluate(i, state, s.pos); sig != nil && exitMatches(sig.Action, s.pos.Side) {
			if s.execMode == strategy.ExecCloseCurrent {
				s.closePosition(c.Close, c.OpenTime, ExitReasonSignal)
				closed = true
			} else {
				s.pendingExit = true
			}
		}
	}
	if s.liquidated {
		return closed
	}

	// Entry signal, only while flat.
	if s.pos == nil {
		if sig := strat.Evaluate(i, state, nil); sig != nil {
			switch sig.Action {
			case strategy.ActionEnterLong, strategy.ActionEnterShort:
				if s.execMode == strategy.ExecCloseCurrent {
					s.openPosition(sig, c.Close, i, c.OpenTime)
				} else {
					s.pendingEntry = sig
				}
			}
		}
	}
	return closed
}

func exitMatches(a strategy.Action, side string) bool {
	return (a == strategy.ActionExitLong && side == "long") ||
		(a == strategy.ActionExitShort && side == "short")
}

func (s *run) openPosition(sig *strategy.Signal, price decimal.Decimal, index int, openTime int64) {
	if price.Sign() <= 0 {
		return
	}
	side := "long"
	if sig.Action == strategy.ActionEnterShort {
		side = "short"
	}

	notional := s.equity
	switch s.cfg.CapitalMode {
	case CapitalModeInvested:
		notional = s.cfg.InvestedAmount
	case CapitalModeLeverage:
		if s.cfg.Leverage > 0 {
			notional = s.equity.Mul(decimal.NewFromFloat(s.cfg.Leverage))
		}
	}

	fee := notional.Mul(s.costFactor)
	entryEquity := s.equity
	s.equity = s.equity.Sub(fee)
	s.entryFee = fee
	s.pos = &strategy.Position{
		Side:        side,
		EntryIndex:  index,
		EntryTime:   openTime,
		EntryPrice:  price,
		EntryEquity: entryEquity,
		StopPrice:   sig.StopPrice,
		Quantity:    notional.Div(price),
	}

	// A fill whose cost alone exhausts equity terminates the run.
	if s.equity.Sign() <= 0 {
		reason := ExitReasonStopLong
		if side == "short" {
			reason = ExitReasonStopShort
		}
		s.closePosition(price, openTime, reason)
	}
}

func (s *run) closePosition(exec decimal.Decimal, exitTime int64, reason string) {
	pos := s.pos
	if pos == nil {
		// Unreachable given correct signal generation; closing a phantom
		// position is an internal defect, not a market condition.
		panic(fmt.Sprintf("backtest: close with no open position (reason=%s)", reason))
	}

	var gross decimal.Decimal
	if pos.Side == "long" {
		gross = pos.Quantity.Mul(exec.Sub(pos.EntryPrice))
	} else {
		gross = pos.Quantity.Mul(pos.EntryPrice.Sub(exec))
	}
	exitFee := pos.Quantity.Mul(exec).Abs().Mul(s.costFactor)
	fees := s.entryFee.Add(exitFee)
	pnl := gross.Sub(fees)

	// The entry fee already left the cash balance at the entry fill. There
	// is no margin-debt modeling: equity is clamped at zero and the run is
	// flagged liquidated when a close exhausts it.
	s.equity = s.equity.Add(gross).Sub(exitFee)
	if s.equity.Sign() <= 0 {
		s.equity = decimal.Zero
		s.liquidated = true
	}

	pnlPct := 0.0
	if pos.EntryEquity.Sign() > 0 {
		pnlPct, _ = pnl.Div(pos.EntryEquity).Mul(decimal.NewFromInt(100)).Float64()
	}

	s.tradeLog = append(s.tradeLog, model.Trade{
		TradeNum:     len(s.tradeLog) + 1,
		Direction:    pos.Side,
		EntryTime:    pos.EntryTime,
		EntryPrice:   pos.EntryPrice,
		ExitTime:     exitTime,
		ExitPrice:    exec,
		ExitReason:   reason,
		EquityBefore: pos.EntryEquity,
		EquityAfter:  s.equity,
		Pnl:          pnl,
		PnlPct:       pnlPct,
		Fees:         fees,
	})

	s.pos = nil
	s.entryFee = decimal.Zero
}

func (s *run) markToMarket(price decimal.Decimal) decimal.Decimal {
	if s.pos == nil {
		return s.equity
	}
	if s.pos.Side == "long" {
		return s.equity.Add(s.pos.Quantity.Mul(price.Sub(s.pos.EntryPrice)))
	}
	return s.equity.Add(s.pos.Quantity.Mul(s.pos.EntryPrice.Sub(price)))
}

// drawdownCurve derives per-candle drawdown percentages from the running
// equity peak.
func drawdownCurve(equity []decimal.Decimal) []float64 {
	out := make([]float64, len(equity))
	if len(equity) == 0 {
		return out
	}
	peak := equity[0]
	for i, eq := range equity {
		if eq.GreaterThan(peak) {
			peak = eq
		}
		if peak.Sign() > 0 {
			dd, _ := peak.Sub(eq).Div(peak).Mul(decimal.NewFromInt(100)).Float64()
			out[i] = dd
		}
	}
	return out
}
