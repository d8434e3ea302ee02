package engine

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/open-liontechsolution/tradingtool/internal/model"
)

const msPerYear = 365.25 * 24 * 3600 * 1000

// Summarize computes the performance statistics for a finished run. It is a
// pure function of its inputs. Ratios whose denominator is degenerate (zero
// return variance, zero gross losses) come back nil, never Inf or NaN.
func Summarize(
	trades []model.Trade,
	equity []decimal.Decimal,
	drawdown []float64,
	initialCapital decimal.Decimal,
	intervalMs int64,
	candlesInMarket int,
) model.Summary {
	var sum model.Summary
	sum.NetProfit = decimal.Zero
	if len(equity) == 0 || initialCapital.Sign() <= 0 {
		return sum
	}

	final := equity[len(equity)-1]
	sum.NetProfit = final.Sub(initialCapital)
	sum.NetProfitPct, _ = sum.NetProfit.Div(initialCapital).Mul(decimal.NewFromInt(100)).Float64()

	// CAGR over the wall-clock span implied by candle count and interval.
	candlesPerYear := msPerYear / float64(intervalMs)
	years := float64(len(equity)) / candlesPerYear
	if years > 0 && final.Sign() > 0 {
		growth, _ := final.Div(initialCapital).Float64()
		sum.CagrPct = (math.Pow(growth, 1.0/years) - 1) * 100
	}

	for _, dd := range drawdown {
		if dd > sum.MaxDrawdownPct {
			sum.MaxDrawdownPct = dd
		}
	}

	returns := perCandleReturns(equity)
	if len(returns) > 1 {
		mean, std := meanStd(returns)
		if std > 0 {
			sum.Sharpe = fptr(mean / std * math.Sqrt(candlesPerYear))
		}
		var downside []float64
		for _, r := range returns {
			if r < 0 {
				downside = append(downside, r)
			}
		}
		if len(downside) > 1 {
			if _, dstd := meanStd(downside); dstd > 0 {
				sum.Sortino = fptr(mean / dstd * math.Sqrt(candlesPerYear))
			}
		}
	}

	sum.NTrades = len(trades)
	if len(equity) > 0 {
		sum.TimeInMarketPct = float64(candlesInMarket) / float64(len(equity)) * 100
	}
	if len(trades) == 0 {
		return sum
	}

	var wins, losses int
	var grossWin, grossLoss, totalPnl float64
	for _, t := range trades {
		pnl, _ := t.Pnl.Float64()
		totalPnl += pnl
		if pnl > 0 {
			wins++
			grossWin += pnl
		} else {
			losses++
			grossLoss += -pnl
		}
	}

	sum.WinRatePct = float64(wins) / float64(len(trades)) * 100
	sum.Expectancy = totalPnl / float64(len(trades))
	if wins > 0 {
		sum.AvgWin = grossWin / float64(wins)
	}
	if losses > 0 {
		sum.AvgLoss = -grossLoss / float64(losses)
	}
	if grossLoss > 0 {
		sum.ProfitFactor = fptr(grossWin / grossLoss)
	}
	if sum.AvgLoss != 0 {
		sum.PayoffRatio = fptr(math.Abs(sum.AvgWin / sum.AvgLoss))
	}
	return sum
}

func perCandleReturns(equity []decimal.Decimal) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev.Sign() == 0 {
			out = append(out, 0)
			continue
		}
		r, _ := equity[i].Sub(prev).Div(prev).Float64()
		out = append(out, r)
	}
	return out
}

// meanStd returns the mean and population standard deviation.
func meanStd(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

func fptr(v float64) *float64 { return &v }
