package engine

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/open-liontechsolution/tradingtool/internal/model"
)

// WriteTradesCSV writes the trade log as one row per trade, columns in the
// Trade field order.
func WriteTradesCSV(out io.Writer, trades []model.Trade) error {
	w := csv.NewWriter(out)
	defer w.Flush()

	header := []string{
		"trade_num",
		"direction",
		"entry_time",
		"entry_price",
		"exit_time",
		"exit_price",
		"exit_reason",
		"equity_before",
		"equity_after",
		"pnl",
		"pnl_pct",
		"fees",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, t := range trades {
		row := []string{
			strconv.Itoa(t.TradeNum),
			t.Direction,
			strconv.FormatInt(t.EntryTime, 10),
			t.EntryPrice.String(),
			strconv.FormatInt(t.ExitTime, 10),
			t.ExitPrice.String(),
			t.ExitReason,
			t.EquityBefore.String(),
			t.EquityAfter.String(),
			t.Pnl.String(),
			strconv.FormatFloat(t.PnlPct, 'f', 6, 64),
			t.Fees.String(),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}
