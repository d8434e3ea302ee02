package engine

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-liontechsolution/tradingtool/internal/model"
)

func TestWriteTradesCSV(t *testing.T) {
	trades := []model.Trade{
		{
			TradeNum:     1,
			Direction:    "long",
			EntryTime:    dayMs,
			EntryPrice:   dec(105),
			ExitTime:     dayMs * 3,
			ExitPrice:    dec(110),
			ExitReason:   ExitReasonSignal,
			EquityBefore: dec(10_000),
			EquityAfter:  dec(10_456),
			Pnl:          dec(456),
			PnlPct:       4.56,
			Fees:         dec(20.1),
		},
		{
			TradeNum:   2,
			Direction:  "short",
			EntryTime:  dayMs * 4,
			EntryPrice: dec(110),
			ExitTime:   dayMs * 5,
			ExitPrice:  dec(112),
			ExitReason: ExitReasonStopShort,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTradesCSV(&buf, trades))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "trade_num", rows[0][0])
	assert.Equal(t, "fees", rows[0][11])

	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "long", rows[1][1])
	assert.Equal(t, "105", rows[1][3])
	assert.Equal(t, ExitReasonSignal, rows[1][6])
	assert.Equal(t, "456", rows[1][9])

	assert.Equal(t, "short", rows[2][1])
	assert.Equal(t, ExitReasonStopShort, rows[2][6])
}

func TestWriteTradesCSV_EmptyLogStillWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTradesCSV(&buf, nil))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], 12)
}
