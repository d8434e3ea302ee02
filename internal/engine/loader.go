package engine

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/open-liontechsolution/tradingtool/internal/model"
)

// DataLoader reads historical candles from the klines table the download
// pipeline maintains. The engine only consumes what it is handed; ordering
// and gap policy are the data layer's concern.
type DataLoader struct {
	pool *pgxpool.Pool
}

func NewDataLoader(pool *pgxpool.Pool) *DataLoader {
	return &DataLoader{pool: pool}
}

func (l *DataLoader) LoadCandles(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]model.Candle, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT symbol, interval, open_time, open, high, low, close, volume
		FROM klines
		WHERE symbol = $1 AND interval = $2 AND open_time >= $3 AND open_time < $4
		ORDER BY open_time ASC`,
		symbol, interval, startMs, endMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		if err := rows.Scan(&c.Symbol, &c.Interval, &c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}
