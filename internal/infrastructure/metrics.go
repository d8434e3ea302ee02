package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BacktestsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtests_started_total",
		Help: "Total number of backtest runs started",
	}, []string{"strategy"})

	BacktestsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtests_completed_total",
		Help: "Total number of backtest runs that finished without error",
	}, []string{"strategy"})

	BacktestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "backtest_duration_seconds",
		Help: "Wall-clock duration of backtest runs",
	}, []string{"strategy"})

	CandlesLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "candles_loaded_total",
		Help: "Total number of candles loaded for backtests",
	}, []string{"symbol"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_total",
		Help: "Total number of active WebSocket connections",
	})
)
