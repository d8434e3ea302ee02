package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/open-liontechsolution/tradingtool/internal/engine"
	"github.com/open-liontechsolution/tradingtool/internal/infrastructure"
	"github.com/open-liontechsolution/tradingtool/internal/model"
	"github.com/open-liontechsolution/tradingtool/internal/store"
	"github.com/open-liontechsolution/tradingtool/internal/strategy"
)

type Handler struct {
	db       *pgxpool.Pool
	logger   *zap.Logger
	registry *strategy.Registry
	loader   *engine.DataLoader
	pool     *engine.RunPool
	results  *store.ResultStore
	js       nats.JetStreamContext
}

func NewHandler(
	db *pgxpool.Pool,
	logger *zap.Logger,
	registry *strategy.Registry,
	loader *engine.DataLoader,
	pool *engine.RunPool,
	results *store.ResultStore,
	js nats.JetStreamContext,
) *Handler {
	return &Handler{
		db:       db,
		logger:   logger,
		registry: registry,
		loader:   loader,
		pool:     pool,
		results:  results,
		js:       js,
	}
}

// Auth Handlers

func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	var userID int64
	err = h.db.QueryRow(c.Request.Context(),
		"INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id",
		req.Email, string(hash)).Scan(&userID)

	if err != nil {
		h.logger.Error("failed to register user", zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "user created", "id": userID})
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var userID int64
	var hash string
	err := h.db.QueryRow(c.Request.Context(),
		"SELECT id, password_hash FROM users WHERE email = $1", req.Email).Scan(&userID, &hash)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, err := GenerateToken(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Data Handlers

func (h *Handler) GetHistoryKLines(c *gin.Context) {
	symbol := normalizeSymbol(c.Param("symbol"))
	interval := c.DefaultQuery("interval", "1d")
	startMs, _ := strconv.ParseInt(c.Query("start_time"), 10, 64)
	endMs, err := strconv.ParseInt(c.Query("end_time"), 10, 64)
	if err != nil || endMs <= startMs {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_time and end_time (ms) are required, end_time > start_time"})
		return
	}

	candles, err := h.loader.LoadCandles(c.Request.Context(), symbol, interval, startMs, endMs)
	if err != nil {
		h.logger.Error("failed to query klines", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, candles)
}

// Strategy / Backtest Handlers

func (h *Handler) GetStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": h.registry.List()})
}

type backtestRequest struct {
	Symbol         string         `json:"symbol" binding:"required"`
	Interval       string         `json:"interval" binding:"required"`
	StartTime      int64          `json:"start_time" binding:"required"`
	EndTime        int64          `json:"end_time" binding:"required"`
	Strategy       string         `json:"strategy" binding:"required"`
	Params         map[string]any `json:"params"`
	InitialCapital float64        `json:"initial_capital"`
	CapitalMode    string         `json:"capital_mode"`
	Leverage       float64        `json:"leverage"`
	InvestedAmount float64        `json:"invested_amount"`
}

func (h *Handler) RunBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.EndTime <= req.StartTime {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be > start_time"})
		return
	}
	if req.InitialCapital == 0 {
		req.InitialCapital = 10_000
	}
	if req.InitialCapital <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "initial_capital must be positive"})
		return
	}
	intervalMs := model.IntervalMs(req.Interval)
	if intervalMs == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown interval %q", req.Interval)})
		return
	}
	switch req.CapitalMode {
	case "", engine.CapitalModeLeverage, engine.CapitalModeInvested:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "capital_mode must be leverage or invested_amount"})
		return
	}

	strat, err := h.registry.Get(req.Strategy)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	params, err := strategy.ValidateParams(strat.Parameters(), req.Params)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	symbol := normalizeSymbol(req.Symbol)
	candles, err := h.loader.LoadCandles(c.Request.Context(), symbol, req.Interval, req.StartTime, req.EndTime)
	if err != nil {
		h.logger.Error("failed to fetch history for backtest", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch data"})
		return
	}
	infrastructure.CandlesLoaded.WithLabelValues(symbol).Add(float64(len(candles)))

	job := &engine.Job{
		ID:       uuid.NewString(),
		Candles:  candles,
		Strategy: strat,
		Params:   params,
		Config: engine.RunConfig{
			InitialCapital: decimal.NewFromFloat(req.InitialCapital),
			CapitalMode:    req.CapitalMode,
			Leverage:       req.Leverage,
			InvestedAmount: decimal.NewFromFloat(req.InvestedAmount),
			IntervalMs:     intervalMs,
		},
		Result: make(chan engine.JobResult, 1),
	}

	if err := h.pool.Submit(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backtest queue unavailable"})
		return
	}

	var jobRes engine.JobResult
	select {
	case jobRes = <-job.Result:
	case <-c.Request.Context().Done():
		// Abandoned run: the worker finishes and its result is discarded.
		return
	}
	if jobRes.Err != nil {
		var cfgErr *strategy.ConfigError
		if errors.As(jobRes.Err, &cfgErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": jobRes.Err.Error()})
			return
		}
		h.logger.Error("backtest failed", zap.Error(jobRes.Err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "backtest failed"})
		return
	}

	run := &store.StoredRun{
		ID:             job.ID,
		Symbol:         symbol,
		Interval:       req.Interval,
		Strategy:       req.Strategy,
		Params:         params,
		InitialCapital: req.InitialCapital,
		Result:         jobRes.Result,
	}
	h.results.Put(run)
	h.publishCompletion(run)

	c.JSON(http.StatusOK, gin.H{
		"id":         job.ID,
		"summary":    jobRes.Result.Summary,
		"liquidated": jobRes.Result.Liquidated,
		"n_trades":   len(jobRes.Result.TradeLog),
	})
}

func (h *Handler) publishCompletion(run *store.StoredRun) {
	if h.js == nil {
		return
	}
	event := gin.H{
		"id":         run.ID,
		"symbol":     run.Symbol,
		"strategy":   run.Strategy,
		"summary":    run.Result.Summary,
		"liquidated": run.Result.Liquidated,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	subject := infrastructure.SubjectBacktestCompleted + "." + run.ID
	if _, err := h.js.Publish(subject, data); err != nil {
		h.logger.Warn("failed to publish completion event", zap.String("id", run.ID), zap.Error(err))
	}
}

func (h *Handler) GetBacktest(c *gin.Context) {
	run, ok := h.results.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "backtest not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handler) ExportBacktest(c *gin.Context) {
	run, ok := h.results.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "backtest not found"})
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "json":
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "backtest_"+run.ID+".json"))
		c.JSON(http.StatusOK, gin.H{
			"equity_curve":   run.Result.EquityCurve,
			"drawdown_curve": run.Result.DrawdownCurve,
			"trade_log":      run.Result.TradeLog,
			"summary":        run.Result.Summary,
			"liquidated":     run.Result.Liquidated,
		})
	case "csv":
		var buf bytes.Buffer
		if err := engine.WriteTradesCSV(&buf, run.Result.TradeLog); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "backtest_"+run.ID+".csv"))
		c.Data(http.StatusOK, "text/csv", buf.Bytes())
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json or csv"})
	}
}

// normalizeSymbol unifies exchange symbol formats into a standard one (e.g. BTCUSDT)
func normalizeSymbol(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}
