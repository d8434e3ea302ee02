package store

import (
	"sync"

	"github.com/open-liontechsolution/tradingtool/internal/model"
	"github.com/open-liontechsolution/tradingtool/internal/strategy"
)

// StoredRun is one finished backtest, kept for the lifetime of the process.
// The result is immutable after Put; only the id-assigning writer ever
// stores under a given id.
type StoredRun struct {
	ID             string                `json:"id"`
	Symbol         string                `json:"symbol"`
	Interval       string                `json:"interval"`
	Strategy       string                `json:"strategy"`
	Params         strategy.Params       `json:"params"`
	InitialCapital float64               `json:"initial_capital"`
	Result         *model.BacktestResult `json:"result"`
}

// ResultStore is an in-memory run store keyed by run id.
type ResultStore struct {
	mu   sync.RWMutex
	runs map[string]*StoredRun
}

func NewResultStore() *ResultStore {
	return &ResultStore{runs: make(map[string]*StoredRun)}
}

func (s *ResultStore) Put(run *StoredRun) {
	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()
}

func (s *ResultStore) Get(id string) (*StoredRun, bool) {
	s.mu.RLock()
	run, ok := s.runs[id]
	s.mu.RUnlock()
	return run, ok
}
