// Package snapshot holds the latest known-good view of the remote trading
// process. Each category is replaced wholesale on success and left untouched
// on failure.
package snapshot

import (
	"slices"
	"sync"
	"time"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
)

// Store is the in-memory snapshot. Writers are serialized; readers get a
// deep copy.
type Store struct {
	mu     sync.RWMutex
	snap   domain.Snapshot
	closed bool
}

// NewStore returns a store in the loading state with every category empty.
func NewStore() *Store {
	return &Store{
		snap: domain.Snapshot{
			State:          domain.BotStateLoading,
			CategoryErrors: make(map[domain.Category]string),
		},
	}
}

// ApplyStatus records the result of a status fetch. A failure puts the
// snapshot into the error state with the connectivity message.
func (s *Store) ApplyStatus(st domain.Status, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err != nil {
		s.snap.CategoryErrors[domain.CategoryStatus] = err.Error()
		s.snap.State = domain.BotStateError
		s.snap.LastError = domain.ConnectivityError
		return
	}
	s.snap.State = st.State
	s.snap.LastError = ""
	delete(s.snap.CategoryErrors, domain.CategoryStatus)
	s.stamp()
}

// ApplyOpenTrades records the result of an open-trades fetch.
func (s *Store) ApplyOpenTrades(trades []domain.OpenTrade, err error) {
	s.apply(domain.CategoryOpenTrades, err, func(snap *domain.Snapshot) {
		snap.OpenTrades = slices.Clone(trades)
	})
}

// ApplyBalance records the result of a balance fetch.
func (s *Store) ApplyBalance(b domain.Balance, err error) {
	s.apply(domain.CategoryBalance, err, func(snap *domain.Snapshot) {
		snap.Balance = &b
	})
}

// ApplyTradeHistory records the result of a trade-history fetch.
func (s *Store) ApplyTradeHistory(trades []domain.ClosedTrade, err error) {
	s.apply(domain.CategoryTradeHistory, err, func(snap *domain.Snapshot) {
		snap.TradeHistory = slices.Clone(trades)
	})
}

// ApplyPerformance records the result of a profit-summary fetch.
func (s *Store) ApplyPerformance(p domain.PerformanceSummary, err error) {
	s.apply(domain.CategoryPerformance, err, func(snap *domain.Snapshot) {
		snap.Performance = clonePerformance(&p)
	})
}

// ApplyLogs records the result of a logs fetch.
func (s *Store) ApplyLogs(lines []domain.LogLine, err error) {
	s.apply(domain.CategoryLogs, err, func(snap *domain.Snapshot) {
		snap.Logs = slices.Clone(lines)
	})
}

// Touch stamps the end of a poll cycle.
func (s *Store) Touch(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.snap.LastUpdate = &t
}

// Read returns a deep copy of the current snapshot.
func (s *Store) Read() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.snap
	out.OpenTrades = slices.Clone(s.snap.OpenTrades)
	out.TradeHistory = slices.Clone(s.snap.TradeHistory)
	out.Logs = slices.Clone(s.snap.Logs)
	if s.snap.Balance != nil {
		b := *s.snap.Balance
		out.Balance = &b
	}
	out.Performance = clonePerformance(s.snap.Performance)
	if s.snap.LastUpdate != nil {
		t := *s.snap.LastUpdate
		out.LastUpdate = &t
	}
	out.CategoryErrors = make(map[domain.Category]string, len(s.snap.CategoryErrors))
	for k, v := range s.snap.CategoryErrors {
		out.CategoryErrors[k] = v
	}
	return out
}

// OpenTradeIDs returns the IDs of the open trades currently held, in order.
func (s *Store) OpenTradeIDs() []domain.TradeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]domain.TradeID, 0, len(s.snap.OpenTrades))
	for _, t := range s.snap.OpenTrades {
		ids = append(ids, t.TradeID)
	}
	return ids
}

// Close makes every later apply a no-op. Reads keep working.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Store) apply(cat domain.Category, err error, set func(*domain.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err != nil {
		s.snap.CategoryErrors[cat] = err.Error()
		return
	}
	set(&s.snap)
	delete(s.snap.CategoryErrors, cat)
	s.stamp()
}

func (s *Store) stamp() {
	now := time.Now()
	s.snap.LastUpdate = &now
	s.snap.Version++
}

func clonePerformance(p *domain.PerformanceSummary) *domain.PerformanceSummary {
	if p == nil {
		return nil
	}
	out := *p
	if p.WinningTrades != nil {
		w := *p.WinningTrades
		out.WinningTrades = &w
	}
	if p.LosingTrades != nil {
		l := *p.LosingTrades
		out.LosingTrades = &l
	}
	return &out
}
