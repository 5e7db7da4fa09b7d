package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tradeconsole/internal/analytics"
	"github.com/alanyoungcy/tradeconsole/internal/domain"
)

const maxLogTail = 1000

// SnapshotReader returns the current snapshot.
type SnapshotReader interface {
	Read() domain.Snapshot
}

// SnapshotHandler serves read-only views over the snapshot store.
type SnapshotHandler struct {
	store        SnapshotReader
	equityWindow int
	logger       *slog.Logger
}

// NewSnapshotHandler creates a SnapshotHandler. equityWindow bounds the
// equity curve; zero means the analytics default.
func NewSnapshotHandler(store SnapshotReader, equityWindow int, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{store: store, equityWindow: equityWindow, logger: logger}
}

type snapshotResponse struct {
	State          domain.BotState            `json:"state"`
	LastUpdate     *time.Time                 `json:"last_update"`
	LastError      string                     `json:"last_error,omitempty"`
	Balance        *domain.Balance            `json:"balance"`
	OpenTrades     []domain.OpenTrade         `json:"open_trades"`
	CategoryErrors map[domain.Category]string `json:"category_errors,omitempty"`
	Version        uint64                     `json:"version"`
}

// GetSnapshot returns bot state, balance and open trades.
// GET /api/snapshot
func (h *SnapshotHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Read()
	open := snap.OpenTrades
	if open == nil {
		open = []domain.OpenTrade{}
	}
	writeJSON(w, http.StatusOK, snapshotResponse{
		State:          snap.State,
		LastUpdate:     snap.LastUpdate,
		LastError:      snap.LastError,
		Balance:        snap.Balance,
		OpenTrades:     open,
		CategoryErrors: snap.CategoryErrors,
		Version:        snap.Version,
	})
}

// GetPerformance returns derived metrics including the equity curve.
// GET /api/performance
func (h *SnapshotHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Read()
	writeJSON(w, http.StatusOK, analytics.Compute(snap.Performance, snap.TradeHistory, h.equityWindow))
}

// ListTrades returns the closed-trade history, optionally filtered.
// GET /api/trades?filter=all|wins|losses
func (h *SnapshotHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	filter, err := analytics.ParseTradeFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	trades := analytics.FilterTrades(h.store.Read().TradeHistory, filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"filter": filter,
		"count":  len(trades),
		"trades": trades,
	})
}

// ListLogs returns the newest log lines first with inferred severities.
// GET /api/logs?limit=N
func (h *SnapshotHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", analytics.DefaultLogTail, maxLogTail)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lines": analytics.TailLogs(h.store.Read().Logs, limit),
	})
}
