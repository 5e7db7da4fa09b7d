package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"gotest.tools/v3/assert"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
	"github.com/alanyoungcy/tradeconsole/internal/service"
	"github.com/alanyoungcy/tradeconsole/internal/snapshot"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// stubAPI implements the mutating half of domain.BotAPI; reads are unused.
type stubAPI struct {
	domain.BotAPI
	exitErr map[domain.TradeID]error
	exited  []domain.TradeID
	stopErr error
}

func (s *stubAPI) Start(ctx context.Context) error { return nil }
func (s *stubAPI) Stop(ctx context.Context) error  { return s.stopErr }
func (s *stubAPI) ForceExit(ctx context.Context, id domain.TradeID) error {
	if err := s.exitErr[id]; err != nil {
		return err
	}
	s.exited = append(s.exited, id)
	return nil
}

type noopRefresher struct{ ran bool }

func (n *noopRefresher) RequestRefresh(ctx context.Context) {}
func (n *noopRefresher) Refresh(ctx context.Context) bool  { return n.ran }

func newControl(api *stubAPI, store *snapshot.Store) *ControlHandler {
	ctrl := service.NewController(api, store, &noopRefresher{}, service.ContextConfirmer{}, testLogger)
	return NewControlHandler(ctrl, &noopRefresher{ran: true}, testLogger)
}

func do(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestControl_ForceExitNeedsConfirm(t *testing.T) {
	api := &stubAPI{}
	h := newControl(api, snapshot.NewStore())

	rec := do(h.ForceExit, "POST", "/api/control/forceexit", `{"tradeid": 7}`)
	assert.Equal(t, rec.Code, http.StatusConflict)
	assert.Equal(t, len(api.exited), 0)

	rec = do(h.ForceExit, "POST", "/api/control/forceexit", `{"tradeid": 7, "confirm": true}`)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.DeepEqual(t, api.exited, []domain.TradeID{7})
}

func TestControl_ForceExitBadRequest(t *testing.T) {
	h := newControl(&stubAPI{}, snapshot.NewStore())

	assert.Equal(t, do(h.ForceExit, "POST", "/", `{"confirm": true}`).Code, http.StatusBadRequest)
	assert.Equal(t, do(h.ForceExit, "POST", "/", `{not json`).Code, http.StatusBadRequest)
}

func TestControl_ForceExitRemoteFailure(t *testing.T) {
	api := &stubAPI{exitErr: map[domain.TradeID]error{3: errors.New("no open trade")}}
	h := newControl(api, snapshot.NewStore())

	rec := do(h.ForceExit, "POST", "/", `{"tradeid": 3, "confirm": true}`)
	assert.Equal(t, rec.Code, http.StatusBadGateway)
	assert.Equal(t, decode(t, rec)["error"], "Failed to force exit: no open trade")
}

func TestControl_EmergencyStopPartial(t *testing.T) {
	store := snapshot.NewStore()
	store.ApplyOpenTrades([]domain.OpenTrade{{TradeID: 1}, {TradeID: 2}, {TradeID: 3}}, nil)
	api := &stubAPI{exitErr: map[domain.TradeID]error{2: errors.New("exchange down")}}
	h := newControl(api, store)

	rec := do(h.EmergencyStop, "POST", "/", `{"confirm": true}`)
	assert.Equal(t, rec.Code, http.StatusBadGateway)

	body := decode(t, rec)
	assert.Equal(t, body["error"], "Emergency stop failed: exchange down")
	assert.Equal(t, body["partial"], true)
	assert.Equal(t, body["failed"], 2.0)
	assert.DeepEqual(t, body["exited"], []any{1.0})
	assert.DeepEqual(t, body["remaining"], []any{2.0, 3.0})
}

func TestControl_EmergencyStopSuccess(t *testing.T) {
	store := snapshot.NewStore()
	store.ApplyOpenTrades([]domain.OpenTrade{{TradeID: 5}}, nil)
	h := newControl(&stubAPI{}, store)

	rec := do(h.EmergencyStop, "POST", "/", `{"confirm": true}`)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, decode(t, rec)["message"], service.MsgEmergencyStopDone)
}

func TestControl_Refresh(t *testing.T) {
	h := NewControlHandler(nil, &noopRefresher{ran: false}, testLogger)
	rec := do(h.Refresh, "POST", "/api/refresh", "")
	assert.Equal(t, rec.Code, http.StatusAccepted)
	assert.Equal(t, decode(t, rec)["refreshed"], false)
}

func newSnapshotStore() *snapshot.Store {
	w, l := 7, 3
	s := snapshot.NewStore()
	s.ApplyStatus(domain.Status{State: domain.BotStateRunning}, nil)
	s.ApplyBalance(domain.Balance{Total: decimal.NewFromInt(100)}, nil)
	s.ApplyPerformance(domain.PerformanceSummary{WinningTrades: &w, LosingTrades: &l, BestPair: "BTC/USDT"}, nil)
	s.ApplyTradeHistory([]domain.ClosedTrade{
		{TradeID: 3, ProfitPct: decimal.NewNullDecimal(decimal.RequireFromString("2.0"))},
		{TradeID: 2, ProfitPct: decimal.NewNullDecimal(decimal.RequireFromString("-0.5"))},
		{TradeID: 1, ProfitPct: decimal.NewNullDecimal(decimal.RequireFromString("1.0"))},
	}, nil)
	s.ApplyLogs([]domain.LogLine{"one", "two", "Order failed"}, nil)
	return s
}

func TestSnapshot_Get(t *testing.T) {
	h := NewSnapshotHandler(newSnapshotStore(), 50, testLogger)
	rec := do(h.GetSnapshot, "GET", "/api/snapshot", "")
	assert.Equal(t, rec.Code, http.StatusOK)

	body := decode(t, rec)
	assert.Equal(t, body["state"], "running")
	assert.DeepEqual(t, body["open_trades"], []any{})
	assert.Equal(t, body["balance"].(map[string]any)["total"], "100")
}

func TestSnapshot_Performance(t *testing.T) {
	h := NewSnapshotHandler(newSnapshotStore(), 50, testLogger)
	body := decode(t, do(h.GetPerformance, "GET", "/api/performance", ""))

	assert.Equal(t, body["win_rate"], "70")
	assert.Equal(t, body["best_pair"], "BTC/USDT")
	curve := body["equity_curve"].([]any)
	assert.Equal(t, len(curve), 3)
	assert.Equal(t, curve[2].(map[string]any)["cumulative"], "2.5")
}

func TestSnapshot_Trades(t *testing.T) {
	h := NewSnapshotHandler(newSnapshotStore(), 50, testLogger)

	body := decode(t, do(h.ListTrades, "GET", "/api/trades?filter=losses", ""))
	assert.Equal(t, body["count"], 1.0)

	assert.Equal(t, do(h.ListTrades, "GET", "/api/trades?filter=bogus", "").Code, http.StatusBadRequest)
}

func TestSnapshot_Logs(t *testing.T) {
	h := NewSnapshotHandler(newSnapshotStore(), 50, testLogger)

	body := decode(t, do(h.ListLogs, "GET", "/api/logs?limit=2", ""))
	lines := body["lines"].([]any)
	assert.Equal(t, len(lines), 2)
	first := lines[0].(map[string]any)
	assert.Equal(t, first["line"], "Order failed")
	assert.Equal(t, first["severity"], "error")

	assert.Equal(t, do(h.ListLogs, "GET", "/api/logs?limit=-1", "").Code, http.StatusBadRequest)
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler(newSnapshotStore(), testLogger)
	body := decode(t, do(h.HealthCheck, "GET", "/api/health", ""))
	assert.Equal(t, body["status"], "ok")
	assert.Equal(t, body["bot_state"], "running")
}
