package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAPI is an in-memory BotAPI. Per-endpoint errors and an optional gate
// let tests stall or fail individual calls.
type fakeAPI struct {
	mu sync.Mutex

	status  domain.Status
	balance domain.Balance
	history []domain.ClosedTrade
	perf    domain.PerformanceSummary
	logs    []domain.LogLine

	errs      map[string]error
	exitErrs  map[domain.TradeID]error
	calls     []string
	exited    []domain.TradeID
	inFlight  int
	maxFlight int

	// exitDelay stalls every ForceExit; exitFlight tracks overlapping exits.
	exitDelay     time.Duration
	exitFlight    int
	maxExitFlight int

	// gate, when set, blocks GetStatus until closed.
	gate chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		status:   domain.Status{State: domain.BotStateRunning},
		errs:     make(map[string]error),
		exitErrs: make(map[domain.TradeID]error),
	}
}

func (f *fakeAPI) enter(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.errs[name]
}

func (f *fakeAPI) setErr(name string, err error) {
	f.mu.Lock()
	f.errs[name] = err
	f.mu.Unlock()
}

func (f *fakeAPI) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeAPI) GetStatus(ctx context.Context) (domain.Status, error) {
	f.mu.Lock()
	f.inFlight++
	f.maxFlight = max(f.maxFlight, f.inFlight)
	gate := f.gate
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Status{}, &domain.TransportError{Op: "fake: get status", Err: ctx.Err()}
		}
	}
	if err := f.enter("status"); err != nil {
		return domain.Status{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakeAPI) GetOpenTrades(ctx context.Context) ([]domain.OpenTrade, error) {
	if err := f.enter("open_trades"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status.OpenTrades, nil
}

func (f *fakeAPI) GetBalance(ctx context.Context) (domain.Balance, error) {
	if err := f.enter("balance"); err != nil {
		return domain.Balance{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeAPI) GetTradeHistory(ctx context.Context, limit int) ([]domain.ClosedTrade, error) {
	if err := f.enter("trades"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, nil
}

func (f *fakeAPI) GetPerformance(ctx context.Context) (domain.PerformanceSummary, error) {
	if err := f.enter("profit"); err != nil {
		return domain.PerformanceSummary{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perf, nil
}

func (f *fakeAPI) GetLogs(ctx context.Context, limit int) ([]domain.LogLine, error) {
	if err := f.enter("logs"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logs, nil
}

func (f *fakeAPI) Start(ctx context.Context) error { return f.enter("start") }

func (f *fakeAPI) Stop(ctx context.Context) error { return f.enter("stop") }

func (f *fakeAPI) ForceExit(ctx context.Context, id domain.TradeID) error {
	if err := f.enter("forceexit"); err != nil {
		return err
	}
	f.mu.Lock()
	f.exitFlight++
	f.maxExitFlight = max(f.maxExitFlight, f.exitFlight)
	delay := f.exitDelay
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.exitFlight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &domain.TransportError{Op: "fake: force exit", Err: ctx.Err()}
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.exitErrs[id]; err != nil {
		return err
	}
	f.exited = append(f.exited, id)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
	msgs   []string
}

func (n *fakeNotifier) Notify(ctx context.Context, event, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.msgs = append(n.msgs, message)
	return nil
}

func (n *fakeNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

type countingRefresher struct {
	mu    sync.Mutex
	calls int
}

func (r *countingRefresher) RequestRefresh(ctx context.Context) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
}

func (r *countingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type staticTrades []domain.TradeID

func (s staticTrades) OpenTradeIDs() []domain.TradeID { return s }

// heldLock always reports the control lock as taken.
type heldLock struct{}

func (heldLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func (f *fakeAPI) flight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}
