package service

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"gotest.tools/v3/assert"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
)

type snapshotFunc func() domain.Snapshot

func (f snapshotFunc) Read() domain.Snapshot { return f() }

func TestNewDigest_BadSchedule(t *testing.T) {
	_, err := NewDigest(snapshotFunc(func() domain.Snapshot { return domain.Snapshot{} }), &fakeNotifier{}, "every day", 50, discardLogger())
	assert.ErrorContains(t, err, `digest: parse schedule "every day"`)
}

func TestDigest_Send(t *testing.T) {
	w, l := 7, 3
	snap := domain.Snapshot{
		State:      domain.BotStateRunning,
		Balance:    &domain.Balance{Total: decimal.NewFromInt(1000), Free: decimal.NewFromInt(800), Used: decimal.NewFromInt(200)},
		OpenTrades: []domain.OpenTrade{{TradeID: 1}},
		Performance: &domain.PerformanceSummary{
			ProfitClosedCoin:    decimal.RequireFromString("12.5"),
			ProfitClosedPercent: decimal.RequireFromString("1.25"),
			WinningTrades:       &w,
			LosingTrades:        &l,
			BestPair:            "BTC/USDT",
			WorstPair:           "DOGE/USDT",
		},
	}
	n := &fakeNotifier{}
	d, err := NewDigest(snapshotFunc(func() domain.Snapshot { return snap }), n, "0 8 * * *", 50, discardLogger())
	assert.NilError(t, err)

	assert.NilError(t, d.Send(context.Background()))
	assert.DeepEqual(t, n.Events(), []string{domain.EventDailyDigest})

	msg := n.msgs[0]
	for _, want := range []string{
		"State: running",
		"Balance: 1000.00 (free 800.00, used 200.00)",
		"Open trades: 1",
		"Win rate: 70.0% (7 W / 3 L)",
		"Best pair: BTC/USDT, worst pair: DOGE/USDT",
	} {
		assert.Check(t, strings.Contains(msg, want), "missing %q in:\n%s", want, msg)
	}
}
