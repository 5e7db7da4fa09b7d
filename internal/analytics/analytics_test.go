package analytics

import (
	"testing"

	"github.com/shopspring/decimal"
	"gotest.tools/v3/assert"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
)

func intp(v int) *int { return &v }

func pct(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

// newestFirst builds a history from chronological profit percentages, the
// way the remote API serves it.
func newestFirst(chrono ...string) []domain.ClosedTrade {
	out := make([]domain.ClosedTrade, len(chrono))
	for i, p := range chrono {
		out[len(chrono)-1-i] = domain.ClosedTrade{TradeID: domain.TradeID(i + 1), ProfitPct: pct(p)}
	}
	return out
}

func TestWinRate(t *testing.T) {
	assert.Check(t, WinRate(intp(7), intp(3)).Equal(decimal.NewFromInt(70)))
	assert.Check(t, WinRate(intp(5), intp(0)).Equal(decimal.NewFromInt(100)))
	assert.Check(t, WinRate(intp(0), intp(4)).IsZero())
	assert.Check(t, WinRate(intp(0), intp(0)).IsZero())
	assert.Check(t, WinRate(nil, intp(3)).IsZero())
	assert.Check(t, WinRate(intp(3), nil).IsZero())
}

func TestWinRate_Bounds(t *testing.T) {
	for w := 0; w <= 12; w++ {
		for l := 0; l <= 12; l++ {
			r := WinRate(intp(w), intp(l))
			assert.Check(t, !r.IsNegative() && r.LessThanOrEqual(hundred), "w=%d l=%d rate=%s", w, l, r)
		}
	}
}

func TestEquityCurve_PrefixSum(t *testing.T) {
	curve := EquityCurve(newestFirst("1.0", "-0.5", "2.0"), 50)

	assert.Equal(t, len(curve), 3)
	want := []string{"1.0", "0.5", "2.5"}
	for i, w := range want {
		assert.Check(t, curve[i].Cumulative.Equal(decimal.RequireFromString(w)), "point %d = %s", i, curve[i].Cumulative)
	}
	assert.Equal(t, curve[0].TradeID, domain.TradeID(1))
}

func TestEquityCurve_Window(t *testing.T) {
	history := newestFirst("1", "1", "1", "1", "1")

	curve := EquityCurve(history, 3)
	assert.Equal(t, len(curve), 3)
	// Only the three newest trades (ids 3..5) are plotted, oldest first.
	assert.Equal(t, curve[0].TradeID, domain.TradeID(3))
	assert.Equal(t, curve[2].TradeID, domain.TradeID(5))
	assert.Check(t, curve[2].Cumulative.Equal(decimal.NewFromInt(3)))

	assert.Equal(t, len(EquityCurve(history, 0)), 5)
	assert.Equal(t, len(EquityCurve(nil, 50)), 0)
}

func TestEquityCurve_AbsentProfitIsZero(t *testing.T) {
	history := []domain.ClosedTrade{
		{TradeID: 3, ProfitPct: pct("2")},
		{TradeID: 2},
		{TradeID: 1, ProfitPct: pct("1")},
	}
	curve := EquityCurve(history, 50)
	for i := 1; i < len(curve); i++ {
		assert.Check(t, curve[i].Cumulative.Equal(curve[i-1].Cumulative.Add(curve[i].ProfitPct)))
	}
	assert.Check(t, curve[1].ProfitPct.IsZero())
	assert.Check(t, curve[2].Cumulative.Equal(decimal.NewFromInt(3)))
}

func TestCompute(t *testing.T) {
	perf := &domain.PerformanceSummary{
		ProfitClosedCoin:    decimal.RequireFromString("12.5"),
		ProfitClosedPercent: decimal.RequireFromString("1.25"),
		WinningTrades:       intp(7),
		LosingTrades:        intp(3),
		BestPair:            "BTC/USDT",
		WorstPair:           "DOGE/USDT",
		TradeCount:          10,
	}
	m := Compute(perf, newestFirst("1.0", "-0.5", "2.0"), 0)

	assert.Check(t, m.WinRate.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, m.BestPair, "BTC/USDT")
	assert.Equal(t, m.WorstPair, "DOGE/USDT")
	assert.Equal(t, m.TradeCount, 10)
	assert.Equal(t, len(m.EquityCurve), 3)
}

func TestCompute_NoSummary(t *testing.T) {
	m := Compute(nil, nil, 50)
	assert.Check(t, m.TotalProfit.IsZero())
	assert.Check(t, m.WinRate.IsZero())
	assert.Equal(t, m.BestPair, "")
	assert.Equal(t, len(m.EquityCurve), 0)
}

func TestFilterTrades(t *testing.T) {
	history := []domain.ClosedTrade{
		{TradeID: 1, ProfitPct: pct("1")},
		{TradeID: 2, ProfitPct: pct("-1")},
		{TradeID: 3, ProfitPct: pct("0")},
		{TradeID: 4},
	}
	assert.Equal(t, len(FilterTrades(history, FilterAll)), 4)
	wins := FilterTrades(history, FilterWins)
	assert.Equal(t, len(wins), 1)
	assert.Equal(t, wins[0].TradeID, domain.TradeID(1))
	losses := FilterTrades(history, FilterLosses)
	assert.Equal(t, len(losses), 1)
	assert.Equal(t, losses[0].TradeID, domain.TradeID(2))
}

func TestParseTradeFilter(t *testing.T) {
	f, err := ParseTradeFilter("")
	assert.NilError(t, err)
	assert.Equal(t, f, FilterAll)

	f, err = ParseTradeFilter("losses")
	assert.NilError(t, err)
	assert.Equal(t, f, FilterLosses)

	_, err = ParseTradeFilter("open")
	assert.ErrorContains(t, err, `unknown trade filter "open"`)
}

func TestTailLogs(t *testing.T) {
	lines := []domain.LogLine{"a", "Bought BTC", "c", "Order failed"}

	tail := TailLogs(lines, 2)
	assert.DeepEqual(t, tail, []ClassifiedLine{
		{Line: "Order failed", Severity: domain.SeverityError},
		{Line: "c", Severity: domain.SeverityInfo},
	})

	all := TailLogs(lines, 0)
	assert.Equal(t, len(all), 4)
	assert.Equal(t, all[2].Severity, domain.SeveritySuccess)
}
