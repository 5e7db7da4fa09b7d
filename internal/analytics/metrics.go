// Package analytics turns the raw snapshot into presentable statistics. Every
// function here is pure.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
)

// DefaultEquityWindow is the number of most recent closed trades plotted on
// the equity curve.
const DefaultEquityWindow = 50

var hundred = decimal.NewFromInt(100)

// EquityPoint is one point of the cumulative equity curve.
type EquityPoint struct {
	TradeID    domain.TradeID  `json:"trade_id"`
	Pair       string          `json:"pair"`
	CloseTime  time.Time       `json:"close_time"`
	ProfitPct  decimal.Decimal `json:"profit_pct"`
	Cumulative decimal.Decimal `json:"cumulative"`
}

// Metrics is the presentable summary of closed-trade performance.
type Metrics struct {
	TotalProfit    decimal.Decimal `json:"total_profit"`
	TotalProfitPct decimal.Decimal `json:"total_profit_pct"`
	WinRate        decimal.Decimal `json:"win_rate"`
	WinningTrades  int             `json:"winning_trades"`
	LosingTrades   int             `json:"losing_trades"`
	TradeCount     int             `json:"trade_count"`
	BestPair       string          `json:"best_pair"`
	WorstPair      string          `json:"worst_pair"`
	EquityCurve    []EquityPoint   `json:"equity_curve"`
}

// Compute derives Metrics from the profit summary and the newest-first trade
// history. A nil summary yields zero totals. A window <= 0 means
// DefaultEquityWindow.
func Compute(perf *domain.PerformanceSummary, history []domain.ClosedTrade, window int) Metrics {
	m := Metrics{
		TotalProfit:    decimal.Zero,
		TotalProfitPct: decimal.Zero,
		WinRate:        decimal.Zero,
		EquityCurve:    EquityCurve(history, window),
	}
	if perf == nil {
		return m
	}

	m.TotalProfit = perf.ProfitClosedCoin
	m.TotalProfitPct = perf.ProfitClosedPercent
	m.WinRate = WinRate(perf.WinningTrades, perf.LosingTrades)
	if perf.WinningTrades != nil {
		m.WinningTrades = *perf.WinningTrades
	}
	if perf.LosingTrades != nil {
		m.LosingTrades = *perf.LosingTrades
	}
	m.TradeCount = perf.TradeCount
	m.BestPair = perf.BestPair
	m.WorstPair = perf.WorstPair
	return m
}

// WinRate returns winning/(winning+losing)*100. It is zero when either count
// is absent or both are zero.
func WinRate(winning, losing *int) decimal.Decimal {
	if winning == nil || losing == nil {
		return decimal.Zero
	}
	total := *winning + *losing
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(*winning)).Mul(hundred).Div(decimal.NewFromInt(int64(total)))
}

// EquityCurve takes the most recent n trades of a newest-first history,
// orders them chronologically and returns the running sum of their profit
// percentages. Absent percentages count as zero. The curve is a plain prefix
// sum and does not compound.
func EquityCurve(history []domain.ClosedTrade, n int) []EquityPoint {
	if n <= 0 {
		n = DefaultEquityWindow
	}
	recent := history[:min(n, len(history))]

	curve := make([]EquityPoint, 0, len(recent))
	cum := decimal.Zero
	for i := len(recent) - 1; i >= 0; i-- {
		t := recent[i]
		pct := decimal.Zero
		if t.ProfitPct.Valid {
			pct = t.ProfitPct.Decimal
		}
		cum = cum.Add(pct)
		curve = append(curve, EquityPoint{
			TradeID:    t.TradeID,
			Pair:       t.Pair,
			CloseTime:  t.CloseTime,
			ProfitPct:  pct,
			Cumulative: cum,
		})
	}
	return curve
}
