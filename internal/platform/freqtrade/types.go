package freqtrade

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// --------------------------------------------------------------------------
// REST API DTOs
// --------------------------------------------------------------------------

// APIStatus is the body of GET status.
type APIStatus struct {
	State      string         `json:"state"`
	OpenTrades []APIOpenTrade `json:"open_trades"`
}

// APIOpenTrade is an open trade as returned inside the status body.
type APIOpenTrade struct {
	TradeID     int64               `json:"trade_id"`
	Pair        string              `json:"pair"`
	IsShort     bool                `json:"is_short"`
	OpenRate    decimal.Decimal     `json:"open_rate"`
	CurrentRate decimal.NullDecimal `json:"current_rate"`
	ProfitPct   decimal.NullDecimal `json:"profit_pct"`
	ProfitAbs   decimal.NullDecimal `json:"profit_abs"`
}

// APIBalance is the body of GET balance.
type APIBalance struct {
	Total decimal.Decimal `json:"total"`
	Free  decimal.Decimal `json:"free"`
	Used  decimal.Decimal `json:"used"`
}

// APITrades is the body of GET trades.
type APITrades struct {
	Trades      []APIClosedTrade `json:"trades"`
	TradesCount int              `json:"trades_count"`
}

// APIClosedTrade is a single trade-history entry. Timestamps are Unix
// milliseconds.
type APIClosedTrade struct {
	TradeID        int64               `json:"trade_id"`
	Pair           string              `json:"pair"`
	IsShort        bool                `json:"is_short"`
	OpenRate       decimal.Decimal     `json:"open_rate"`
	CloseRate      decimal.NullDecimal `json:"close_rate"`
	OpenTimestamp  int64               `json:"open_timestamp"`
	CloseTimestamp int64               `json:"close_timestamp"`
	ProfitPct      decimal.NullDecimal `json:"profit_pct"`
	ProfitAbs      decimal.NullDecimal `json:"profit_abs"`
}

// APIProfit is the body of GET profit.
type APIProfit struct {
	ProfitClosedCoin    decimal.Decimal `json:"profit_closed_coin"`
	ProfitClosedPercent decimal.Decimal `json:"profit_closed_percent"`
	WinningTrades       *int            `json:"winning_trades"`
	LosingTrades        *int            `json:"losing_trades"`
	BestPair            string          `json:"best_pair"`
	WorstPair           string          `json:"worst_pair"`
	TradeCount          int             `json:"trade_count"`
}

// APILogs is the body of GET logs. Entries are either plain strings or
// [date, timestamp_ms, logger, level, message] tuples.
type APILogs struct {
	Log []jsoniter.RawMessage `json:"log"`
}

// forceExitRequest is the body of POST forceexit.
type forceExitRequest struct {
	TradeID int64 `json:"tradeid"`
}

// --------------------------------------------------------------------------
// Conversions
// --------------------------------------------------------------------------

// ToDomain converts the status body.
func (s APIStatus) ToDomain() domain.Status {
	return domain.Status{
		State:      domain.ParseBotState(s.State),
		OpenTrades: openTradesToDomain(s.OpenTrades),
	}
}

func openTradesToDomain(in []APIOpenTrade) []domain.OpenTrade {
	out := make([]domain.OpenTrade, 0, len(in))
	for _, t := range in {
		out = append(out, domain.OpenTrade{
			TradeID:     domain.TradeID(t.TradeID),
			Pair:        t.Pair,
			IsShort:     t.IsShort,
			OpenRate:    t.OpenRate,
			CurrentRate: t.CurrentRate,
			ProfitPct:   t.ProfitPct,
			ProfitAbs:   t.ProfitAbs,
		})
	}
	return out
}

// ToDomain converts the balance body.
func (b APIBalance) ToDomain() domain.Balance {
	return domain.Balance{Total: b.Total, Free: b.Free, Used: b.Used}
}

// ToDomain converts a trade-history entry.
func (t APIClosedTrade) ToDomain() domain.ClosedTrade {
	return domain.ClosedTrade{
		TradeID:   domain.TradeID(t.TradeID),
		Pair:      t.Pair,
		IsShort:   t.IsShort,
		OpenRate:  t.OpenRate,
		CloseRate: t.CloseRate,
		OpenTime:  msToTime(t.OpenTimestamp),
		CloseTime: msToTime(t.CloseTimestamp),
		ProfitPct: t.ProfitPct,
		ProfitAbs: t.ProfitAbs,
	}
}

// ToDomain converts the profit body.
func (p APIProfit) ToDomain() domain.PerformanceSummary {
	return domain.PerformanceSummary{
		ProfitClosedCoin:    p.ProfitClosedCoin,
		ProfitClosedPercent: p.ProfitClosedPercent,
		WinningTrades:       p.WinningTrades,
		LosingTrades:        p.LosingTrades,
		BestPair:            p.BestPair,
		WorstPair:           p.WorstPair,
		TradeCount:          p.TradeCount,
	}
}

// ToDomain converts the logs body.
func (l APILogs) ToDomain() ([]domain.LogLine, error) {
	out := make([]domain.LogLine, 0, len(l.Log))
	for i, raw := range l.Log {
		line, err := parseLogEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("log entry %d: %w", i, err)
		}
		out = append(out, line)
	}
	return out, nil
}

func parseLogEntry(raw []byte) (domain.LogLine, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return domain.LogLine(s), nil
	}

	var tuple []any
	if err := json.Unmarshal(raw, &tuple); err != nil {
		return "", err
	}
	if len(tuple) < 5 {
		return "", fmt.Errorf("expected 5 fields, got %d", len(tuple))
	}
	parts := []string{
		fmt.Sprint(tuple[0]),
		fmt.Sprint(tuple[2]),
		fmt.Sprint(tuple[3]),
		fmt.Sprint(tuple[4]),
	}
	return domain.LogLine(strings.Join(parts, " - ")), nil
}

func msToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
