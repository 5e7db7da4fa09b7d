package analytics

import (
	"fmt"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
)

// TradeFilter selects a subset of the trade history.
type TradeFilter string

const (
	FilterAll    TradeFilter = "all"
	FilterWins   TradeFilter = "wins"
	FilterLosses TradeFilter = "losses"
)

// ParseTradeFilter maps a query value onto a TradeFilter. Empty means all.
func ParseTradeFilter(s string) (TradeFilter, error) {
	switch f := TradeFilter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterWins, FilterLosses:
		return f, nil
	default:
		return "", fmt.Errorf("analytics: unknown trade filter %q", s)
	}
}

// FilterTrades returns the trades matching f, preserving order. Trades with no
// profit figure are neither wins nor losses.
func FilterTrades(history []domain.ClosedTrade, f TradeFilter) []domain.ClosedTrade {
	out := make([]domain.ClosedTrade, 0, len(history))
	for _, t := range history {
		switch f {
		case FilterWins:
			if !t.IsWin() {
				continue
			}
		case FilterLosses:
			if !t.IsLoss() {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}
