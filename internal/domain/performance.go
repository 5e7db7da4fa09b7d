package domain

import "github.com/shopspring/decimal"

// PerformanceSummary holds closed-trade profit statistics. Nil trade counts
// mean the upstream response did not carry them.
type PerformanceSummary struct {
	ProfitClosedCoin    decimal.Decimal `json:"profit_closed_coin"`
	ProfitClosedPercent decimal.Decimal `json:"profit_closed_percent"`
	WinningTrades       *int            `json:"winning_trades"`
	LosingTrades        *int            `json:"losing_trades"`
	BestPair            string          `json:"best_pair"`
	WorstPair           string          `json:"worst_pair"`
	TradeCount          int             `json:"trade_count"`
}
