package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClosedTrade is one entry of the remote trade history. It is immutable once
// fetched.
type ClosedTrade struct {
	TradeID   TradeID             `json:"trade_id"`
	Pair      string              `json:"pair"`
	IsShort   bool                `json:"is_short"`
	OpenRate  decimal.Decimal     `json:"open_rate"`
	CloseRate decimal.NullDecimal `json:"close_rate"`
	OpenTime  time.Time           `json:"open_time"`
	CloseTime time.Time           `json:"close_time"`
	ProfitPct decimal.NullDecimal `json:"profit_pct"`
	ProfitAbs decimal.NullDecimal `json:"profit_abs"`
}

// IsWin reports whether the trade closed with a positive profit percentage.
func (t ClosedTrade) IsWin() bool {
	return t.ProfitPct.Valid && t.ProfitPct.Decimal.IsPositive()
}

// IsLoss reports whether the trade closed with a negative profit percentage.
func (t ClosedTrade) IsLoss() bool {
	return t.ProfitPct.Valid && t.ProfitPct.Decimal.IsNegative()
}
