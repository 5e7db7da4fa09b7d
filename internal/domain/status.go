package domain

import "github.com/shopspring/decimal"

// BotState is the run state reported for the remote trading process.
type BotState string

const (
	BotStateRunning BotState = "running"
	BotStateStopped BotState = "stopped"
	BotStateLoading BotState = "loading"
	BotStateError   BotState = "error"
)

// ParseBotState maps the upstream state string onto a BotState. An empty
// value is treated as stopped; unknown values are passed through.
func ParseBotState(s string) BotState {
	if s == "" {
		return BotStateStopped
	}
	return BotState(s)
}

// TradeID identifies a trade on the remote process.
type TradeID int64

// Status is the bot run state plus the positions it currently holds.
type Status struct {
	State      BotState
	OpenTrades []OpenTrade
}

// OpenTrade is a position the remote process reports as open.
type OpenTrade struct {
	TradeID     TradeID             `json:"trade_id"`
	Pair        string              `json:"pair"`
	IsShort     bool                `json:"is_short"`
	OpenRate    decimal.Decimal     `json:"open_rate"`
	CurrentRate decimal.NullDecimal `json:"current_rate"`
	ProfitPct   decimal.NullDecimal `json:"profit_pct"`
	ProfitAbs   decimal.NullDecimal `json:"profit_abs"`
}
