package domain

import "time"

// Category names one independently refreshed slice of the snapshot.
type Category string

const (
	CategoryStatus       Category = "status"
	CategoryOpenTrades   Category = "open_trades"
	CategoryBalance      Category = "balance"
	CategoryTradeHistory Category = "trade_history"
	CategoryPerformance  Category = "performance"
	CategoryLogs         Category = "logs"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryStatus,
	CategoryOpenTrades,
	CategoryBalance,
	CategoryTradeHistory,
	CategoryPerformance,
	CategoryLogs,
}

// ConnectivityError is the user-visible message shown while the status
// endpoint cannot be reached.
const ConnectivityError = "Cannot connect to bot. Make sure the trading process is running."

// Snapshot is the latest known-good value of every category. Categories may
// reflect different poll cycles.
type Snapshot struct {
	State          BotState
	OpenTrades     []OpenTrade
	Balance        *Balance
	TradeHistory   []ClosedTrade
	Performance    *PerformanceSummary
	Logs           []LogLine
	LastUpdate     *time.Time
	LastError      string
	CategoryErrors map[Category]string
	Version        uint64
}
