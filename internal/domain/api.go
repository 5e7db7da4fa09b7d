package domain

import "context"

// BotAPI is the remote control API of the trading process.
type BotAPI interface {
	GetStatus(ctx context.Context) (Status, error)
	GetOpenTrades(ctx context.Context) ([]OpenTrade, error)
	GetBalance(ctx context.Context) (Balance, error)
	GetTradeHistory(ctx context.Context, limit int) ([]ClosedTrade, error)
	GetPerformance(ctx context.Context) (PerformanceSummary, error)
	GetLogs(ctx context.Context, limit int) ([]LogLine, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	ForceExit(ctx context.Context, id TradeID) error
}
