package domain

import "github.com/shopspring/decimal"

// Balance is the account balance in the stake currency. Total is expected to
// equal Free + Used upstream; the console does not enforce it.
type Balance struct {
	Total decimal.Decimal `json:"total"`
	Free  decimal.Decimal `json:"free"`
	Used  decimal.Decimal `json:"used"`
}
