// Package freqtrade is the REST client for the trading process's control API.
// Every call maps to one endpoint. Network, status and response-body failures
// come back as the domain transport, protocol and decode errors. Retries are
// the caller's business.
package freqtrade

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
)

// maxErrorBody caps how much of a failed response body is kept in a
// ProtocolError.
const maxErrorBody = 512

// ClientConfig holds connection parameters for the control API.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "http://127.0.0.1:8080/api/v1".
	BaseURL  string
	Username string
	Password string
	// Timeout bounds every request. Zero means 8 seconds.
	Timeout time.Duration
}

// Client is the REST client for the trading process control API.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a new control API client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetStatus returns the bot run state and its open trades.
func (c *Client) GetStatus(ctx context.Context) (domain.Status, error) {
	const op = "freqtrade: get status"
	var body APIStatus
	if err := c.getJSON(ctx, op, "/status", &body); err != nil {
		return domain.Status{}, err
	}
	return body.ToDomain(), nil
}

// GetOpenTrades returns the open trades listed by the status endpoint.
func (c *Client) GetOpenTrades(ctx context.Context) ([]domain.OpenTrade, error) {
	const op = "freqtrade: get open trades"
	var body APIStatus
	if err := c.getJSON(ctx, op, "/status", &body); err != nil {
		return nil, err
	}
	return openTradesToDomain(body.OpenTrades), nil
}

// GetBalance returns the account balance.
func (c *Client) GetBalance(ctx context.Context) (domain.Balance, error) {
	const op = "freqtrade: get balance"
	var body APIBalance
	if err := c.getJSON(ctx, op, "/balance", &body); err != nil {
		return domain.Balance{}, err
	}
	return body.ToDomain(), nil
}

// GetTradeHistory returns up to limit closed trades, newest first.
func (c *Client) GetTradeHistory(ctx context.Context, limit int) ([]domain.ClosedTrade, error) {
	const op = "freqtrade: get trades"
	var body APITrades
	if err := c.getJSON(ctx, op, "/trades?"+limitQuery(limit), &body); err != nil {
		return nil, err
	}
	trades := make([]domain.ClosedTrade, 0, len(body.Trades))
	for i := range body.Trades {
		trades = append(trades, body.Trades[i].ToDomain())
	}
	return trades, nil
}

// GetPerformance returns the closed-trade profit summary.
func (c *Client) GetPerformance(ctx context.Context) (domain.PerformanceSummary, error) {
	const op = "freqtrade: get profit"
	var body APIProfit
	if err := c.getJSON(ctx, op, "/profit", &body); err != nil {
		return domain.PerformanceSummary{}, err
	}
	return body.ToDomain(), nil
}

// GetLogs returns up to limit recent log lines.
func (c *Client) GetLogs(ctx context.Context, limit int) ([]domain.LogLine, error) {
	const op = "freqtrade: get logs"
	var body APILogs
	if err := c.getJSON(ctx, op, "/logs?"+limitQuery(limit), &body); err != nil {
		return nil, err
	}
	lines, err := body.ToDomain()
	if err != nil {
		return nil, &domain.DecodeError{Op: op, Err: err}
	}
	return lines, nil
}

// Start asks the bot to start trading.
func (c *Client) Start(ctx context.Context) error {
	_, err := c.do(ctx, "freqtrade: start", http.MethodPost, "/start", nil)
	return err
}

// Stop asks the bot to stop opening new trades.
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.do(ctx, "freqtrade: stop", http.MethodPost, "/stop", nil)
	return err
}

// ForceExit closes one open trade immediately. An unknown trade id surfaces
// as a ProtocolError.
func (c *Client) ForceExit(ctx context.Context, id domain.TradeID) error {
	_, err := c.do(ctx, "freqtrade: force exit "+strconv.FormatInt(int64(id), 10),
		http.MethodPost, "/forceexit", forceExitRequest{TradeID: int64(id)})
	return err
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func limitQuery(limit int) string {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	return params.Encode()
}

// getJSON sends a GET request and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	body, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &domain.DecodeError{Op: op, Err: err}
	}
	return nil
}

// do builds, sends and reads one request. It returns the raw body of a 2xx
// response.
func (c *Client) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode: %w", op, err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.ProtocolError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(body)), maxErrorBody),
		}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Compile-time interface check.
var _ domain.BotAPI = (*Client)(nil)
