package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
	"github.com/alanyoungcy/tradeconsole/internal/telemetry"
)

// Operator-facing messages.
const (
	MsgConfirmForceExit     = "Are you sure you want to force exit this trade?"
	MsgConfirmEmergencyStop = "EMERGENCY STOP: This will close all open positions. Are you sure?"
	MsgEmergencyStopDone    = "Emergency stop completed. All positions closed."
)

// Command names used in results, events and metrics.
const (
	CommandStart         = "start"
	CommandStop          = "stop"
	CommandForceExit     = "force_exit"
	CommandEmergencyStop = "emergency_stop"
)

// controlLockKey serializes mutating commands across console instances.
const controlLockKey = "control"

// Refresher is the part of the poller the controller triggers.
type Refresher interface {
	RequestRefresh(ctx context.Context)
}

// OpenTradeSource lists the open trades currently in the snapshot.
type OpenTradeSource interface {
	OpenTradeIDs() []domain.TradeID
}

// CommandMetrics counts command outcomes.
type CommandMetrics interface {
	Command(command, result string)
}

// CommandResult describes a command that completed successfully.
type CommandResult struct {
	CommandID string           `json:"command_id"`
	Command   string           `json:"command"`
	Message   string           `json:"message"`
	Exited    []domain.TradeID `json:"exited,omitempty"`
}

// CommandError is a command the remote process rejected or never received.
// Its text is the operator-facing message.
type CommandError struct {
	CommandID string
	Command   string
	Message   string
	Err       error
}

func (e *CommandError) Error() string { return e.Message }

func (e *CommandError) Unwrap() error { return e.Err }

// Emergency-stop stages.
const (
	StageStop      = "stop"
	StageForceExit = "force_exit"
)

// EmergencyStopError reports where an emergency stop aborted. Trades in
// Untouched were never attempted and are still open.
type EmergencyStopError struct {
	CommandID string
	Stage     string
	Exited    []domain.TradeID
	Failed    *domain.TradeID
	Untouched []domain.TradeID
	Err       error
}

func (e *EmergencyStopError) Error() string {
	return "Emergency stop failed: " + e.Err.Error()
}

func (e *EmergencyStopError) Unwrap() error { return e.Err }

// Partial reports whether some positions were closed before the abort.
func (e *EmergencyStopError) Partial() bool { return len(e.Exited) > 0 }

// Remaining returns every trade still open after the abort, the failed one
// first.
func (e *EmergencyStopError) Remaining() []domain.TradeID {
	out := make([]domain.TradeID, 0, len(e.Untouched)+1)
	if e.Failed != nil {
		out = append(out, *e.Failed)
	}
	return append(out, e.Untouched...)
}

// Controller sequences operator commands against the remote API and
// refreshes the snapshot after every command that reached it.
type Controller struct {
	api       domain.BotAPI
	trades    OpenTradeSource
	refresher Refresher
	confirm   Confirmer

	locks       domain.LockManager
	lockTTL     time.Duration
	callTimeout time.Duration
	bus      domain.SignalBus
	notifier Notifier
	metrics  CommandMetrics
	logger   *slog.Logger
}

// NewController creates a Controller.
func NewController(
	api domain.BotAPI,
	trades OpenTradeSource,
	refresher Refresher,
	confirm Confirmer,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		api:       api,
		trades:    trades,
		refresher: refresher,
		confirm:   confirm,
		lockTTL:     2 * time.Minute,
		callTimeout: 8 * time.Second,
		logger:    logger.With(slog.String("component", "controller")),
	}
}

// WithLocks makes mutating commands mutually exclusive under a named lock.
func (c *Controller) WithLocks(locks domain.LockManager, ttl time.Duration) *Controller {
	c.locks = locks
	if ttl > 0 {
		c.lockTTL = ttl
	}
	return c
}

// WithCallTimeout bounds each remote call a command makes. The control lock
// is held for the lock TTL plus one call timeout per call, so a slow remote
// cannot outlive the lock.
func (c *Controller) WithCallTimeout(d time.Duration) *Controller {
	if d > 0 {
		c.callTimeout = d
	}
	return c
}

// WithBus publishes every command outcome on the commands channel.
func (c *Controller) WithBus(bus domain.SignalBus) *Controller {
	c.bus = bus
	return c
}

// WithNotifier sends command notifications.
func (c *Controller) WithNotifier(n Notifier) *Controller {
	c.notifier = n
	return c
}

// WithMetrics counts command outcomes.
func (c *Controller) WithMetrics(m CommandMetrics) *Controller {
	c.metrics = m
	return c
}

// HandleStart asks the bot to start trading.
func (c *Controller) HandleStart(ctx context.Context) (CommandResult, error) {
	return c.simple(ctx, CommandStart, "Bot started.", "Failed to start bot", c.api.Start)
}

// HandleStop asks the bot to stop opening trades.
func (c *Controller) HandleStop(ctx context.Context) (CommandResult, error) {
	return c.simple(ctx, CommandStop, "Bot stopped.", "Failed to stop bot", c.api.Stop)
}

func (c *Controller) simple(ctx context.Context, command, okMsg, failPrefix string, call func(context.Context) error) (CommandResult, error) {
	id := uuid.NewString()
	unlock, err := c.lock(ctx, id, command, 1)
	if err != nil {
		return CommandResult{}, err
	}
	callErr := c.call(ctx, call)
	unlock()
	c.refresher.RequestRefresh(ctx)

	if callErr != nil {
		cmdErr := &CommandError{
			CommandID: id,
			Command:   command,
			Message:   failPrefix + ": " + callErr.Error(),
			Err:       callErr,
		}
		c.finish(ctx, id, command, telemetry.ResultFailed, cmdErr.Message, domain.EventBotState)
		return CommandResult{}, cmdErr
	}
	c.finish(ctx, id, command, telemetry.ResultOK, okMsg, domain.EventBotState)
	return CommandResult{CommandID: id, Command: command, Message: okMsg}, nil
}

// HandleForceExit closes one open trade after operator confirmation. A
// declined confirmation returns domain.ErrNotConfirmed without calling the
// API.
func (c *Controller) HandleForceExit(ctx context.Context, tradeID domain.TradeID) (CommandResult, error) {
	const command = CommandForceExit
	id := uuid.NewString()
	if !c.confirm.Confirm(ctx, MsgConfirmForceExit) {
		c.declined(ctx, id, command)
		return CommandResult{}, domain.ErrNotConfirmed
	}

	unlock, err := c.lock(ctx, id, command, 1)
	if err != nil {
		return CommandResult{}, err
	}
	callErr := c.call(ctx, func(ctx context.Context) error {
		return c.api.ForceExit(ctx, tradeID)
	})
	unlock()
	c.refresher.RequestRefresh(ctx)

	if callErr != nil {
		cmdErr := &CommandError{
			CommandID: id,
			Command:   command,
			Message:   "Failed to force exit: " + callErr.Error(),
			Err:       callErr,
		}
		c.finish(ctx, id, command, telemetry.ResultFailed, cmdErr.Message, domain.EventForceExit)
		return CommandResult{}, cmdErr
	}
	msg := fmt.Sprintf("Trade %d force exited.", tradeID)
	c.finish(ctx, id, command, telemetry.ResultOK, msg, domain.EventForceExit)
	return CommandResult{CommandID: id, Command: command, Message: msg, Exited: []domain.TradeID{tradeID}}, nil
}

// HandleEmergencyStop stops the bot and then force-exits every trade that was
// open when it was invoked, one at a time in listed order. The first failure
// aborts the sequence and is returned as an *EmergencyStopError.
func (c *Controller) HandleEmergencyStop(ctx context.Context) (CommandResult, error) {
	const command = CommandEmergencyStop
	id := uuid.NewString()
	targets := c.trades.OpenTradeIDs()

	if !c.confirm.Confirm(ctx, MsgConfirmEmergencyStop) {
		c.declined(ctx, id, command)
		return CommandResult{}, domain.ErrNotConfirmed
	}

	// One stop plus one force exit per captured trade.
	unlock, err := c.lock(ctx, id, command, 1+len(targets))
	if err != nil {
		return CommandResult{}, err
	}
	// An operator disconnecting mid-sequence must not leave it half done.
	seqCtx := context.WithoutCancel(ctx)
	exited, esErr := c.emergencySequence(seqCtx, id, targets)
	unlock()
	c.refresher.RequestRefresh(seqCtx)

	if esErr != nil {
		c.finish(seqCtx, id, command, telemetry.ResultFailed, esErr.Error(), domain.EventEmergencyStop,
			slog.Bool("partial", esErr.Partial()),
			slog.String("remaining", joinIDs(esErr.Remaining())),
		)
		return CommandResult{}, esErr
	}
	c.finish(seqCtx, id, command, telemetry.ResultOK, MsgEmergencyStopDone, domain.EventEmergencyStop,
		slog.String("exited", joinIDs(exited)),
	)
	return CommandResult{CommandID: id, Command: command, Message: MsgEmergencyStopDone, Exited: exited}, nil
}

func (c *Controller) emergencySequence(ctx context.Context, id string, targets []domain.TradeID) ([]domain.TradeID, *EmergencyStopError) {
	if err := c.call(ctx, c.api.Stop); err != nil {
		return nil, &EmergencyStopError{
			CommandID: id,
			Stage:     StageStop,
			Untouched: targets,
			Err:       err,
		}
	}

	exited := make([]domain.TradeID, 0, len(targets))
	for i, tradeID := range targets {
		c.logger.InfoContext(ctx, "emergency stop: force exiting trade",
			slog.String("command_id", id),
			slog.Int64("trade_id", int64(tradeID)),
		)
		err := c.call(ctx, func(ctx context.Context) error {
			return c.api.ForceExit(ctx, tradeID)
		})
		if err != nil {
			failed := tradeID
			return exited, &EmergencyStopError{
				CommandID: id,
				Stage:     StageForceExit,
				Exited:    exited,
				Failed:    &failed,
				Untouched: targets[i+1:],
				Err:       err,
			}
		}
		exited = append(exited, tradeID)
	}
	return exited, nil
}

// call runs one remote call under the call timeout.
func (c *Controller) call(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return fn(callCtx)
}

// lock takes the control lock when a lock manager is configured. The TTL
// grows by one call timeout for each of the calls the command will make.
func (c *Controller) lock(ctx context.Context, id, command string, calls int) (func(), error) {
	if c.locks == nil {
		return func() {}, nil
	}
	ttl := c.lockTTL + time.Duration(calls)*c.callTimeout
	unlock, err := c.locks.Acquire(ctx, controlLockKey, ttl)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			c.count(command, telemetry.ResultBusy)
			c.logger.WarnContext(ctx, "command rejected, another command in progress",
				slog.String("command_id", id),
				slog.String("command", command),
			)
			return nil, domain.ErrCommandInProgress
		}
		return nil, fmt.Errorf("controller: acquire control lock: %w", err)
	}
	return unlock, nil
}

func (c *Controller) declined(ctx context.Context, id, command string) {
	c.count(command, telemetry.ResultDeclined)
	c.logger.InfoContext(ctx, "command not confirmed",
		slog.String("command_id", id),
		slog.String("command", command),
	)
}

func (c *Controller) count(command, result string) {
	if c.metrics != nil {
		c.metrics.Command(command, result)
	}
}

// finish logs, counts, publishes and notifies one command outcome.
func (c *Controller) finish(ctx context.Context, id, command, result, message, event string, attrs ...any) {
	c.count(command, result)

	args := append([]any{
		slog.String("command_id", id),
		slog.String("command", command),
		slog.String("result", result),
		slog.String("message", message),
	}, attrs...)
	if result == telemetry.ResultOK {
		c.logger.InfoContext(ctx, "command completed", args...)
	} else {
		c.logger.ErrorContext(ctx, "command failed", args...)
	}

	if c.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"event":      "command",
			"command_id": id,
			"command":    command,
			"result":     result,
			"message":    message,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err := c.bus.Publish(ctx, domain.ChannelCommands, payload); err != nil {
			c.logger.WarnContext(ctx, "publish command event failed", slog.String("error", err.Error()))
		}
	}

	if c.notifier != nil {
		title := strings.ReplaceAll(command, "_", " ") + " " + result
		if err := c.notifier.Notify(ctx, event, title, message); err != nil {
			c.logger.WarnContext(ctx, "command notification failed", slog.String("error", err.Error()))
		}
	}
}

func joinIDs(ids []domain.TradeID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	return strings.Join(parts, ",")
}
