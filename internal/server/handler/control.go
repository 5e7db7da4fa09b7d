package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
	"github.com/alanyoungcy/tradeconsole/internal/service"
)

// Commander executes operator commands.
type Commander interface {
	HandleStart(ctx context.Context) (service.CommandResult, error)
	HandleStop(ctx context.Context) (service.CommandResult, error)
	HandleForceExit(ctx context.Context, id domain.TradeID) (service.CommandResult, error)
	HandleEmergencyStop(ctx context.Context) (service.CommandResult, error)
}

// Refresher runs an on-demand poll cycle.
type Refresher interface {
	Refresh(ctx context.Context) bool
}

// ControlHandler serves the operator command endpoints. Destructive commands
// need "confirm": true in the body.
type ControlHandler struct {
	cmd       Commander
	refresher Refresher
	logger    *slog.Logger
}

// NewControlHandler creates a ControlHandler.
func NewControlHandler(cmd Commander, refresher Refresher, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{cmd: cmd, refresher: refresher, logger: logger}
}

type forceExitRequest struct {
	TradeID domain.TradeID `json:"tradeid"`
	Confirm bool           `json:"confirm"`
}

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

// Refresh runs a poll cycle now unless one is already running.
// POST /api/refresh
func (h *ControlHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.refresher.Refresh(r.Context()) {
		writeJSON(w, http.StatusOK, map[string]any{"refreshed": true})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"refreshed": false,
		"reason":    "a refresh is already in progress",
	})
}

// Start asks the bot to start.
// POST /api/control/start
func (h *ControlHandler) Start(w http.ResponseWriter, r *http.Request) {
	res, err := h.cmd.HandleStart(r.Context())
	h.respond(w, r, res, err)
}

// Stop asks the bot to stop.
// POST /api/control/stop
func (h *ControlHandler) Stop(w http.ResponseWriter, r *http.Request) {
	res, err := h.cmd.HandleStop(r.Context())
	h.respond(w, r, res, err)
}

// ForceExit closes one trade.
// POST /api/control/forceexit {"tradeid": 7, "confirm": true}
func (h *ControlHandler) ForceExit(w http.ResponseWriter, r *http.Request) {
	var req forceExitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TradeID <= 0 {
		writeError(w, http.StatusBadRequest, "tradeid is required")
		return
	}
	ctx := service.WithConfirmation(r.Context(), req.Confirm)
	res, err := h.cmd.HandleForceExit(ctx, req.TradeID)
	h.respond(w, r, res, err)
}

// EmergencyStop stops the bot and closes every open trade.
// POST /api/control/emergency-stop {"confirm": true}
func (h *ControlHandler) EmergencyStop(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := service.WithConfirmation(r.Context(), req.Confirm)
	res, err := h.cmd.HandleEmergencyStop(ctx)
	h.respond(w, r, res, err)
}

// respond maps command outcomes onto HTTP statuses: declined or busy is 409,
// a remote failure is 502.
func (h *ControlHandler) respond(w http.ResponseWriter, r *http.Request, res service.CommandResult, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, res)
		return
	}

	var esErr *service.EmergencyStopError
	var cmdErr *service.CommandError
	switch {
	case errors.Is(err, domain.ErrNotConfirmed):
		writeError(w, http.StatusConflict, "confirmation required: resend with \"confirm\": true")
	case errors.Is(err, domain.ErrCommandInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &esErr):
		body := map[string]any{
			"error":     esErr.Error(),
			"partial":   esErr.Partial(),
			"stage":     esErr.Stage,
			"exited":    nonNil(esErr.Exited),
			"remaining": nonNil(esErr.Remaining()),
		}
		if esErr.Failed != nil {
			body["failed"] = *esErr.Failed
		}
		writeJSON(w, http.StatusBadGateway, body)
	case errors.As(err, &cmdErr):
		writeError(w, http.StatusBadGateway, cmdErr.Error())
	default:
		h.logger.ErrorContext(r.Context(), "control command error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func nonNil(ids []domain.TradeID) []domain.TradeID {
	if ids == nil {
		return []domain.TradeID{}
	}
	return ids
}
