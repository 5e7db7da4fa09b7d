package domain

import "time"

// Notification event types. Operators filter on these names.
const (
	EventConnectionLost     = "connection_lost"
	EventConnectionRestored = "connection_restored"
	EventBotState           = "bot_state"
	EventForceExit          = "force_exit"
	EventEmergencyStop      = "emergency_stop"
	EventDailyDigest        = "daily_digest"
)

// SnapshotEvent is the summary published on ChannelSnapshot after each poll
// cycle and sent to new websocket clients.
type SnapshotEvent struct {
	Event      string     `json:"event"`
	Version    uint64     `json:"version"`
	State      BotState   `json:"state"`
	OpenTrades int        `json:"open_trades"`
	LastError  string     `json:"last_error"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
}

// NewSnapshotEvent summarizes snap.
func NewSnapshotEvent(snap Snapshot) SnapshotEvent {
	evt := SnapshotEvent{
		Event:      ChannelSnapshot,
		Version:    snap.Version,
		State:      snap.State,
		OpenTrades: len(snap.OpenTrades),
		LastError:  snap.LastError,
	}
	if snap.LastUpdate != nil {
		t := snap.LastUpdate.UTC()
		evt.LastUpdate = &t
	}
	return evt
}
