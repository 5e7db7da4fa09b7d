package domain

import (
	"context"
	"time"
)

// RateLimiter provides per-key request rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides named mutual exclusion with a TTL.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides ephemeral pub/sub. Nothing published is retained.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Bus channel names.
const (
	ChannelSnapshot = "snapshot"
	ChannelCommands = "commands"
)
