package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/errors"
)

// PubSub is the broadcast transport behind RefreshBus. pkg/redis.Client
// satisfies it.
type PubSub interface {
	Publish(ctx context.Context, channel, payload string) error
	Subscribe(ctx context.Context, channel string) (<-chan string, func() error, error)
}

// RefreshMessage announces that one replica reloaded its corpus.
type RefreshMessage struct {
	Origin  string    `json:"origin"`
	Reason  string    `json:"reason"`
	Version int64     `json:"version"`
	At      time.Time `json:"at"`
}

// RefreshBus tells other replicas to reload after a local refresh, and
// reloads locally when another replica announces one. Messages from this
// replica are ignored on receipt.
type RefreshBus struct {
	ps      PubSub
	channel string
	origin  string
	target  Reloader
	logger  *slog.Logger
}

// NewRefreshBus creates a bus. origin must be unique per replica.
func NewRefreshBus(ps PubSub, channel, origin string, target Reloader) *RefreshBus {
	return &RefreshBus{
		ps:      ps,
		channel: channel,
		origin:  origin,
		target:  target,
		logger:  slog.Default().With("component", "refresh-bus", "channel", channel, "origin", origin),
	}
}

// Announce broadcasts that snap was published here.
func (b *RefreshBus) Announce(ctx context.Context, reason string, snap *Snapshot) error {
	if b == nil || b.ps == nil {
		return apperrors.ErrRefreshUnavailable
	}
	msg := RefreshMessage{Origin: b.origin, Reason: reason, At: time.Now().UTC()}
	if snap != nil {
		msg.Version = snap.Version
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding refresh message: %w", err)
	}
	if err := b.ps.Publish(ctx, b.channel, string(payload)); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrRefreshUnavailable, err)
	}
	b.logger.Info("refresh announced", "reason", reason, "version", msg.Version)
	return nil
}

// Run consumes announcements until ctx is done.
func (b *RefreshBus) Run(ctx context.Context) error {
	msgs, closeFn, err := b.ps.Subscribe(ctx, b.channel)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrRefreshUnavailable, err)
	}
	defer closeFn()
	b.logger.Info("refresh bus listening")

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-msgs:
			if !ok {
				return nil
			}
			b.handle(ctx, payload)
		}
	}
}

func (b *RefreshBus) handle(ctx context.Context, payload string) {
	var msg RefreshMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		b.logger.Warn("ignoring malformed refresh message", "error", err)
		return
	}
	if msg.Origin == b.origin {
		return
	}
	b.logger.Info("peer refresh received", "peer", msg.Origin, "reason", msg.Reason, "peer_version", msg.Version)
	if _, err := b.target.Reload(ctx); err != nil {
		b.logger.Error("reload after peer refresh failed", "error", err)
	}
}
