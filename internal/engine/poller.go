package engine

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/slipstream/aria2d/internal/engine/rpc"
)

// Message types published to the event hub.
const (
	MessageGlobalStat = "stats:global"
	messagePrefix     = "download:"
)

// GlobalStat is the payload of MessageGlobalStat.
type GlobalStat struct {
	DownloadSpeed uint64 `json:"downloadSpeed"`
	NumActive     uint64 `json:"numActive"`
}

// DownloadEvent is the payload of download:* messages.
type DownloadEvent struct {
	GID string `json:"gid"`
}

// Publisher delivers messages to dashboard clients. *websocket.Hub implements it.
type Publisher interface {
	Broadcast(msgType string, payload any) error
}

// StatSource is the part of Manager the poller needs.
type StatSource interface {
	GlobalStat(ctx context.Context) (speed, active uint64, err error)
}

// StatsPoller returns a scheduled task that reads the global stat and
// publishes it.
func StatsPoller(src StatSource, pub Publisher) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		speed, active, err := src.GlobalStat(ctx)
		if err != nil {
			return err
		}
		return pub.Broadcast(MessageGlobalStat, GlobalStat{DownloadSpeed: speed, NumActive: active})
	}
}

// NotificationForwarder publishes aria2 notifications as download:* messages,
// e.g. aria2.onDownloadComplete becomes download:complete. Undeliverable
// events are logged at debug level and dropped.
func NotificationForwarder(pub Publisher, logger zerolog.Logger) rpc.NotificationHandler {
	return func(n rpc.Notification) {
		event := strings.TrimPrefix(n.Method, "aria2.onDownload")
		event = strings.TrimPrefix(event, "aria2.onBtDownload")
		msgType := messagePrefix + strings.ToLower(event)
		if err := pub.Broadcast(msgType, DownloadEvent{GID: n.GID}); err != nil {
			logger.Debug().Err(err).Str("type", msgType).Str("gid", n.GID).Msg("dropped download event")
		}
	}
}
