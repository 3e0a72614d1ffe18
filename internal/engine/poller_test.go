package engine

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/aria2d/internal/engine/rpc"
	"github.com/slipstream/aria2d/internal/testutil"
)

type message struct {
	Type    string
	Payload any
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []message
	err      error
}

func (p *fakePublisher) Broadcast(msgType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, message{Type: msgType, Payload: payload})
	return nil
}

type statFunc func(ctx context.Context) (uint64, uint64, error)

func (f statFunc) GlobalStat(ctx context.Context) (uint64, uint64, error) {
	return f(ctx)
}

func TestStatsPoller(t *testing.T) {
	pub := &fakePublisher{}
	task := StatsPoller(statFunc(func(context.Context) (uint64, uint64, error) {
		return 2048, 3, nil
	}), pub)

	require.NoError(t, task(context.Background()))
	require.Len(t, pub.messages, 1)
	assert.Equal(t, MessageGlobalStat, pub.messages[0].Type)
	assert.Equal(t, GlobalStat{DownloadSpeed: 2048, NumActive: 3}, pub.messages[0].Payload)
}

func TestStatsPoller_Error(t *testing.T) {
	pub := &fakePublisher{}
	boom := errors.New("boom")
	task := StatsPoller(statFunc(func(context.Context) (uint64, uint64, error) {
		return 0, 0, boom
	}), pub)

	assert.ErrorIs(t, task(context.Background()), boom)
	assert.Empty(t, pub.messages)
}

func TestStatsPoller_NotStarted(t *testing.T) {
	pub := &fakePublisher{}
	m := New(Options{})

	require.NoError(t, StatsPoller(m, pub)(context.Background()))
	assert.Equal(t, GlobalStat{}, pub.messages[0].Payload)
}

func TestNotificationForwarder(t *testing.T) {
	pub := &fakePublisher{}
	forward := NotificationForwarder(pub, testutil.NewTestLogger(t))

	forward(rpc.Notification{Method: "aria2.onDownloadComplete", GID: "a"})
	forward(rpc.Notification{Method: "aria2.onBtDownloadComplete", GID: "b"})
	forward(rpc.Notification{Method: "aria2.onDownloadError", GID: "c"})

	require.Len(t, pub.messages, 3)
	assert.Equal(t, "download:complete", pub.messages[0].Type)
	assert.Equal(t, DownloadEvent{GID: "a"}, pub.messages[0].Payload)
	assert.Equal(t, "download:complete", pub.messages[1].Type)
	assert.Equal(t, "download:error", pub.messages[2].Type)
}

func TestNotificationForwarder_LogsDroppedEvent(t *testing.T) {
	var buf bytes.Buffer
	pub := &fakePublisher{err: errors.New("hub queue full")}
	forward := NotificationForwarder(pub, zerolog.New(&buf).Level(zerolog.DebugLevel))

	forward(rpc.Notification{Method: "aria2.onDownloadStart", GID: "a"})

	assert.Empty(t, pub.messages)
	assert.Contains(t, buf.String(), "dropped download event")
	assert.Contains(t, buf.String(), "hub queue full")
	assert.Contains(t, buf.String(), `"type":"download:start"`)
}
