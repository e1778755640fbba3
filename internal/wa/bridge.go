package wa

import (
	"context"
	"sync"
	"time"

	"github.com/waqtor/waqtor-server/internal/pkg/logger"
	"github.com/waqtor/waqtor-server/internal/smartbot"
)

// attachRetryDelay is the single grace period the bridge waits before
// giving up on a client handle that was unavailable at startup.
const attachRetryDelay = 5 * time.Second

// EventSink receives normalized session events for fan-out to
// registered webhooks.
type EventSink interface {
	Dispatch(ctx context.Context, event string, data any)
}

// MessageHandler processes inbound messages (the auto-reply engine).
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg smartbot.IncomingMessage) error
}

// EventSource is the client surface the bridge attaches to.
type EventSource interface {
	AddHandler(fn func(Event))
}

// Bridge wires session events into the webhook dispatcher and the
// auto-reply engine. A client handle that is unavailable at Start gets
// exactly one deferred attach attempt; it does not poll.
type Bridge struct {
	sink    EventSink
	handler MessageHandler

	retryDelay time.Duration

	mu       sync.Mutex
	attached bool
	retry    *time.Timer
}

func NewBridge(sink EventSink, handler MessageHandler) *Bridge {
	return &Bridge{sink: sink, handler: handler, retryDelay: attachRetryDelay}
}

// Start attaches the bridge to the client. The getter is re-invoked on
// the deferred attempt, so a handle that appears during the grace period
// still attaches. One retry only, then the bridge stays inactive.
func (b *Bridge) Start(client func() EventSource) {
	if b.tryAttach(client()) {
		return
	}
	logger.Warn("session client unavailable, retrying bridge attach", "delay", b.retryDelay.String())
	b.mu.Lock()
	b.retry = time.AfterFunc(b.retryDelay, func() {
		if !b.tryAttach(client()) {
			logger.Warn("session client still unavailable, webhook bridge inactive")
		}
	})
	b.mu.Unlock()
}

// Stop cancels a pending deferred attach.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.retry != nil {
		b.retry.Stop()
		b.retry = nil
	}
}

func (b *Bridge) tryAttach(client EventSource) bool {
	if client == nil {
		return false
	}
	b.mu.Lock()
	if b.attached {
		b.mu.Unlock()
		return true
	}
	b.attached = true
	b.mu.Unlock()

	client.AddHandler(b.onEvent)
	logger.Info("webhook bridge attached")
	return true
}

// onEvent runs on the client's event goroutine. Dispatch is async so
// webhook latency never blocks the session; the auto-reply handler runs
// on its own goroutine for the same reason.
func (b *Bridge) onEvent(evt Event) {
	if b.sink != nil {
		b.sink.Dispatch(context.Background(), evt.Name, evt.Data)
	}
	if evt.Name != EventMessageReceived || evt.Message == nil || b.handler == nil {
		return
	}
	msg := smartbot.IncomingMessage{
		ChatID:   evt.Message.ChatID,
		Sender:   evt.Message.Sender,
		Body:     evt.Message.Body,
		FromMe:   evt.Message.FromMe,
		IsStatus: evt.Message.IsStatus,
	}
	go func() {
		if err := b.handler.HandleMessage(context.Background(), msg); err != nil {
			logger.Error("auto-reply failed", "chat", msg.ChatID, "error", err.Error())
		}
	}()
}
