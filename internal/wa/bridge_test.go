package wa

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/waqtor/waqtor-server/internal/smartbot"
)

type sinkCall struct {
	event string
	data  any
}

type fakeSink struct {
	mu    sync.Mutex
	calls []sinkCall
}

func (s *fakeSink) Dispatch(ctx context.Context, event string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{event: event, data: data})
}

func (s *fakeSink) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		out = append(out, c.event)
	}
	return out
}

type fakeHandler struct {
	got chan smartbot.IncomingMessage
}

func (h *fakeHandler) HandleMessage(ctx context.Context, msg smartbot.IncomingMessage) error {
	h.got <- msg
	return nil
}

type fakeSource struct {
	mu       sync.Mutex
	handlers []func(Event)
}

func (s *fakeSource) AddHandler(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, fn)
}

func (s *fakeSource) emit(e Event) {
	s.mu.Lock()
	handlers := s.handlers
	s.mu.Unlock()
	for _, fn := range handlers {
		fn(e)
	}
}

func (s *fakeSource) handlerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

func TestBridgeForwardsEventsToSink(t *testing.T) {
	sink := &fakeSink{}
	src := &fakeSource{}
	b := NewBridge(sink, nil)
	b.Start(func() EventSource { return src })
	defer b.Stop()

	src.emit(Event{Name: EventClientConnected, Data: map[string]any{}})
	src.emit(Event{Name: EventSessionQR, Data: map[string]any{"qr": "code"}})

	got := sink.events()
	if len(got) != 2 || got[0] != EventClientConnected || got[1] != EventSessionQR {
		t.Errorf("sink received %v", got)
	}
}

func TestBridgeForwardsMessagesToHandler(t *testing.T) {
	sink := &fakeSink{}
	src := &fakeSource{}
	handler := &fakeHandler{got: make(chan smartbot.IncomingMessage, 1)}
	b := NewBridge(sink, handler)
	b.Start(func() EventSource { return src })
	defer b.Stop()

	msg := &Message{
		ChatID: "966501234567@s.whatsapp.net",
		Sender: "966501234567@s.whatsapp.net",
		Body:   "hello",
	}
	src.emit(Event{Name: EventMessageReceived, Data: map[string]any{"message": msg}, Message: msg})

	select {
	case got := <-handler.got:
		if got.ChatID != msg.ChatID || got.Body != "hello" {
			t.Errorf("handler received %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("handler never invoked")
	}
}

func TestBridgeSkipsNonMessageEventsForHandler(t *testing.T) {
	src := &fakeSource{}
	handler := &fakeHandler{got: make(chan smartbot.IncomingMessage, 1)}
	b := NewBridge(&fakeSink{}, handler)
	b.Start(func() EventSource { return src })
	defer b.Stop()

	src.emit(Event{Name: EventMessageSent, Data: map[string]any{}})
	src.emit(Event{Name: EventMessageReceived}) // no message payload

	select {
	case got := <-handler.got:
		t.Errorf("handler invoked for %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBridgeAttachesOnce(t *testing.T) {
	src := &fakeSource{}
	b := NewBridge(&fakeSink{}, nil)
	b.Start(func() EventSource { return src })
	b.Start(func() EventSource { return src })
	defer b.Stop()

	if n := src.handlerCount(); n != 1 {
		t.Errorf("handler registered %d times, want 1", n)
	}
}

func TestBridgeDefersAttachWhenClientUnavailable(t *testing.T) {
	b := NewBridge(&fakeSink{}, nil)
	b.Start(func() EventSource { return nil })

	b.mu.Lock()
	pending := b.retry != nil
	attached := b.attached
	b.mu.Unlock()
	if !pending {
		t.Error("no deferred attach scheduled")
	}
	if attached {
		t.Error("bridge attached to a nil client")
	}

	b.Stop()
	b.mu.Lock()
	cleared := b.retry == nil
	b.mu.Unlock()
	if !cleared {
		t.Error("Stop left the retry timer pending")
	}
}

func TestBridgeAttachesOnRetryWhenClientAppears(t *testing.T) {
	src := &fakeSource{}
	var mu sync.Mutex
	var client EventSource

	b := NewBridge(&fakeSink{}, nil)
	b.retryDelay = 10 * time.Millisecond
	b.Start(func() EventSource {
		mu.Lock()
		defer mu.Unlock()
		return client
	})
	defer b.Stop()

	// The handle shows up during the grace period.
	mu.Lock()
	client = src
	mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for src.handlerCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("deferred attach never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := src.handlerCount(); n != 1 {
		t.Errorf("handler registered %d times, want 1", n)
	}
}
