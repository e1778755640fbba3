package wa

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"

	"github.com/waqtor/waqtor-server/internal/config"
	"github.com/waqtor/waqtor-server/internal/pkg/logger"
)

// Client wraps a whatsmeow session behind the narrow surface the rest
// of the server depends on: SendText, status, and a normalized event
// stream.
type Client struct {
	cfg       config.WhatsAppConfig
	container *sqlstore.Container
	wm        *whatsmeow.Client

	mu        sync.RWMutex
	connected bool
	lastQR    string
	lastQRAt  time.Time
	handlers  []func(Event)
}

// NewClient opens the session store (sqlite via the modernc driver) and
// prepares the underlying whatsmeow client without connecting.
func NewClient(ctx context.Context, cfg config.WhatsAppConfig) (*Client, error) {
	dbLog := waLog.Stdout("Session", cfg.LogLevel, true)
	container, err := sqlstore.New(ctx, "sqlite",
		fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)", cfg.SessionDB), dbLog)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}

	store.DeviceProps.Os = proto.String(cfg.DeviceName)

	c := &Client{
		cfg:       cfg,
		container: container,
		wm:        whatsmeow.NewClient(device, waLog.Stdout("Client", cfg.LogLevel, true)),
	}
	c.wm.AddEventHandler(c.handleEvent)
	return c, nil
}

// AddHandler subscribes to the normalized event stream. Must be called
// before Connect.
func (c *Client) AddHandler(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, fn)
}

// Connect starts the session. For a fresh device the QR channel is
// drained in the background, publishing each code as a session_qr event
// (and optionally rendering it on the terminal).
func (c *Client) Connect(ctx context.Context) error {
	if c.wm.Store.ID == nil {
		qrChan, err := c.wm.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("qr channel: %w", err)
		}
		go c.drainQR(qrChan)
	}
	if err := c.wm.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

func (c *Client) drainQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			c.mu.Lock()
			c.lastQR = evt.Code
			c.lastQRAt = time.Now().UTC()
			c.mu.Unlock()
			if c.cfg.PrintQR {
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			}
			c.emit(Event{
				Name: EventSessionQR,
				Data: map[string]any{"qr": evt.Code},
			})
		case "success":
			c.mu.Lock()
			c.lastQR = ""
			c.mu.Unlock()
			logger.Info("whatsapp session paired")
		default:
			logger.Warn("qr channel event", "event", evt.Event)
		}
	}
}

// Disconnect closes the session and the backing store.
func (c *Client) Disconnect() {
	c.wm.Disconnect()
	c.container.Close()
}

// Logout unpairs the device and clears the stored session.
func (c *Client) Logout(ctx context.Context) error {
	return c.wm.Logout(ctx)
}

// IsReady reports whether the session is connected and logged in.
func (c *Client) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.wm.Store.ID != nil
}

// Status returns the current session state for the dashboard.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := Status{
		Connected: c.connected,
		LoggedIn:  c.wm.Store.ID != nil,
		QRPending: c.lastQR != "",
		LastQRAt:  c.lastQRAt,
	}
	if c.wm.Store.ID != nil {
		st.JID = c.wm.Store.ID.String()
		st.PushName = c.wm.Store.PushName
	}
	return st
}

// PendingQR returns the most recent unscanned QR code, if any.
func (c *Client) PendingQR() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastQR, c.lastQR != ""
}

// SendText delivers a plain text message. chatID accepts a bare phone
// number or a full JID.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	jid, err := ParseJID(chatID)
	if err != nil {
		return err
	}
	_, err = c.wm.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return fmt.Errorf("send to %s: %w", logger.RedactPhone(chatID), err)
	}
	return nil
}

// ParseJID converts a recipient identifier into a WhatsApp JID.
func ParseJID(id string) (types.JID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.EmptyJID, fmt.Errorf("empty recipient")
	}
	if strings.ContainsRune(id, '@') {
		jid, err := types.ParseJID(id)
		if err != nil {
			return types.EmptyJID, fmt.Errorf("invalid JID %q: %w", id, err)
		}
		return jid, nil
	}
	id = strings.TrimLeft(id, "+")
	if id == "" {
		return types.EmptyJID, fmt.Errorf("invalid recipient %q", id)
	}
	return types.NewJID(id, types.DefaultUserServer), nil
}

func (c *Client) emit(evt Event) {
	c.mu.RLock()
	handlers := c.handlers
	c.mu.RUnlock()
	for _, fn := range handlers {
		fn(evt)
	}
}

// handleEvent normalizes raw whatsmeow events into the stream consumed
// by the bridge and the auto-reply engine.
func (c *Client) handleEvent(raw any) {
	switch evt := raw.(type) {
	case *events.Message:
		msg := c.normalizeMessage(evt)
		if msg == nil {
			return
		}
		if c.cfg.ReadReceipt && !msg.FromMe {
			if err := c.wm.MarkRead(context.Background(), []types.MessageID{evt.Info.ID}, time.Now(), evt.Info.Chat, evt.Info.Sender); err != nil {
				logger.Debug("mark read failed", "error", err.Error())
			}
		}
		c.emit(Event{
			Name:    EventMessageReceived,
			Data:    map[string]any{"message": msg},
			Message: msg,
		})

	case *events.Receipt:
		// Read receipts correspond to the final delivery ack.
		if evt.Type != types.ReceiptTypeRead {
			return
		}
		c.emit(Event{
			Name: EventMessageSent,
			Data: map[string]any{
				"chat_id":     evt.Chat.String(),
				"message_ids": evt.MessageIDs,
				"read_at":     evt.Timestamp.UTC(),
			},
		})

	case *events.Connected:
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		c.emit(Event{Name: EventClientConnected, Data: map[string]any{}})

	case *events.Disconnected:
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		c.emit(Event{Name: EventClientDisconnected, Data: map[string]any{"reason": "disconnected"}})

	case *events.LoggedOut:
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		c.emit(Event{Name: EventClientDisconnected, Data: map[string]any{"reason": "logged_out"}})
	}
}

func (c *Client) normalizeMessage(evt *events.Message) *Message {
	body := evt.Message.GetConversation()
	if body == "" && evt.Message.GetExtendedTextMessage() != nil {
		body = evt.Message.GetExtendedTextMessage().GetText()
	}
	if body == "" {
		return nil
	}
	return &Message{
		ID:        evt.Info.ID,
		ChatID:    evt.Info.Chat.String(),
		Sender:    evt.Info.Sender.String(),
		Body:      body,
		FromMe:    evt.Info.IsFromMe,
		IsStatus:  evt.Info.Chat.Server == types.BroadcastServer,
		PushName:  evt.Info.PushName,
		Timestamp: evt.Info.Timestamp.UTC(),
	}
}
