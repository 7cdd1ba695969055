// Package websocket maintains the persistent realtime connection to the
// backend. It is the sole producer of inbound events: everything else in the
// client subscribes here instead of touching the socket.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"unimarket/internal/domain/entity"
	"unimarket/pkg/logger"
)

// TokenProvider supplies the bearer token used at handshake time. An empty
// token stops the connect loop until the channel is restarted after login.
type TokenProvider interface {
	AccessToken() string
}

const (
	pingInterval   = 30 * time.Second
	writeWait      = 10 * time.Second
	baseRetryDelay = time.Second
	maxRetryDelay  = 30 * time.Second

	// After this many consecutive failed dials the channel reports itself
	// degraded so the UI can fall back to polling. Dialing continues in the
	// background regardless.
	degradedAfter = 5
)

type Channel struct {
	url      string
	tokens   TokenProvider
	dialer   *websocket.Dialer
	validate *validator.Validate

	mu      sync.RWMutex
	subs    map[int]func(Event)
	nextSub int
	cancel  context.CancelFunc
	running bool

	outgoing chan WSMessage
}

// NewChannel builds a channel for the given REST base URL; the realtime
// endpoint lives at /v1/ws on the same host.
func NewChannel(baseURL string, tokens TokenProvider) *Channel {
	wsURL := strings.TrimRight(baseURL, "/")
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)

	return &Channel{
		url:      wsURL + "/v1/ws",
		tokens:   tokens,
		dialer:   websocket.DefaultDialer,
		validate: validator.New(),
		subs:     make(map[int]func(Event)),
		outgoing: make(chan WSMessage, 16),
	}
}

// Subscribe registers fn for every event. Subscriptions survive
// reconnection; the returned function removes them.
func (c *Channel) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Start begins the connect loop. Calling Start on a running channel is a
// no-op, so login/logout cycles can call it freely.
func (c *Channel) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	go c.run(runCtx)
}

// Stop tears the connection down. Subscriptions are kept for the next Start.
func (c *Channel) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.running = false
	c.mu.Unlock()
}

// SendMarkRead emits a read receipt over the socket. Best effort: when the
// buffer is full or the channel is down the frame is dropped, the REST
// mark-read call remains authoritative.
func (c *Channel) SendMarkRead(conversationID string) {
	c.enqueue(WSMessage{
		Type:      MessageTypeMarkRead,
		ChatID:    conversationID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// SendTyping emits a typing indicator for the conversation.
func (c *Channel) SendTyping(conversationID string, typing bool) {
	data, _ := json.Marshal(map[string]bool{"typing": typing})
	c.enqueue(WSMessage{
		Type:      MessageTypeTyping,
		ChatID:    conversationID,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *Channel) enqueue(msg WSMessage) {
	select {
	case c.outgoing <- msg:
	default:
		logger.Debug("realtime: outgoing buffer full, dropping %s frame", msg.Type)
	}
}

func (c *Channel) run(ctx context.Context) {
	retries := 0
	degraded := false

	for {
		if ctx.Err() != nil {
			return
		}

		token := c.tokens.AccessToken()
		if token == "" {
			// No session; nothing to authenticate with.
			return
		}

		header := http.Header{}
		header.Set("Authorization", "Bearer "+token)

		conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
		if err != nil {
			if resp != nil {
				resp.Body.Close()
			}
			retries++
			logger.Warn("realtime: connect attempt %d failed: %v", retries, err)
			if retries >= degradedAfter && !degraded {
				degraded = true
				c.emit(Event{Type: EventDegraded})
			}

			select {
			case <-time.After(retryDelay(retries)):
				continue
			case <-ctx.Done():
				return
			}
		}

		retries = 0
		degraded = false
		logger.Info("realtime: connected")
		c.emit(Event{Type: EventConnected})

		c.serve(ctx, conn)
		logger.Warn("realtime: connection lost, reconnecting")
	}
}

func retryDelay(attempt int) time.Duration {
	delay := baseRetryDelay << uint(attempt-1)
	if delay > maxRetryDelay || delay <= 0 {
		delay = maxRetryDelay
	}
	return delay
}

// serve runs the read loop and a writer goroutine until either side fails.
func (c *Channel) serve(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	defer conn.Close()

	go func() {
		select {
		case <-ctx.Done():
			// WriteControl is safe alongside the writer goroutine. A
			// stalled peer never answers the close frame, so the conn is
			// closed outright to unblock the read loop; it must not
			// outlive the session.
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
		case <-done:
		}
	}()

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case msg := <-c.outgoing:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					logger.Debug("realtime: write failed: %v", err)
					return
				}
			case <-ticker.C:
				ping := WSMessage{Type: MessageTypePing, Timestamp: time.Now().UTC().Format(time.RFC3339)}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(ping); err != nil {
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("realtime: read failed: %v", err)
			}
			return
		}
		c.dispatch(raw)
	}
}

// dispatch parses and validates one inbound frame, then fans the event out.
// Frames that fail validation never reach a subscriber.
func (c *Channel) dispatch(raw []byte) {
	var frame WSMessage
	if err := json.Unmarshal(raw, &frame); err != nil {
		logger.Warn("realtime: dropping malformed frame: %v", err)
		return
	}

	switch frame.Type {
	case MessageTypePong:
		return

	case MessageTypeMessage:
		var data MessageData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			logger.Warn("realtime: dropping bad message frame: %v", err)
			return
		}
		if err := c.validate.Struct(&data); err != nil {
			logger.Warn("realtime: dropping invalid message frame: %v", err)
			return
		}
		c.emit(Event{Type: EventMessage, Message: data.toEntity()})

	case MessageTypeDeliveryReceipt, MessageTypeReadReceipt:
		var data DeliveryReceiptData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			logger.Warn("realtime: dropping bad receipt frame: %v", err)
			return
		}
		if err := c.validate.Struct(&data); err != nil {
			logger.Warn("realtime: dropping invalid receipt frame: %v", err)
			return
		}
		status := entity.MessageStatus(data.Status)
		if status == "" {
			if frame.Type == MessageTypeReadReceipt {
				status = entity.MessageRead
			} else {
				status = entity.MessageDelivered
			}
		}
		c.emit(Event{Type: EventAck, Ack: &Ack{
			ConversationID: data.ChatID,
			TempID:         data.TempID,
			MessageID:      data.MessageID,
			Status:         status,
		}})

	case MessageTypeTransaction:
		var tx entity.Transaction
		if err := json.Unmarshal(frame.Data, &tx); err != nil {
			logger.Warn("realtime: dropping bad transaction frame: %v", err)
			return
		}
		if err := c.validate.Struct(&tx); err != nil {
			logger.Warn("realtime: dropping invalid transaction frame: %v", err)
			return
		}
		c.emit(Event{Type: EventTransaction, Transaction: &tx})

	case MessageTypePresence:
		var data PresenceData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return
		}
		if err := c.validate.Struct(&data); err != nil {
			return
		}
		c.emit(Event{Type: EventPresence, Presence: &Presence{UserID: data.UserID, IsOnline: data.IsOnline}})

	case MessageTypeError:
		logger.Warn("realtime: server error frame: %s", string(frame.Data))

	default:
		logger.Debug("realtime: ignoring unknown frame type %q", frame.Type)
	}
}

func (c *Channel) emit(ev Event) {
	c.mu.RLock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
