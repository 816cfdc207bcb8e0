// Package pushchannel holds the client side of the business-scoped push
// channel: one websocket per subscriber, decode once at the boundary,
// dispatch to per-type handler sets. Reconnection policy and auth belong to
// the channel provider; this package only owns decode-and-dispatch.
package pushchannel

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/probabilityIA/invoicing-console/internal/domain/event"
)

// Handler consumes one decoded event. Handlers run on the channel's read
// goroutine, in the channel's own delivery order; a slow handler simply
// delays subsequent messages.
type Handler func(event.Event)

type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: logger.Named("pushchannel"),
	}
}

func NewFromEnv(logger *zap.Logger) *Client {
	return NewClient(LoadFromEnv(), logger)
}

// Subscription is an open, business-scoped channel. It is owned by whoever
// created it and must be closed on teardown of the owning view or job.
type Subscription struct {
	ID         string
	businessID string

	conn   *websocket.Conn
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[event.Type][]Handler

	closeOnce sync.Once
	done      chan struct{}
}

// Subscribe opens a channel scoped to one business and the given event
// types. The returned subscription delivers nothing until handlers are
// registered with On.
func (c *Client) Subscribe(ctx context.Context, businessID string, types []event.Type) (*Subscription, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	q := u.Query()
	q.Set("business_id", businessID)
	q.Set("events", strings.Join(names, ","))
	u.RawQuery = q.Encode()

	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	sub := &Subscription{
		ID:         uuid.NewString(),
		businessID: businessID,
		conn:       conn,
		logger:     c.logger.With(zap.String("business_id", businessID)),
		handlers:   make(map[event.Type][]Handler),
		done:       make(chan struct{}),
	}

	go sub.readPump(c.cfg.PongWait)

	c.logger.Info("channel_subscribed",
		zap.String("subscription_id", sub.ID),
		zap.String("business_id", businessID),
		zap.Int("event_types", len(types)),
	)

	return sub, nil
}

// On registers a handler for one event type. Multiple handlers per type are
// allowed and called in registration order.
func (s *Subscription) On(t event.Type, h Handler) {
	s.mu.Lock()
	s.handlers[t] = append(s.handlers[t], h)
	s.mu.Unlock()
}

// Close detaches the subscription. Local state updates stop; any server-side
// work already in flight continues regardless.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = s.conn.Close()
		<-s.done
	})
}

// Done is closed once the read pump has exited, whether by Close or by the
// peer dropping the connection.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) readPump(pongWait time.Duration) {
	defer close(s.done)

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	s.conn.SetPingHandler(func(appData string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("channel_read_failed", zap.Error(err))
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.dispatch(raw)
	}
}

func (s *Subscription) dispatch(raw []byte) {
	ev, err := event.Decode(raw)
	if err != nil {
		// Heartbeats and unrelated traffic land here. Not an error.
		messagesDiscarded.Inc()
		s.logger.Debug("channel_message_discarded", zap.Int("bytes", len(raw)))
		return
	}

	// The provider scopes delivery by business; this guard only catches a
	// misbehaving endpoint.
	if ev.Business() != "" && s.businessID != "" && ev.Business() != s.businessID {
		messagesDiscarded.Inc()
		s.logger.Warn("channel_business_mismatch",
			zap.String("event_type", string(ev.EventType())),
			zap.String("event_business_id", ev.Business()),
		)
		return
	}

	s.mu.RLock()
	handlers := s.handlers[ev.EventType()]
	s.mu.RUnlock()

	eventsDispatched.WithLabelValues(string(ev.EventType())).Inc()
	for _, h := range handlers {
		h(ev)
	}
}
