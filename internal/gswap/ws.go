package gswap

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
)

// StatusStreamConfig configures the transaction-status WebSocket client.
type StatusStreamConfig struct {
	// ReconnectDelay is initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultStatusStreamConfig returns default stream configuration.
func DefaultStatusStreamConfig() StatusStreamConfig {
	return StatusStreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// StatusStream receives push updates for submitted transactions over a
// WebSocket, avoiding status polling while a route waits on confirmation.
// It implements Confirmer; the HTTP client's polling path is the fallback
// when no stream endpoint is configured.
type StatusStream struct {
	endpoint string
	config   StatusStreamConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// waiters maps transaction ID to the channel its route is blocked on.
	waiters   map[string]chan *domain.Confirmation
	waitersMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// statusEvent is the wire format of one push update.
type statusEvent struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	BlockInfo     string `json:"blockInfo,omitempty"`
	Error         string `json:"error,omitempty"`
}

// subscribeMessage registers interest in one transaction.
type subscribeMessage struct {
	Method        string `json:"method"`
	TransactionID string `json:"transactionId"`
}

// NewStatusStream connects to the venue's status endpoint and starts the
// read loop.
func NewStatusStream(ctx context.Context, endpoint string, config *StatusStreamConfig) (*StatusStream, error) {
	cfg := DefaultStatusStreamConfig()
	if config != nil {
		cfg = *config
	}

	s := &StatusStream{
		endpoint: endpoint,
		config:   cfg,
		waiters:  make(map[string]chan *domain.Confirmation),
		done:     make(chan struct{}),
	}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

var _ Confirmer = (*StatusStream)(nil)

// connect establishes the WebSocket connection.
func (s *StatusStream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	s.conn = conn
	return nil
}

// AwaitConfirmation implements Confirmer. It subscribes to the transaction
// and blocks until a terminal status arrives or the timeout elapses, in
// which case it returns a TIMEOUT confirmation.
func (s *StatusStream) AwaitConfirmation(ctx context.Context, handle *TxHandle, timeout time.Duration) (*domain.Confirmation, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("status stream closed")
	}
	if handle == nil || handle.ID == "" {
		return nil, fmt.Errorf("await confirmation: empty transaction handle")
	}

	ch := make(chan *domain.Confirmation, 1)
	s.waitersMu.Lock()
	s.waiters[handle.ID] = ch
	s.waitersMu.Unlock()
	defer func() {
		s.waitersMu.Lock()
		delete(s.waiters, handle.ID)
		s.waitersMu.Unlock()
	}()

	if err := s.writeJSON(subscribeMessage{Method: "subscribe", TransactionID: handle.ID}); err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", handle.ID, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case conf := <-ch:
		return conf, nil
	case <-timer.C:
		return &domain.Confirmation{Status: domain.ConfirmationTimeout}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, fmt.Errorf("status stream closed")
	}
}

// readLoop dispatches push updates to waiting routes, reconnecting with
// backoff on read failures.
func (s *StatusStream) readLoop() {
	defer s.wg.Done()

	delay := s.config.ReconnectDelay
	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			select {
			case <-s.done:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > s.config.MaxReconnectDelay {
				delay = s.config.MaxReconnectDelay
			}
			if err := s.connect(context.Background()); err != nil {
				continue
			}
			delay = s.config.ReconnectDelay
			continue
		}

		var event statusEvent
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		conf := parseConfirmation(event.Status, event.BlockInfo, event.Error)
		if conf.Status == domain.ConfirmationUnknown {
			// Not terminal yet; the waiter keeps waiting.
			continue
		}

		s.waitersMu.Lock()
		ch, ok := s.waiters[event.TransactionID]
		s.waitersMu.Unlock()
		if ok {
			select {
			case ch <- conf:
			default:
			}
		}
	}
}

// pingLoop keeps the connection alive.
func (s *StatusStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				_ = s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteTimeout))
			}
			s.connMu.Unlock()
		}
	}
}

func (s *StatusStream) writeJSON(v interface{}) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return s.conn.WriteJSON(v)
}

// Close shuts down the stream and unblocks all waiters.
func (s *StatusStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}
