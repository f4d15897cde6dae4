// Package transport connects the ingestion pipeline to upstream payload
// sources.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"pumploss/internal/classifier"
)

// WSFeedConfig configures WebSocket feed behavior.
type WSFeedConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSFeedConfig returns default feed configuration.
func DefaultWSFeedConfig() WSFeedConfig {
	return WSFeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSFeed consumes an enhanced-transaction stream over WebSocket. Each
// message is a JSON array of transaction payloads (a single object is
// accepted too) and is delivered as one batch on Batches. The feed
// reconnects with exponential backoff and never drops a read batch:
// delivery blocks until the consumer takes it or the feed closes.
type WSFeed struct {
	endpoint string
	config   WSFeedConfig
	logger   *slog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	reconnecting atomic.Bool

	out  chan []classifier.TransactionPayload
	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSFeed connects to the endpoint and starts the read and ping loops.
func NewWSFeed(ctx context.Context, endpoint string, config *WSFeedConfig, logger *slog.Logger) (*WSFeed, error) {
	cfg := DefaultWSFeedConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = slog.Default()
	}

	f := &WSFeed{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		out:      make(chan []classifier.TransactionPayload, 256),
		done:     make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	f.wg.Add(1)
	go f.pingLoop()

	return f, nil
}

// Batches returns the channel of payload batches.
func (f *WSFeed) Batches() <-chan []classifier.TransactionPayload {
	return f.out
}

// connect establishes the WebSocket connection.
func (f *WSFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	f.conn = conn
	return nil
}

// Close closes the connection and the batch channel.
func (f *WSFeed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	close(f.out)
	return nil
}

// readLoop reads messages and dispatches batches until closed. A read error
// hands the connection over to redialLoop and waits for a fresh one.
func (f *WSFeed) readLoop() {
	defer f.wg.Done()

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}

			if !f.reconnecting.Swap(true) {
				go f.redialLoop()
			}

			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		f.handleMessage(message)
	}
}

// handleMessage decodes one message into a payload batch.
func (f *WSFeed) handleMessage(message []byte) {
	var batch []classifier.TransactionPayload
	if err := json.Unmarshal(message, &batch); err != nil {
		var single classifier.TransactionPayload
		if err := json.Unmarshal(message, &single); err != nil || single.Signature == "" {
			f.logger.Warn("undecodable feed message", "bytes", len(message))
			return
		}
		batch = []classifier.TransactionPayload{single}
	}
	if len(batch) == 0 {
		return
	}

	select {
	case f.out <- batch:
	case <-f.done:
	}
}

// redialLoop drops the dead connection and redials with exponential backoff
// until it connects or the feed closes. A transient dial failure must not
// strand the feed without a connection.
func (f *WSFeed) redialLoop() {
	defer f.reconnecting.Store(false)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	delay := f.config.ReconnectDelay
	for !f.closed.Load() {
		select {
		case <-f.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := f.connect(ctx)
		cancel()
		if err == nil {
			if f.closed.Load() {
				f.connMu.Lock()
				if f.conn != nil {
					f.conn.Close()
					f.conn = nil
				}
				f.connMu.Unlock()
				return
			}
			f.logger.Info("websocket reconnected", "endpoint", f.endpoint)
			return
		}
		f.logger.Warn("websocket reconnect failed", "error", err, "retry_in", delay)

		delay *= 2
		if delay > f.config.MaxReconnectDelay {
			delay = f.config.MaxReconnectDelay
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (f *WSFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
				if err := f.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Reader notices the dead connection and reconnects.
				}
			}
			f.connMu.Unlock()
		}
	}
}
