// Package feed delivers price ticks to the lab: a live WebSocket feed for
// market data and a storage-backed replay source for deterministic reruns.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/observability"
)

// Feed errors.
var (
	ErrClosed = errors.New("feed closed")
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
	// Buffer is the tick channel capacity.
	Buffer int
}

// DefaultWSFeedConfig returns default feed configuration.
func DefaultWSFeedConfig() WSFeedConfig {
	return WSFeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		Buffer:            1024,
	}
}

// WSFeed reads JSON-encoded ticks from a WebSocket endpoint. The endpoint
// streams one tick object per text message. Disconnects trigger automatic
// reconnection with exponential backoff; ticks missed while disconnected
// are gone, the signal pipeline's gap handling absorbs the discontinuity.
type WSFeed struct {
	endpoint string
	config   WSFeedConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	ticks chan *domain.Tick
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewWSFeed creates a feed and connects to the endpoint.
func NewWSFeed(ctx context.Context, endpoint string, config *WSFeedConfig, logger *log.Logger) (*WSFeed, error) {
	cfg := DefaultWSFeedConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	f := &WSFeed{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		ticks:    make(chan *domain.Tick, cfg.Buffer),
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

// Ticks returns the tick channel. Closed after Close.
func (f *WSFeed) Ticks() <-chan *domain.Tick {
	return f.ticks
}

// Close shuts the feed down and closes the tick channel.
func (f *WSFeed) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	close(f.ticks)
	return nil
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

// readLoop reads messages until shutdown, reconnecting on errors.
func (f *WSFeed) readLoop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.done:
			return
		default:
		}

		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}
			f.logger.Printf("[feed] read error: %v, reconnecting", err)
			if !f.reconnect() {
				return
			}
			continue
		}

		var tick domain.Tick
		if err := json.Unmarshal(data, &tick); err != nil {
			f.logger.Printf("[feed] malformed tick dropped: %v", err)
			continue
		}
		if tick.InstrumentID == "" || tick.Venue == "" {
			f.logger.Printf("[feed] incomplete tick dropped: %s", data)
			continue
		}

		select {
		case f.ticks <- &tick:
		case <-f.done:
			return
		}
	}
}

// reconnect retries with exponential backoff until connected or shut down.
// Returns false when the feed closed during the attempt.
func (f *WSFeed) reconnect() bool {
	delay := f.config.ReconnectDelay
	for {
		select {
		case <-f.done:
			return false
		case <-time.After(delay):
		}

		if err := f.connect(context.Background()); err != nil {
			f.logger.Printf("[feed] reconnect failed: %v", err)
			delay *= 2
			if delay > f.config.MaxReconnectDelay {
				delay = f.config.MaxReconnectDelay
			}
			continue
		}

		observability.RecordFeedReconnect()
		f.logger.Printf("[feed] reconnected to %s", f.endpoint)
		return true
	}
}

// pingLoop sends ping frames to keep the connection alive.
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
			conn := f.conn
			f.connMu.Unlock()

			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				f.logger.Printf("[feed] ping failed: %v", err)
			}
		}
	}
}
