// Package link connects the simulator to the control plane over a websocket.
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"dronesim/pkg/config"
	"dronesim/pkg/model"
)

// ErrNotConnected is returned when a send is attempted without a connection.
var ErrNotConnected = errors.New("link not connected")

// Link states reported to the local API.
const (
	StateConnected  = "connected"
	StateConnecting = "connecting"
	StateStandalone = "standalone"
)

// Dispatcher accepts inbound commands. Implemented by sim.Simulator.
type Dispatcher interface {
	Submit(cmd model.Command) bool
}

// Stats holds transport counters.
type Stats struct {
	Sent       int64 `json:"sent"`
	Dropped    int64 `json:"dropped"`
	Discarded  int64 `json:"discarded"` // published while disconnected
	Received   int64 `json:"received"`
	Rejected   int64 `json:"rejected"` // malformed or unknown inbound messages
	Reconnects int64 `json:"reconnects"`
}

// Client maintains the control-plane connection. It implements the
// simulator's event sink: publishes are queued and never block.
type Client struct {
	cfg      config.LinkConfig
	dispatch Dispatcher
	dialer   *websocket.Dialer
	queue    *Queue
	backoff  *Backoff

	connected atomic.Bool
	sent      atomic.Int64
	discarded atomic.Int64
	received  atomic.Int64
	rejected  atomic.Int64
	connects  atomic.Int64

	mu      sync.Mutex
	lastErr error
}

// NewClient creates a link client. Call Run to start connecting.
func NewClient(cfg *config.LinkConfig, d Dispatcher) *Client {
	return &Client{
		cfg:      *cfg,
		dispatch: d,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout.Std(),
		},
		queue:   NewQueue(cfg.QueueSize),
		backoff: NewBackoff(cfg.Backoff.BaseDelay.Std(), cfg.Backoff.MaxDelay.Std()),
	}
}

// Run connects and reconnects until ctx is cancelled. With no URL configured
// it returns immediately and the simulator runs standalone.
func (c *Client) Run(ctx context.Context) error {
	if c.cfg.URL == "" {
		slog.Info("No control plane configured; running in standalone mode")
		return nil
	}

	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.setErr(err)
			delay := c.backoff.RecordFailure()
			failures := c.backoff.Failures()
			switch {
			case failures == c.cfg.Backoff.MaxAttempts:
				slog.Warn("Control plane unreachable, continuing in standalone mode", "url", c.cfg.URL, "attempts", failures, "error", err)
			case failures < c.cfg.Backoff.MaxAttempts:
				slog.Warn("Failed to connect to control plane", "url", c.cfg.URL, "attempt", failures, "retry_in", delay.Round(time.Millisecond), "error", err)
			default:
				slog.Debug("Control plane still unreachable", "attempt", failures, "retry_in", delay.Round(time.Millisecond))
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}

		c.backoff.Reset()
		c.setErr(nil)
		if c.connects.Add(1) > 1 {
			slog.Info("Reconnected to control plane", "url", c.cfg.URL)
		} else {
			slog.Info("Connected to control plane", "url", c.cfg.URL)
		}

		err = c.serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("Control plane connection lost", "error", err)
		c.setErr(err)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// serve runs the read and write pumps until either fails or ctx ends.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Frames queued before this connection are stale
	c.queue.Clear()
	c.connected.Store(true)

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		connErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { connErr = err })
		cancel()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		fail(c.readPump(conn))
	}()
	go func() {
		defer wg.Done()
		fail(c.writePump(ctx, conn))
	}()

	<-ctx.Done()
	c.connected.Store(false)

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	conn.Close()
	wg.Wait()

	return connErr
}

func (c *Client) readPump(conn *websocket.Conn) error {
	hb := c.cfg.Heartbeat.Std()
	if hb > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(2 * hb))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * hb))
		})
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}
		if hb > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(2 * hb))
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg []byte) {
	cmd, ok, err := model.ParseCommand(msg)
	if err != nil {
		c.rejected.Add(1)
		slog.Warn("Dropping malformed message from control plane", "error", err)
		return
	}
	if !ok {
		c.rejected.Add(1)
		slog.Debug("Ignoring non-command message from control plane")
		return
	}
	c.received.Add(1)
	slog.Debug("Command received", "action", cmd.Action)
	if !c.dispatch.Submit(cmd) {
		slog.Warn("Simulator rejected command", "action", cmd.Action)
	}
}

func (c *Client) writePump(ctx context.Context, conn *websocket.Conn) error {
	var pings <-chan time.Time
	if hb := c.cfg.Heartbeat.Std(); hb > 0 {
		ticker := time.NewTicker(hb)
		defer ticker.Stop()
		pings = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.queue.C():
			if err := c.write(conn, websocket.TextMessage, msg); err != nil {
				return err
			}
			c.sent.Add(1)
		case <-pings:
			if err := c.write(conn, websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (c *Client) write(conn *websocket.Conn, msgType int, data []byte) error {
	if wt := c.cfg.WriteTimeout.Std(); wt > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(wt))
	}
	if err := conn.WriteMessage(msgType, data); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// Send queues a typed message. It returns ErrNotConnected while offline;
// the message is discarded rather than buffered.
func (c *Client) Send(msgType string, v any) error {
	if !c.connected.Load() {
		c.discarded.Add(1)
		return ErrNotConnected
	}
	msg, err := model.NewEnvelope(msgType, v)
	if err != nil {
		return err
	}
	if c.queue.Push(msg) {
		if n := c.queue.Dropped(); n == 1 || n%100 == 0 {
			slog.Warn("Outbound queue full, dropping oldest messages", "dropped_total", n)
		}
	}
	return nil
}

// PublishTelemetry implements the simulator event sink.
func (c *Client) PublishTelemetry(t *model.Telemetry) {
	c.publish(model.TypeTelemetry, t)
}

// PublishStatus implements the simulator event sink.
func (c *Client) PublishStatus(ev *model.StatusEvent) {
	c.publish(model.TypeMissionStatus, ev)
}

func (c *Client) publish(msgType string, v any) {
	if err := c.Send(msgType, v); err != nil && !errors.Is(err, ErrNotConnected) {
		slog.Error("Failed to queue message", "type", msgType, "error", err)
	}
}

// Connected reports whether a control-plane connection is up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// State returns connected, connecting or standalone.
func (c *Client) State() string {
	switch {
	case c.connected.Load():
		return StateConnected
	case c.cfg.URL == "" || c.backoff.Failures() >= c.cfg.Backoff.MaxAttempts:
		return StateStandalone
	default:
		return StateConnecting
	}
}

// LastError returns the most recent connection error, if any.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
}

// Stats returns a snapshot of the transport counters.
func (c *Client) Stats() Stats {
	reconnects := c.connects.Load() - 1
	if reconnects < 0 {
		reconnects = 0
	}
	return Stats{
		Sent:       c.sent.Load(),
		Dropped:    c.queue.Dropped(),
		Discarded:  c.discarded.Load(),
		Received:   c.received.Load(),
		Rejected:   c.rejected.Load(),
		Reconnects: reconnects,
	}
}
