package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nxx-sync/nxx/internal/domain/event"
)

// Message results.
const (
	ResultDelivered = "delivered"
	ResultDropped   = "dropped"
	ResultFailed    = "failed"
)

// Settings tunes connection handling.
type Settings struct {
	WriteTimeout time.Duration
	BindingTTL   time.Duration
	// PingInterval is how often the server pings and refreshes the device binding.
	// Must be shorter than BindingTTL.
	PingInterval time.Duration
	SendBuffer   int
}

// DefaultSettings returns the settings used when none are given.
func DefaultSettings() Settings {
	return Settings{
		WriteTimeout: 10 * time.Second,
		BindingTTL:   90 * time.Second,
		PingInterval: 30 * time.Second,
		SendBuffer:   64,
	}
}

// Gateway is a push transport worker. Devices hold WebSocket connections to it and
// it delivers the notifications queued for them on its own queue.
type Gateway struct {
	id        string
	queueName string
	bindings  Bindings
	consumer  Consumer
	settings  Settings
	logger    *zap.Logger
	upgrader  gws.Upgrader

	connections prometheus.Gauge
	messages    *prometheus.CounterVec

	mu    sync.Mutex
	conns map[string]*conn
}

// New creates a gateway with a fresh worker id. Its queue is queuePrefix + id.
func New(bindings Bindings, consumer Consumer, queuePrefix string, logger *zap.Logger) *Gateway {
	id := uuid.NewString()
	return &Gateway{
		id:        id,
		queueName: queuePrefix + id,
		bindings:  bindings,
		consumer:  consumer,
		settings:  DefaultSettings(),
		logger:    logger.With(zap.String("worker_id", id)),
		upgrader: gws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[string]*conn),
	}
}

// WithSettings overrides connection settings. Zero fields keep their defaults.
func (g *Gateway) WithSettings(s Settings) *Gateway {
	if s.WriteTimeout > 0 {
		g.settings.WriteTimeout = s.WriteTimeout
	}
	if s.BindingTTL > 0 {
		g.settings.BindingTTL = s.BindingTTL
	}
	if s.PingInterval > 0 {
		g.settings.PingInterval = s.PingInterval
	}
	if s.SendBuffer > 0 {
		g.settings.SendBuffer = s.SendBuffer
	}
	return g
}

// WithMetrics sets the open connection gauge and the message counter (label "result").
func (g *Gateway) WithMetrics(connections prometheus.Gauge, messages *prometheus.CounterVec) *Gateway {
	g.connections = connections
	g.messages = messages
	return g
}

// ID returns the worker id.
func (g *Gateway) ID() string { return g.id }

// Queue returns the queue this worker consumes.
func (g *Gateway) Queue() string { return g.queueName }

// Run consumes the worker queue until ctx is cancelled, then closes every connection.
func (g *Gateway) Run(ctx context.Context) error {
	defer g.closeAll()
	return g.consumer.Consume(ctx, g.queueName, g.deliver) //nolint:wrapcheck // queue errors carry their own context
}

// ServeHTTP upgrades a device connection. The device is identified by the deviceId
// query parameter.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")
	if deviceID == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"bad_request","message":"deviceId is required"}` + "\n"))
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Info("upgrade failed", zap.String("device_id", deviceID), zap.Error(err))
		return
	}

	c := newConn(ws, g.settings.SendBuffer)
	g.register(deviceID, c)

	log := g.logger.With(zap.String("device_id", deviceID))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := g.bindings.Bind(ctx, deviceID, g.queueName, g.settings.BindingTTL); err != nil {
		log.Warn("bind failed", zap.Error(err))
		g.unregister(deviceID, c)
		c.close()
		return
	}
	log.Debug("device connected")

	go g.readLoop(c)
	g.writeLoop(ctx, deviceID, c, log)

	if g.unregister(deviceID, c) {
		unbindCtx, unbindCancel := context.WithTimeout(context.Background(), g.settings.WriteTimeout)
		defer unbindCancel()
		if err := g.bindings.Unbind(unbindCtx, deviceID, g.queueName); err != nil {
			log.Warn("unbind failed", zap.Error(err))
		}
	}
	log.Debug("device disconnected")
}

func (g *Gateway) writeLoop(ctx context.Context, deviceID string, c *conn, log *zap.Logger) {
	defer c.close()

	ticker := time.NewTicker(g.settings.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(g.settings.WriteTimeout))
			if err := c.ws.WriteMessage(gws.TextMessage, msg); err != nil {
				// a write deadline cannot be recovered from
				log.Info("write failed", zap.Error(err))
				g.count(ResultFailed)
				return
			}
			g.count(ResultDelivered)
		case <-ticker.C:
			deadline := time.Now().Add(g.settings.WriteTimeout)
			if err := c.ws.WriteControl(gws.PingMessage, nil, deadline); err != nil {
				return
			}
			if err := g.bindings.Bind(ctx, deviceID, g.queueName, g.settings.BindingTTL); err != nil {
				log.Warn("binding refresh failed", zap.Error(err))
			}
		}
	}
}

// readLoop drains client frames so control frames are processed, and ends the
// connection when the client goes away.
func (g *Gateway) readLoop(c *conn) {
	defer c.close()

	readTimeout := 2 * g.settings.PingInterval
	_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

// deliver hands one queued notification to the device's live connection.
// Notifications for devices that are no longer connected here are dropped.
func (g *Gateway) deliver(_ context.Context, body []byte) error {
	var n event.Notification
	if err := json.Unmarshal(body, &n); err != nil || n.DeviceID == "" {
		g.logger.Warn("undeliverable message", zap.ByteString("body", body), zap.Error(err))
		g.count(ResultDropped)
		return nil
	}

	g.mu.Lock()
	c, ok := g.conns[n.DeviceID]
	g.mu.Unlock()
	if !ok {
		g.logger.Debug("device not connected, dropping", zap.String("device_id", n.DeviceID))
		g.count(ResultDropped)
		return nil
	}

	select {
	case c.send <- body:
	case <-c.done:
		g.count(ResultDropped)
	default:
		g.logger.Warn("send buffer full, dropping", zap.String("device_id", n.DeviceID))
		g.count(ResultDropped)
	}
	return nil
}

// register makes c the live connection of deviceID, closing any previous one.
func (g *Gateway) register(deviceID string, c *conn) {
	g.mu.Lock()
	prev := g.conns[deviceID]
	g.conns[deviceID] = c
	g.mu.Unlock()

	if prev != nil {
		prev.close()
	} else if g.connections != nil {
		g.connections.Inc()
	}
}

// unregister removes c if it is still the live connection of deviceID.
func (g *Gateway) unregister(deviceID string, c *conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conns[deviceID] != c {
		return false
	}
	delete(g.conns, deviceID)
	if g.connections != nil {
		g.connections.Dec()
	}
	return true
}

// connected reports whether deviceID holds a live connection to this worker.
func (g *Gateway) connected(deviceID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.conns[deviceID]
	return ok
}

func (g *Gateway) closeAll() {
	g.mu.Lock()
	conns := make([]*conn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

func (g *Gateway) count(result string) {
	if g.messages != nil {
		g.messages.WithLabelValues(result).Inc()
	}
}

type conn struct {
	ws        *gws.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *gws.Conn, buffer int) *conn {
	return &conn{ws: ws, send: make(chan []byte, buffer), done: make(chan struct{})}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
