// Package client implements the CARTA protocol client: a websocket
// connection, a connect→register→ready state machine, and dispatch of
// decoded messages to type-registered handlers.
//
// Responses are correlated by message type, not request ID: all handlers
// registered for an incoming type are invoked. Reconnection is not
// automatic; after a drop the caller must Connect again.
package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dsa110/cartaview/pkg/icd"
)

// tracerName is the OpenTelemetry tracer used for connection spans.
const tracerName = "cartaview/client"

// Status is the connection state of the client.
type Status int32

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusRegistering
	StatusReady
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting"
	case StatusRegistering:
		return "Registering"
	case StatusReady:
		return "Ready"
	default:
		return "Unknown"
	}
}

// Handler consumes one decoded message. Handlers run sequentially on the
// read-loop goroutine; a slow handler stalls dispatch.
type Handler func(msg *icd.Message)

// Client owns one socket to a CARTA-compatible server.
type Client struct {
	config *Config

	status    atomic.Int32
	requestID atomic.Uint32
	sessionID atomic.Uint32

	writeMu sync.Mutex // serializes socket writes
	conn    *websocket.Conn

	handlerMu sync.RWMutex
	handlers  map[icd.MessageType][]Handler

	mu       sync.Mutex // guards conn swap and lifecycle channels
	closed   chan struct{}
	readDone chan struct{}
}

// New creates a client for the given endpoint with default configuration.
func New(url string) *Client {
	return NewWithConfig(DefaultConfig(url))
}

// NewWithConfig creates a client from an explicit configuration.
func NewWithConfig(config *Config) *Client {
	return &Client{
		config:   config.withDefaults(),
		handlers: make(map[icd.MessageType][]Handler),
	}
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	return Status(c.status.Load())
}

// SessionID returns the session ID assigned by the last successful
// handshake, or zero.
func (c *Client) SessionID() uint32 {
	return c.sessionID.Load()
}

// OnMessage registers a handler for a message type. Multiple handlers per
// type are allowed and all are invoked in registration order.
func (c *Client) OnMessage(mt icd.MessageType, h Handler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handlers[mt] = append(c.handlers[mt], h)
}

// Connect dials the endpoint and completes the REGISTER_VIEWER handshake.
// The client is Ready when Connect returns nil; any error leaves it
// Disconnected. Connect on a non-disconnected client fails with
// ErrAlreadyConnected.
func (c *Client) Connect(ctx context.Context) error {
	if !c.status.CompareAndSwap(int32(StatusDisconnected), int32(StatusConnecting)) {
		return ErrAlreadyConnected
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "client.Connect",
		trace.WithAttributes(attribute.String("carta.url", c.config.URL)))
	defer span.End()

	err := c.connect(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.status.Store(int32(StatusDisconnected))
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return &OpError{Op: "dial", Err: err}
	}
	conn.SetReadLimit(c.config.MaxMessageSize)

	readDone := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.closed = make(chan struct{})
	c.readDone = readDone
	c.mu.Unlock()

	c.status.Store(int32(StatusRegistering))

	// The ack channel must exist before the read loop starts so the
	// handshake response cannot be missed.
	ackCh := make(chan *icd.RegisterViewerAck, 1)
	go c.readLoop(conn, ackCh, readDone)

	payload := icd.EncodeRegisterViewer(&icd.RegisterViewer{APIKey: c.config.APIKey})
	if err := c.write(conn, icd.TypeRegisterViewer, payload); err != nil {
		c.teardown(conn)
		return &OpError{Op: "register", Err: err}
	}

	timer := time.NewTimer(c.config.HandshakeTimeout)
	defer timer.Stop()

	select {
	case ack := <-ackCh:
		if !ack.Success {
			c.teardown(conn)
			return &OpError{Op: "register", Err: ErrHandshakeFailed}
		}
		c.sessionID.Store(ack.SessionID)
		c.status.Store(int32(StatusReady))
		c.config.Logger.Info("registered with server",
			"url", c.config.URL, "session_id", ack.SessionID)
		return nil

	case <-c.readDoneCh():
		c.teardown(conn)
		return &OpError{Op: "register", Err: ErrConnectionClosed}

	case <-timer.C:
		c.teardown(conn)
		return &OpError{Op: "register", Err: ErrHandshakeTimeout}

	case <-ctx.Done():
		c.teardown(conn)
		return &OpError{Op: "register", Err: ctx.Err()}
	}
}

// Disconnect closes the socket and flips the status to Disconnected.
// Safe to call in any state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()

	if closed != nil {
		select {
		case <-closed:
		default:
			close(closed)
		}
	}
	if conn != nil {
		conn.Close()
	}
	c.status.Store(int32(StatusDisconnected))
}

// teardown closes the connection after a failed connect attempt.
func (c *Client) teardown(conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	if c.closed != nil {
		select {
		case <-c.closed:
		default:
			close(c.closed)
		}
	}
	c.mu.Unlock()
}

func (c *Client) readDoneCh() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readDone
}

// Send encodes and sends one message. It fails with ErrNotReady outside
// the Ready state and returns the request ID assigned to the message.
func (c *Client) Send(mt icd.MessageType, payload []byte) (uint32, error) {
	if c.Status() != StatusReady {
		return 0, &OpError{Op: "send " + mt.String(), Err: ErrNotReady}
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return 0, &OpError{Op: "send " + mt.String(), Err: ErrConnectionClosed}
	}

	id := c.requestID.Add(1)
	if err := c.writeWithID(conn, mt, id, payload); err != nil {
		return 0, &OpError{Op: "send " + mt.String(), Err: err}
	}
	return id, nil
}

func (c *Client) write(conn *websocket.Conn, mt icd.MessageType, payload []byte) error {
	return c.writeWithID(conn, mt, c.requestID.Add(1), payload)
}

func (c *Client) writeWithID(conn *websocket.Conn, mt icd.MessageType, id uint32, payload []byte) error {
	data := icd.CombineMessage(mt, id, icd.CurrentVersion, payload)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// OpenFile asks the server to open an image file. Ready state required.
func (c *Client) OpenFile(of *icd.OpenFile) (uint32, error) {
	return c.Send(icd.TypeOpenFile, icd.EncodeOpenFile(of))
}

// SetImageView tells the server the visible sub-volume. Ready state
// required.
func (c *Client) SetImageView(v *icd.SetImageView) (uint32, error) {
	return c.Send(icd.TypeSetImageView, icd.EncodeSetImageView(v))
}

// SetRegion defines or replaces a region. Ready state required.
func (c *Client) SetRegion(sr *icd.SetRegion) (uint32, error) {
	return c.Send(icd.TypeSetRegion, icd.EncodeSetRegion(sr))
}

// readLoop reads messages until the socket drops, decodes headers, and
// dispatches to registered handlers. It runs for the lifetime of one
// connection.
func (c *Client) readLoop(conn *websocket.Conn, ackCh chan<- *icd.RegisterViewerAck, readDone chan struct{}) {
	defer func() {
		close(readDone)
		// Only this connection's loop may flip the status; a stale loop
		// from a previous connection must not stomp a reconnect.
		c.mu.Lock()
		if c.conn == conn {
			c.status.Store(int32(StatusDisconnected))
		}
		c.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				c.config.Logger.Error("read error", "error", err)
			}
			return
		}

		msg, err := icd.DecodeMessage(data)
		if err != nil {
			c.config.Logger.Error("message decode error", "error", err)
			continue
		}

		if msg.Type == icd.TypeRegisterViewerAck && c.Status() == StatusRegistering {
			if ack, err := icd.DecodeRegisterViewerAck(msg.Payload); err == nil {
				select {
				case ackCh <- ack:
				default:
				}
			} else {
				c.config.Logger.Error("handshake ack decode error", "error", err)
			}
		}

		c.dispatch(msg)
	}
}

// dispatch invokes every handler registered for the message type.
// Types with no handler are logged, never fatal.
func (c *Client) dispatch(msg *icd.Message) {
	c.handlerMu.RLock()
	hs := c.handlers[msg.Type]
	c.handlerMu.RUnlock()

	if len(hs) == 0 {
		c.config.Logger.Debug("no handler for message",
			"type", msg.Type, "request_id", msg.RequestID)
		return
	}
	for _, h := range hs {
		h(msg)
	}
}
