// Package transport carries message envelopes between the bot and the game server,
// either as a raw TCP JSON stream or as WebSocket text frames.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/Cameron-Kurotori/karmes/sdk"
	"github.com/gorilla/websocket"
)

var (
	// ErrClosed is returned by Read once the peer has closed the stream.
	ErrClosed = errors.New("connection closed")
	// ErrMalformed is returned by Read for a single undecodable message; the
	// connection stays usable.
	ErrMalformed = errors.New("malformed message")
)

// Conn is a message oriented connection. Read is called from a single goroutine;
// Send may be called concurrently with Read.
type Conn interface {
	Read() (sdk.Message, error)
	Send(msg sdk.Message) error
	Close() error
}

// Dial connects to addr. ws:// and wss:// URLs use WebSocket, anything else is treated
// as a TCP host:port.
func Dial(ctx context.Context, addr string, timeout time.Duration) (Conn, error) {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		dialer := websocket.Dialer{
			HandshakeTimeout: timeout,
		}
		conn, _, err := dialer.DialContext(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		return NewWebSocket(conn), nil
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewStream(conn), nil
}

type stream struct {
	rwc io.ReadWriteCloser
	dec *json.Decoder

	mu  sync.Mutex
	enc *json.Encoder
}

// NewStream wraps a byte stream carrying concatenated JSON envelopes.
func NewStream(rwc io.ReadWriteCloser) Conn {
	return &stream{
		rwc: rwc,
		dec: json.NewDecoder(rwc),
		enc: json.NewEncoder(rwc),
	}
}

func (s *stream) Read() (sdk.Message, error) {
	var msg sdk.Message
	if err := s.dec.Decode(&msg); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
			return msg, ErrClosed
		}
		// the decoder skips a whole value on a type mismatch, so the stream stays usable
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return msg, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return msg, fmt.Errorf("read error: %w", err)
	}
	return msg, nil
}

func (s *stream) Send(msg sdk.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(msg)
}

func (s *stream) Close() error {
	return s.rwc.Close()
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewWebSocket wraps a WebSocket connection carrying one envelope per text frame.
func NewWebSocket(conn *websocket.Conn) Conn {
	return &wsConn{conn: conn}
}

func (c *wsConn) Read() (sdk.Message, error) {
	var msg sdk.Message
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, net.ErrClosed) {
				return msg, ErrClosed
			}
			return msg, fmt.Errorf("read error: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return msg, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return msg, nil
	}
}

func (c *wsConn) Send(msg sdk.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.conn.Close()
}
