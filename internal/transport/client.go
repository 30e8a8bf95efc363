package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rpggio/gridlayout/internal/domain/collab"
)

// WSDialer connects to a remote hub over websocket. It implements
// collab.Dialer.
type WSDialer struct {
	// BaseURL is the server root, e.g. ws://host:8080. http and https
	// schemes are rewritten to ws and wss.
	BaseURL      string
	Token        string
	WriteTimeout time.Duration
	Logger       *slog.Logger
	Dialer       *websocket.Dialer
}

// Dial opens /collab/{layoutID} and starts reading into h.
func (d *WSDialer) Dial(ctx context.Context, layoutID, clientID string, h collab.Handler) (collab.Conn, error) {
	target, err := d.endpoint(layoutID, clientID)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", target, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := d.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	c := &wsConn{
		conn:    conn,
		handler: h,
		timeout: timeout,
		logger:  logger.With("layout_id", layoutID, "client_id", clientID),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (d *WSDialer) endpoint(layoutID, clientID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(d.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse hub url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported hub url scheme %q", u.Scheme)
	}
	u = u.JoinPath("collab", layoutID)
	u.RawQuery = url.Values{"client_id": {clientID}}.Encode()
	return u.String(), nil
}

type wsConn struct {
	conn    *websocket.Conn
	handler collab.Handler
	timeout time.Duration
	logger  *slog.Logger

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

func (c *wsConn) Send(ctx context.Context, msg collab.Message) error {
	select {
	case <-c.done:
		return net.ErrClosed
	default:
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) readLoop() {
	for {
		var msg collab.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
				// Closed locally; the owner already knows.
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Debug("hub closed connection")
			} else {
				c.logger.Warn("hub read failed", "error", err)
			}
			c.closeOnce.Do(func() {
				close(c.done)
				_ = c.conn.Close()
			})
			c.handler.HandleDisconnect(err)
			return
		}
		c.handler.HandleMessage(msg)
	}
}
