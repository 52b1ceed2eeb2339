package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/coder/websocket"
)

// Channel is the duplex, message-oriented link to one client.
type Channel interface {
	Send(ctx context.Context, f Frame) error
	Receive(ctx context.Context) (Event, error)
	Close(reason string) error
}

// wsChannel adapts a websocket connection to Channel.
type wsChannel struct {
	conn *websocket.Conn
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	return &wsChannel{conn: conn}
}

func (c *wsChannel) Send(ctx context.Context, f Frame) error {
	typ, data, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	if err := c.conn.Write(ctx, typ, data); err != nil {
		return transportError(ctx, "write", err)
	}
	return nil
}

func (c *wsChannel) Receive(ctx context.Context) (Event, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, transportError(ctx, "read", err)
	}
	if typ != websocket.MessageText {
		return UnknownEvent{Type: "binary"}, nil
	}
	return DecodeEvent(data), nil
}

func (c *wsChannel) Close(reason string) error {
	return c.conn.Close(websocket.StatusNormalClosure, reason)
}

// transportError maps closed-connection failures to ErrPeerDisconnected.
func transportError(ctx context.Context, op string, err error) error {
	if websocket.CloseStatus(err) != -1 ||
		ctx.Err() != nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %s: %w", ErrPeerDisconnected, op, err)
	}
	return fmt.Errorf("websocket %s: %w", op, err)
}
