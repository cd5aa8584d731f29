package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ardnew/softrng/driver"
	"github.com/ardnew/softrng/pkg"
)

// Client issues control requests over one connection. Requests are sent one
// at a time; Client is safe for concurrent use.
type Client struct {
	conn   net.Conn
	framer *Framer

	mu     sync.Mutex
	nextID uint32
}

// Dial connects to the server socket at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return &Client{conn: conn, framer: NewFramer(conn)}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends a raw request and returns the response payload. A non-OK status
// is returned as an error matching the status's pkg sentinel.
func (c *Client) Do(ctx context.Context, cmd driver.Command, arg []byte, size uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	req := &Request{ID: c.nextID, Cmd: uint32(cmd), Arg: arg, Size: size}

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	data, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	if err := c.framer.WriteFrame(data); err != nil {
		return nil, c.ctxErr(ctx, err)
	}

	frame, err := c.framer.ReadFrame()
	if err != nil {
		return nil, c.ctxErr(ctx, err)
	}
	resp, err := DecodeResponse(frame)
	if err != nil {
		return nil, err
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("response id %d for request %d: %w", resp.ID, req.ID, pkg.ErrIO)
	}
	if err := resp.Status.Error(); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	return resp.Payload, nil
}

// ctxErr prefers the context's error when the context ended the exchange.
func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Seed writes v to the device's seed register.
func (c *Client) Seed(ctx context.Context, v uint32) error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], v)
	_, err := c.Do(ctx, driver.CmdSeed, buf[:], 0)
	return err
}

// Rand32 draws a 32-bit random value.
func (c *Client) Rand32(ctx context.Context) (uint32, error) {
	p, err := c.Do(ctx, driver.CmdRand32, nil, 4)
	if err != nil {
		return 0, err
	}
	if len(p) < 4 {
		return 0, fmt.Errorf("rand32: payload of %d bytes: %w", len(p), pkg.ErrTransferFault)
	}
	return binary.NativeEndian.Uint32(p), nil
}

// Rand64 draws a 64-bit random value.
func (c *Client) Rand64(ctx context.Context) (uint64, error) {
	p, err := c.Do(ctx, driver.CmdRand64, nil, 8)
	if err != nil {
		return 0, err
	}
	if len(p) < 8 {
		return 0, fmt.Errorf("rand64: payload of %d bytes: %w", len(p), pkg.ErrTransferFault)
	}
	return binary.NativeEndian.Uint64(p), nil
}
