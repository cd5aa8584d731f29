package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ardnew/softrng/driver"
	"github.com/ardnew/softrng/pkg"
)

// DefaultSocketMode is the permission of the socket file.
const DefaultSocketMode os.FileMode = 0o660

// Handler executes control requests. *driver.Dispatcher implements it.
type Handler interface {
	Dispatch(req driver.Request) error
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// Path is the socket file path.
	Path string

	// Mode is the socket file permission. Defaults to DefaultSocketMode.
	Mode os.FileMode
}

// Server accepts connections on a Unix socket and answers requests through a
// Handler.
type Server struct {
	config  ServerConfig
	handler Handler

	// lifecycle serializes Start and Stop and guards listener.
	lifecycle sync.Mutex
	listener  net.Listener

	conns   map[*serverConn]struct{}
	connsMu sync.RWMutex

	running atomic.Bool
	wg      sync.WaitGroup
}

// serverConn is one accepted connection.
type serverConn struct {
	id   string
	conn net.Conn
}

// NewServer creates a server for h.
func NewServer(config ServerConfig, h Handler) (*Server, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("socket path: %w", pkg.ErrInvalidParameter)
	}
	if h == nil {
		return nil, fmt.Errorf("handler: %w", pkg.ErrInvalidParameter)
	}
	if config.Mode == 0 {
		config.Mode = DefaultSocketMode
	}
	return &Server{
		config:  config,
		handler: h,
		conns:   make(map[*serverConn]struct{}),
	}, nil
}

// Start listens on the socket path and begins accepting connections. A stale
// socket file at the path is replaced.
func (s *Server) Start() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.running.Load() {
		return pkg.ErrAlreadyRunning
	}

	if err := removeStaleSocket(s.config.Path); err != nil {
		return err
	}
	l, err := net.Listen("unix", s.config.Path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Path, err)
	}
	if err := os.Chmod(s.config.Path, s.config.Mode); err != nil {
		l.Close()
		return fmt.Errorf("chmod %s: %w", s.config.Path, err)
	}
	s.listener = l
	s.running.Store(true)

	pkg.LogInfo(pkg.ComponentTransport, "listening",
		"path", s.config.Path,
		"mode", fmt.Sprintf("%#o", s.config.Mode))

	s.wg.Add(1)
	go s.acceptLoop(l)
	return nil
}

// Serve starts the server and blocks until ctx is cancelled, then stops it.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

// Stop closes the listener and every connection and waits for their
// goroutines. The socket file is removed.
func (s *Server) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	// Closing a Unix listener unlinks its socket file.
	err := s.listener.Close()

	s.connsMu.Lock()
	for c := range s.conns {
		c.conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	pkg.LogInfo(pkg.ComponentTransport, "stopped", "path", s.config.Path)
	return err
}

// Addr returns the listen address, or nil if not started.
func (s *Server) Addr() net.Addr {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

func (s *Server) acceptLoop(l net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := l.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			pkg.LogWarn(pkg.ComponentTransport, "accept failed", "error", err)
			continue
		}

		c := &serverConn{id: uuid.New().String(), conn: conn}
		s.connsMu.Lock()
		if !s.running.Load() {
			s.connsMu.Unlock()
			conn.Close()
			return
		}
		s.conns[c] = struct{}{}
		s.connsMu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(c)
	}
}

func (s *Server) handleConnection(c *serverConn) {
	defer s.wg.Done()
	defer func() {
		c.conn.Close()
		s.connsMu.Lock()
		delete(s.conns, c)
		s.connsMu.Unlock()
		pkg.LogDebug(pkg.ComponentTransport, "connection closed", "conn", c.id)
	}()

	attrs := append([]any{"conn", c.id}, peerCred(c.conn)...)
	pkg.LogDebug(pkg.ComponentTransport, "connection accepted", attrs...)

	framer := NewFramer(c.conn)
	for {
		data, err := framer.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				pkg.LogWarn(pkg.ComponentTransport, "read failed", "conn", c.id, "error", err)
			}
			return
		}

		req, err := DecodeRequest(data)
		if err != nil {
			pkg.LogWarn(pkg.ComponentTransport, "malformed request", "conn", c.id, "error", err)
			return
		}

		resp := s.serve(req)
		out, err := EncodeResponse(resp)
		if err != nil {
			pkg.LogError(pkg.ComponentTransport, "encode response failed", "conn", c.id, "error", err)
			return
		}
		if err := framer.WriteFrame(out); err != nil {
			pkg.LogWarn(pkg.ComponentTransport, "write failed", "conn", c.id, "error", err)
			return
		}
	}
}

// serve runs req through the handler. Draws get a buffer of req.Size bytes,
// so a short size reports a transfer fault as a short ioctl buffer would.
func (s *Server) serve(req *Request) *Response {
	cmd := driver.Command(req.Cmd)
	kind := cmd.Kind()

	arg := req.Arg
	if kind.Reads() && req.Size > 0 {
		arg = make([]byte, min(req.Size, MaxFrameSize))
	}

	err := s.handler.Dispatch(driver.Request{Cmd: cmd, Arg: arg})
	resp := &Response{ID: req.ID, Status: pkg.StatusOf(err)}
	if err == nil && kind.Reads() {
		resp.Payload = arg[:kind.ArgSize()]
	}
	if err != nil {
		pkg.LogDebug(pkg.ComponentTransport, "request failed",
			"id", req.ID,
			"cmd", cmd,
			"status", resp.Status,
			"error", err)
	}
	return resp
}

// removeStaleSocket removes a socket file left by a previous run. Anything
// other than a socket at path is an error.
func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket: %w", path, pkg.ErrInvalidParameter)
	}
	return os.Remove(path)
}
