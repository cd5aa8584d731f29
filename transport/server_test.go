package transport_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softrng/bus/sim"
	"github.com/ardnew/softrng/driver"
	"github.com/ardnew/softrng/pkg"
	"github.com/ardnew/softrng/regs"
	"github.com/ardnew/softrng/regs/regstest"
	"github.com/ardnew/softrng/transport"
)

type fixture struct {
	drv    *driver.Driver
	rec    *regstest.Recorder
	server *transport.Server
	path   string
}

// newFixture serves an attached recorder-backed device on a socket in a
// temporary directory.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	rec := regstest.NewRecorder()
	b := sim.New()
	c := sim.NewCandidate("0000:00:04.0", driver.DefaultID)
	b.Plug(c, rec)

	d := driver.New(b, driver.Options{})
	_, err := d.Attach(context.Background(), &c)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rng.sock")
	s, err := transport.NewServer(transport.ServerConfig{Path: path}, driver.NewDispatcher(d))
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		s.Stop()
		d.Detach()
	})
	return &fixture{drv: d, rec: rec, server: s, path: path}
}

func (f *fixture) dial(t *testing.T) *transport.Client {
	t.Helper()
	c, err := transport.Dial(context.Background(), f.path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewServerInvalid(t *testing.T) {
	_, err := transport.NewServer(transport.ServerConfig{}, &driver.Dispatcher{})
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
	_, err = transport.NewServer(transport.ServerConfig{Path: "x"}, nil)
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
}

func TestClientRequests(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)
	ctx := context.Background()

	f.rec.Set(regs.Random32, 0xdeadbeef)
	f.rec.Set(regs.Random64Lo, 0x89abcdef)
	f.rec.Set(regs.Random64Hi, 0x01234567)

	require.NoError(t, c.Seed(ctx, 0x12345678))
	v32, err := c.Rand32(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v32)
	v64, err := c.Rand64(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0123456789abcdef), v64)

	assert.Equal(t, uint32(0x12345678), f.rec.Get(regs.Seed))
	assert.Equal(t, 4, f.rec.Count())
}

func TestClientErrors(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)
	ctx := context.Background()

	_, err := c.Do(ctx, 0x1234, nil, 4)
	assert.ErrorIs(t, err, pkg.ErrUnsupportedRequest)
	assert.Zero(t, f.rec.Count())

	// Buffer too small for the draw.
	_, err = c.Do(ctx, driver.CmdRand64, nil, 4)
	assert.ErrorIs(t, err, pkg.ErrTransferFault)
	_, err = c.Do(ctx, driver.CmdSeed, []byte{1, 2}, 0)
	assert.ErrorIs(t, err, pkg.ErrTransferFault)

	require.NoError(t, f.drv.Detach())
	_, err = c.Rand32(ctx)
	assert.ErrorIs(t, err, pkg.ErrNotReady)
	assert.ErrorIs(t, c.Seed(ctx, 1), pkg.ErrNotReady)
}

func TestServerSocketFile(t *testing.T) {
	f := newFixture(t)

	fi, err := os.Stat(f.path)
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode()&os.ModeSocket)
	assert.Equal(t, transport.DefaultSocketMode, fi.Mode().Perm())
	assert.Equal(t, "unix", f.server.Addr().Network())

	assert.ErrorIs(t, f.server.Start(), pkg.ErrAlreadyRunning)

	require.NoError(t, f.server.Stop())
	_, err = os.Stat(f.path)
	assert.True(t, os.IsNotExist(err), "socket removed on stop")
	assert.NoError(t, f.server.Stop())
}

func TestServerReplacesStaleSocket(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.server.Stop())

	// Leave a socket file behind without a listener.
	l, err := net.Listen("unix", f.path)
	require.NoError(t, err)
	l.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, l.Close())
	_, err = os.Stat(f.path)
	require.NoError(t, err)

	s, err := transport.NewServer(transport.ServerConfig{Path: f.path, Mode: 0o600}, driver.NewDispatcher(f.drv))
	require.NoError(t, err)
	require.NoError(t, s.Start())
	defer s.Stop()

	fi, err := os.Stat(f.path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}

func TestServerRefusesRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-socket")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	s, err := transport.NewServer(transport.ServerConfig{Path: path}, &driver.Dispatcher{})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Start(), pkg.ErrInvalidParameter)
}

func TestServerConcurrentClients(t *testing.T) {
	f := newFixture(t)

	const clients, draws = 4, 50
	var wg sync.WaitGroup
	for range clients {
		c := f.dial(t)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range draws {
				if _, err := c.Rand64(context.Background()); !assert.NoError(t, err) {
					return
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, clients*draws*2, f.rec.Count())
	assert.Eventually(t, func() bool { return f.server.ConnectionCount() == clients },
		time.Second, time.Millisecond)
}

func TestServeStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.server.Stop())

	path := filepath.Join(t.TempDir(), "serve.sock")
	s, err := transport.NewServer(transport.ServerConfig{Path: path}, driver.NewDispatcher(f.drv))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	var c *transport.Client
	require.Eventually(t, func() bool {
		c, err = transport.Dial(context.Background(), path)
		return err == nil
	}, time.Second, time.Millisecond)
	defer c.Close()

	_, err = c.Rand32(context.Background())
	require.NoError(t, err)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}

	_, err = c.Rand32(context.Background())
	assert.Error(t, err, "connection closed by server")
}

func TestServerConcurrentStartStop(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "race.sock")
	s, err := transport.NewServer(transport.ServerConfig{Path: path}, driver.NewDispatcher(f.drv))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(3)
		go func() {
			defer wg.Done()
			if err := s.Start(); err != nil {
				assert.ErrorIs(t, err, pkg.ErrAlreadyRunning)
			}
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Stop())
		}()
		go func() {
			defer wg.Done()
			s.Addr()
		}()
	}
	wg.Wait()

	require.NoError(t, s.Stop())
	assert.NoFileExists(t, path)

	require.NoError(t, s.Start())
	assert.Equal(t, path, s.Addr().String())
	require.NoError(t, s.Stop())
}

func TestClientContextCancelled(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Rand32(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
