package driver_test

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softrng/bus/sim"
	"github.com/ardnew/softrng/driver"
	"github.com/ardnew/softrng/pkg"
	"github.com/ardnew/softrng/regs"
	"github.com/ardnew/softrng/regs/regstest"
)

// attached returns a dispatcher over an attached device backed by backend.
func attached(t *testing.T, backend regs.Backend, opts driver.Options) (*driver.Driver, *driver.Dispatcher) {
	t.Helper()
	b, c := newSim(backend)
	d := driver.New(b, opts)
	_, err := d.Attach(context.Background(), &c)
	require.NoError(t, err)
	t.Cleanup(func() { d.Detach() })
	return d, driver.NewDispatcher(d)
}

func TestDispatchNotReady(t *testing.T) {
	rec := regstest.NewRecorder()
	b, c := newSim(rec)
	d := driver.New(b, driver.Options{})
	p := driver.NewDispatcher(d)

	check := func() {
		t.Helper()
		assert.ErrorIs(t, p.Seed(1), pkg.ErrNotReady)
		_, err := p.Rand32()
		assert.ErrorIs(t, err, pkg.ErrNotReady)
		_, err = p.Rand64()
		assert.ErrorIs(t, err, pkg.ErrNotReady)
	}

	// Never attached.
	check()
	assert.Zero(t, rec.Count())

	_, err := d.Attach(context.Background(), &c)
	require.NoError(t, err)
	_, err = p.Rand32()
	require.NoError(t, err)
	require.NoError(t, d.Detach())

	// Detached: no register access and no stale result.
	n := rec.Count()
	check()
	assert.Equal(t, n, rec.Count())
}

func TestDispatchUnsupported(t *testing.T) {
	rec := regstest.NewRecorder()
	d, p := attached(t, rec, driver.Options{})

	for _, cmd := range []driver.Command{0, 0x1234, 0x80047103, 0x40087102} {
		err := p.Dispatch(driver.Request{Cmd: cmd, Arg: make([]byte, 8)})
		assert.ErrorIs(t, err, pkg.ErrUnsupportedRequest, "cmd %v", cmd)
	}
	assert.Zero(t, rec.Count())

	// Unsupported takes precedence over not ready.
	require.NoError(t, d.Detach())
	err := p.Dispatch(driver.Request{Cmd: 0x1234})
	assert.ErrorIs(t, err, pkg.ErrUnsupportedRequest)
}

func TestDispatchAccessOrder(t *testing.T) {
	rec := regstest.NewRecorder()
	_, p := attached(t, rec, driver.Options{})

	require.NoError(t, p.Seed(0x12345678))
	_, err := p.Rand32()
	require.NoError(t, err)
	_, err = p.Rand64()
	require.NoError(t, err)

	want := []regstest.Access{
		{Op: regstest.OpWrite, Off: regs.Seed, Value: 0x12345678},
		{Op: regstest.OpRead, Off: regs.Random32},
		{Op: regstest.OpRead, Off: regs.Random64Lo},
		{Op: regstest.OpRead, Off: regs.Random64Hi},
	}
	assert.Equal(t, want, rec.Accesses())
}

func TestDispatchRand64Combines(t *testing.T) {
	rec := regstest.NewRecorder()
	rec.Set(regs.Random64Lo, 0)
	rec.Set(regs.Random64Hi, 1)
	_, p := attached(t, rec, driver.Options{})

	v, err := p.Rand64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0000000100000000), v)

	rec.Set(regs.Random32, 0xdeadbeef)
	v32, err := p.Rand32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v32)
}

func TestDispatchTransferFault(t *testing.T) {
	rec := regstest.NewRecorder()
	_, p := attached(t, rec, driver.Options{})

	tests := []struct {
		name  string
		cmd   driver.Command
		arg   []byte
		reads int
	}{
		{"seed nil", driver.CmdSeed, nil, 0},
		{"seed short", driver.CmdSeed, make([]byte, 3), 0},
		{"rand32 nil", driver.CmdRand32, nil, 1},
		{"rand64 short", driver.CmdRand64, make([]byte, 4), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec.Reset()
			err := p.Dispatch(driver.Request{Cmd: tt.cmd, Arg: tt.arg})
			assert.ErrorIs(t, err, pkg.ErrTransferFault)
			assert.Equal(t, tt.reads, rec.Count())
			for _, a := range rec.Accesses() {
				assert.Equal(t, regstest.OpRead, a.Op, "no write on fault")
			}
		})
	}
}

func TestDispatchScenario(t *testing.T) {
	rng := sim.NewRNG(0)
	_, p := attached(t, rng, driver.Options{})

	require.NoError(t, p.Seed(0x12345678))
	v32, err := p.Rand32()
	require.NoError(t, err)
	v64, err := p.Rand64()
	require.NoError(t, err)
	assert.Equal(t, 1, rng.Seeds())

	// Same seed, same sequence.
	ref := sim.NewRNG(0)
	ref.Store32(regs.Seed, 0x12345678)
	assert.Equal(t, ref.Load32(regs.Random32), v32)
	assert.Equal(t, regs.ReadRandom64(regs.NewMapping("ref", ref, regs.WindowSize, nil)), v64)
}

// latchCounter makes every 64-bit draw return a pair whose halves are equal:
// reading the low half advances a counter, the high half reads it back.
func latchCounter(rec *regstest.Recorder) {
	var n uint32
	rec.Next = func(off uint32) uint32 {
		if off == regs.Random64Lo {
			n++
		}
		return n
	}
}

func TestDispatchRand64CanTear(t *testing.T) {
	rec := regstest.NewRecorder()
	latchCounter(rec)

	// Hold the first caller between its two halves until a second caller
	// has completed a whole draw.
	var hiReads atomic.Int32
	parked := make(chan struct{})
	resume := make(chan struct{})
	rec.OnRead = func(off uint32) {
		if off == regs.Random64Hi && hiReads.Add(1) == 1 {
			close(parked)
			<-resume
		}
	}
	_, p := attached(t, rec, driver.Options{})

	first := make(chan uint64, 1)
	go func() {
		v, err := p.Rand64()
		assert.NoError(t, err)
		first <- v
	}()
	<-parked

	second, err := p.Rand64()
	require.NoError(t, err)
	close(resume)

	assert.Equal(t, uint64(0x0000000200000002), second)
	assert.Equal(t, uint64(0x0000000200000001), <-first, "halves from different draws")
}

func TestDispatchRand64Serialized(t *testing.T) {
	rec := regstest.NewRecorder()
	latchCounter(rec)
	rec.OnRead = func(off uint32) {
		if off == regs.Random64Hi {
			runtime.Gosched()
		}
	}
	_, p := attached(t, rec, driver.Options{Serialize: true})
	require.True(t, p.Serialized())

	const workers, draws = 8, 200
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range draws {
				v, err := p.Rand64()
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, uint32(v), uint32(v>>32), "torn draw %#x", v)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, workers*draws*2, rec.Count())
}

func TestDetachWaitsForInflight(t *testing.T) {
	rec := regstest.NewRecorder()
	rec.Set(regs.Random32, 42)
	var reads atomic.Int32
	parked := make(chan struct{})
	resume := make(chan struct{})
	rec.OnRead = func(off uint32) {
		if reads.Add(1) == 1 {
			close(parked)
			<-resume
		}
	}
	d, p := attached(t, rec, driver.Options{})

	result := make(chan uint32, 1)
	go func() {
		v, err := p.Rand32()
		assert.NoError(t, err)
		result <- v
	}()
	<-parked

	detached := make(chan error, 1)
	go func() { detached <- d.Detach() }()

	select {
	case <-detached:
		t.Fatal("Detach returned while a request was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(resume)
	assert.Equal(t, uint32(42), <-result)
	require.NoError(t, <-detached)

	_, err := p.Rand32()
	assert.ErrorIs(t, err, pkg.ErrNotReady)
}
