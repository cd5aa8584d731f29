package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
)

// ErrCPUProfileActive indicates CPU profiling is already active.
var ErrCPUProfileActive = errors.New("cpu profile already active")

// Options selects the profiles written by a Session.
type Options struct {
	CPU  string // CPU profile path, streamed while the session runs
	Heap string // heap profile path, written on Stop
}

// Session is an active profiling session.
type Session struct {
	opts    Options
	cpuFile *os.File
	once    sync.Once
	err     error
}

var (
	// cpuMutex protects cpuActive.
	cpuMutex  sync.Mutex
	cpuActive bool
)

// Start begins a session. The CPU profile, if requested, starts immediately.
// Returns [ErrCPUProfileActive] if another session holds the CPU profiler.
func Start(opts Options) (*Session, error) {
	s := &Session{opts: opts}
	if opts.CPU == "" {
		return s, nil
	}

	cpuMutex.Lock()
	defer cpuMutex.Unlock()
	if cpuActive {
		return nil, ErrCPUProfileActive
	}

	f, err := os.Create(opts.CPU)
	if err != nil {
		return nil, err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("start cpu profile: %w", err)
	}
	s.cpuFile = f
	cpuActive = true
	return s, nil
}

// Stop ends the session, flushing the CPU profile and writing the heap
// profile. Subsequent calls return the first call's result.
func (s *Session) Stop() error {
	s.once.Do(func() {
		if s.cpuFile != nil {
			cpuMutex.Lock()
			pprof.StopCPUProfile()
			cpuActive = false
			cpuMutex.Unlock()
			s.err = s.cpuFile.Close()
		}
		if s.opts.Heap != "" {
			s.err = errors.Join(s.err, writeHeap(s.opts.Heap))
		}
	})
	return s.err
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	runtime.GC()
	return pprof.Lookup("heap").WriteTo(f, 0)
}
