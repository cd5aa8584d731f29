//go:build linux

package linux

import (
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

// =============================================================================
// Poller
// =============================================================================

// pollDesc describes a file descriptor being polled.
type pollDesc struct {
	fd       int          // File descriptor
	callback func(uint32) // Callback when events occur
}

// poller multiplexes the uevent socket with an eventfd used for wakeup.
type poller struct {
	epfd   int               // epoll file descriptor
	wakefd int               // eventfd for waking the poller
	mu     sync.Mutex        // Protects fds and closed
	fds    map[int]*pollDesc // Tracked file descriptors
	closed bool
}

// newPoller creates a new poller instance.
func newPoller() (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}

	p := &poller{
		epfd:   epfd,
		wakefd: wakefd,
		fds:    make(map[int]*pollDesc),
	}

	if err := p.ctl(unix.EPOLL_CTL_ADD, wakefd, unix.EPOLLIN); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, err
	}
	return p, nil
}

// close releases the epoll and eventfd descriptors. Tracked descriptors are
// owned by their callers.
func (p *poller) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return errors.Join(unix.Close(p.wakefd), unix.Close(p.epfd))
}

// addFD watches fd for readability, invoking callback from poll.
func (p *poller) addFD(fd int, callback func(uint32)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ctl(unix.EPOLL_CTL_ADD, fd, unix.EPOLLIN); err != nil {
		return err
	}
	p.fds[fd] = &pollDesc{fd: fd, callback: callback}
	return nil
}

// delFD stops watching fd.
func (p *poller) delFD(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.fds, fd)
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *poller) ctl(op, fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, op, fd, &ev)
}

// wake interrupts a blocked pollOnce.
func (p *poller) wake() error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(p.wakefd, buf[:])
	return err
}

// pollOnce waits up to timeout milliseconds (-1 for infinite) and dispatches
// callbacks. woke reports whether wake was called.
func (p *poller) pollOnce(timeout int) (processed int, woke bool, err error) {
	var events [MaxEpollEvents]unix.EpollEvent

	n, err := unix.EpollWait(p.epfd, events[:], timeout)
	if err != nil {
		if err == unix.EINTR {
			return 0, false, nil
		}
		return 0, false, err
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)

		if fd == p.wakefd {
			// Drain the eventfd
			var buf [8]byte
			unix.Read(p.wakefd, buf[:])
			woke = true
			continue
		}

		p.mu.Lock()
		desc, ok := p.fds[fd]
		p.mu.Unlock()

		if ok && desc.callback != nil {
			desc.callback(events[i].Events)
			processed++
		}
	}
	return processed, woke, nil
}
