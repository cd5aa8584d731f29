//go:build linux

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// peerCred returns log attributes identifying the process at the other end
// of conn, or nil if unavailable.
func peerCred(conn net.Conn) []any {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return nil
	}

	var cred *unix.Ucred
	var cerr error
	err = raw.Control(func(fd uintptr) {
		cred, cerr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil || cerr != nil {
		return nil
	}
	return []any{"pid", cred.Pid, "uid", cred.Uid}
}
