//go:build linux

// File: wsnet/sink_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wsnet

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// bytesBuffered queries the kernel's outbound socket buffer via the
// TIOCOUTQ ioctl, reporting how many bytes written to conn are still
// unacknowledged by the peer.
func bytesBuffered(conn net.Conn) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, nil
	}
	rawConn, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}

	var n int
	var ioctlErr error
	err = rawConn.Control(func(fd uintptr) {
		n, ioctlErr = unix.IoctlGetInt(int(fd), unix.TIOCOUTQ)
	})
	if err != nil {
		return 0, err
	}
	if ioctlErr != nil {
		return 0, ioctlErr
	}
	return n, nil
}
