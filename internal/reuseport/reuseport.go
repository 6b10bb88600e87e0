//go:build linux
// +build linux

// Package reuseport creates the listening socket of the server.
package reuseport

import (
	"net"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const somaxconnPath = "/proc/sys/net/core/somaxconn"

var listenerBacklogMaxSize = maxListenerBacklog()

// TCPSocket creates a non-blocking TCP listening socket bound to addr and returns its fd and
// the address it is actually bound to, so a ":0" address reports the port the kernel chose.
// SO_REUSEADDR is always set, SO_REUSEPORT only when reusePort is true.
func TCPSocket(proto, addr string, reusePort bool) (int, net.Addr, error) {
	return tcpReusablePort(proto, addr, reusePort)
}

func maxListenerBacklog() int {
	data, err := os.ReadFile(somaxconnPath)
	if err != nil {
		return unix.SOMAXCONN
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n <= 0 {
		return unix.SOMAXCONN
	}
	// Linux stores the backlog in a uint16.
	if n > 1<<16-1 {
		n = 1<<16 - 1
	}
	return n
}

func sysSocket(family, sotype, proto int) (int, error) {
	return unix.Socket(family, sotype|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, proto)
}
