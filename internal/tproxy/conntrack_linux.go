//go:build linux

package tproxy

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// conntrackResolver recovers the original destination of connections
// redirected with iptables REDIRECT or DNAT, where the kernel rewrites the
// destination and the pre-rewrite address must be fetched from conntrack
// via getsockopt(SO_ORIGINAL_DST). IPv4 only.
type conntrackResolver struct{}

func newConntrackResolver() (Resolver, error) {
	return conntrackResolver{}, nil
}

func (conntrackResolver) OriginalDst(c net.Conn) (*net.TCPAddr, error) {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return nil, fmt.Errorf("not a TCP connection: %T", c)
	}
	rc, err := tc.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("syscall conn: %w", err)
	}

	var (
		addr  *net.TCPAddr
		soErr error
	)
	err = rc.Control(func(fd uintptr) {
		// SO_ORIGINAL_DST returns a sockaddr_in; IPv6Mreq happens to have
		// the right size for the getsockopt call, a long-standing trick.
		mreq, err := unix.GetsockoptIPv6Mreq(int(fd), unix.IPPROTO_IP, unix.SO_ORIGINAL_DST)
		if err != nil {
			soErr = fmt.Errorf("getsockopt SO_ORIGINAL_DST: %w", err)
			return
		}
		b := mreq.Multiaddr
		addr = &net.TCPAddr{
			IP:   net.IPv4(b[4], b[5], b[6], b[7]),
			Port: int(b[2])<<8 | int(b[3]),
		}
	})
	if err != nil {
		return nil, fmt.Errorf("control: %w", err)
	}
	if soErr != nil {
		return nil, soErr
	}
	return addr, nil
}
