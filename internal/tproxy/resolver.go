package tproxy

import (
	"fmt"
	"net"
)

// Redirection modes selectable in the configuration file.
const (
	ModeTProxy   = "tproxy"
	ModeRedirect = "redirect"
)

// Resolver recovers the destination address a redirected connection was
// originally addressed to. Recovery happens once per connection; a failure
// is fatal to that connection only.
type Resolver interface {
	OriginalDst(c net.Conn) (*net.TCPAddr, error)
}

// NewResolver selects the Resolver implementation for the given redirection
// mode. An empty mode means TPROXY.
func NewResolver(mode string) (Resolver, error) {
	switch mode {
	case "", ModeTProxy:
		return LocalAddrResolver{}, nil
	case ModeRedirect:
		return newConntrackResolver()
	default:
		return nil, fmt.Errorf("unknown redirect mode %q", mode)
	}
}

// LocalAddrResolver recovers the original destination of a TPROXY-redirected
// connection. The firewall preserves the destination as the accepted
// socket's local address; the peer address identifies the client and must
// not be used.
type LocalAddrResolver struct{}

func (LocalAddrResolver) OriginalDst(c net.Conn) (*net.TCPAddr, error) {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return nil, fmt.Errorf("not a TCP connection: %T", c)
	}
	addr, ok := tc.LocalAddr().(*net.TCPAddr)
	if !ok || addr == nil {
		return nil, fmt.Errorf("local address unavailable")
	}
	return addr, nil
}
