// Package dialer provides the outbound dialing implementation used to reach
// the upstream SOCKS5 proxy.
//
// Dialers implement a small interface (DialContext) so that tests can
// substitute failing or instrumented implementations for the real TCP
// dialer.
package dialer

import (
	"context"
	"net"
)

// Dialer mirrors the net.Dialer interface.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}
