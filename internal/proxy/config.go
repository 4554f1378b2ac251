package proxy

import (
	"github.com/blksocks/blksocks/internal/dialer"
	"github.com/blksocks/blksocks/internal/stats"
	"github.com/blksocks/blksocks/internal/tproxy"
)

type Config struct {
	// Upstream is the resolved host:port of the SOCKS5 proxy every session
	// tunnels through.
	Upstream string

	Dialer   dialer.Dialer
	Resolver tproxy.Resolver

	// Stats, when non-nil, receives per-destination byte counts.
	Stats *stats.Tracker
}
