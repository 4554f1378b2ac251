// Package relay moves bytes between an intercepted client connection and
// its established upstream tunnel.
package relay

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Counts reports how many bytes each direction moved before the relay
// finished.
type Counts struct {
	ClientToUpstream int64
	UpstreamToClient int64
}

// Total is the combined byte count of both directions.
func (c Counts) Total() int64 {
	return c.ClientToUpstream + c.UpstreamToClient
}

// Pump copies bytes between client and upstream concurrently until both
// directions reach end-of-stream or either socket fails.
//
// End-of-stream in one direction half-closes the destination so the
// opposite direction can keep draining. An I/O error, or cancellation of
// ctx, closes both sockets so neither copy loop is left blocked. Both
// sockets are closed by the time Pump returns.
func Pump(ctx context.Context, client, upstream net.Conn) (Counts, error) {
	g, gctx := errgroup.WithContext(ctx)

	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = client.Close()
			_ = upstream.Close()
		})
	}
	defer closeBoth()

	// The copy loops only unblock via socket closure, so tie closure to the
	// group context: the first error (or caller cancellation) tears down
	// both sides and the surviving loop exits promptly.
	stop := context.AfterFunc(gctx, closeBoth)
	defer stop()

	var n Counts

	g.Go(func() error {
		var err error
		n.ClientToUpstream, err = pumpOneWay(upstream, client)
		return err
	})

	g.Go(func() error {
		var err error
		n.UpstreamToClient, err = pumpOneWay(client, upstream)
		return err
	})

	err := g.Wait()
	return n, err
}

// pumpOneWay copies src to dst until end-of-stream or error, then
// half-closes dst so its reader sees end-of-stream while the reverse
// direction stays usable.
func pumpOneWay(dst, src net.Conn) (int64, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	copied, err := io.CopyBuffer(dst, src, buf)
	if err != nil {
		return copied, fmt.Errorf("relay %s -> %s: %w", src.RemoteAddr(), dst.RemoteAddr(), err)
	}

	if cw, ok := dst.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	return copied, nil
}
