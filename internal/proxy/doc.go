// Package proxy contains the accept loop and per-session supervision that
// tie the transparent listener, the upstream SOCKS5 handshake, and the
// relay pump together.
//
// Each accepted connection gets its own goroutine running one session:
// recover the original destination, dial the upstream proxy, handshake a
// tunnel, relay bytes. A failure at any step closes that session's sockets
// and is logged; it never disturbs other sessions or the accept loop. Only
// a failing listener ends Serve.
package proxy
