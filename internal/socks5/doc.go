// Package socks5 drives the client side of the SOCKS5 (RFC 1928) handshake
// against the upstream proxy.
//
// It wraps the low-level protocol types in github.com/txthinking/socks5 so
// that negotiation and CONNECT framing live in one place, and maps the wire
// outcomes onto errors the supervisor can tell apart: an upstream that
// insists on authentication, a CONNECT rejected with a specific reply code,
// and a malformed or truncated exchange.
//
// Only the "no authentication required" method is ever advertised; the
// documented deployment runs against an open upstream.
package socks5
