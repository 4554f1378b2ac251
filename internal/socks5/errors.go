package socks5

import (
	"errors"
	"fmt"

	txsocks5 "github.com/txthinking/socks5"
)

// ErrUnsupportedMethod is returned when the upstream proxy selects any
// authentication method other than "no authentication required".
var ErrUnsupportedMethod = errors.New("upstream requires an unsupported authentication method")

// ErrProtocol is returned (wrapped) for short reads, bad version bytes, and
// other malformed frames. The exchange is not framed, so no recovery is
// attempted; the upstream connection must be discarded.
var ErrProtocol = errors.New("socks5 protocol violation")

// RejectError is a completed CONNECT exchange whose reply carried a
// non-success status code.
type RejectError struct {
	Code byte
}

func (e *RejectError) Error() string {
	return "connect rejected by upstream: " + replyText(e.Code)
}

func replyText(code byte) string {
	switch code {
	case txsocks5.RepServerFailure:
		return "general server failure"
	case txsocks5.RepNotAllowed:
		return "connection not allowed by ruleset"
	case txsocks5.RepNetworkUnreachable:
		return "network unreachable"
	case txsocks5.RepHostUnreachable:
		return "host unreachable"
	case txsocks5.RepConnectionRefused:
		return "connection refused"
	case txsocks5.RepTTLExpired:
		return "TTL expired"
	case txsocks5.RepCommandNotSupported:
		return "command not supported"
	case txsocks5.RepAddressNotSupported:
		return "address type not supported"
	default:
		return fmt.Sprintf("reply code 0x%02x", code)
	}
}
