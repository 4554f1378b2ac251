package proxy

import (
	"net"
	"sync"
)

// State tracks how far a session got through the relay pipeline. It is
// recorded for diagnostics; transitions are strictly forward.
type State int

const (
	StateResolving State = iota
	StateConnecting
	StateHandshaking
	StateRelaying
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateRelaying:
		return "relaying"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// session is one intercepted client connection being relayed. The client
// socket is owned by the session from acceptance; the upstream socket from
// the moment the dial succeeds. close is safe to call from multiple paths
// but tears the session down exactly once.
type session struct {
	client   net.Conn
	upstream net.Conn
	dst      *net.TCPAddr
	state    State

	closeOnce sync.Once
}

func newSession(client net.Conn) *session {
	return &session{client: client, state: StateResolving}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		_ = s.client.Close()
		if s.upstream != nil {
			_ = s.upstream.Close()
		}
		s.state = StateClosed
	})
}
