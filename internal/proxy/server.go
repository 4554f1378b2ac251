package proxy

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/blksocks/blksocks/internal/relay"
	"github.com/blksocks/blksocks/internal/socks5"
)

// Server accepts redirected connections and supervises one session per
// connection.
type Server struct {
	ctx context.Context
	cfg Config
	log *zap.Logger
}

func NewServer(ctx context.Context, cfg Config, log *zap.Logger) *Server {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{ctx: ctx, cfg: cfg, log: log}
}

// Serve accepts connections from ln until the listener fails. Listener
// errors are the only way out; session errors stay inside their goroutine.
func (s *Server) Serve(ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		go s.handle(c)
	}
}

func (s *Server) handle(c net.Conn) {
	sess := newSession(c)
	defer sess.close()

	if err := s.run(sess); err != nil {
		s.log.Info("session failed",
			zap.String("stage", sess.state.String()),
			zap.Stringer("client", c.RemoteAddr()),
			zap.Stringer("destination", sess.dst),
			zap.Error(err))
	}
}

// run drives one session through its strictly sequential steps. Whatever
// sockets are open when it returns are closed by the deferred sess.close in
// handle.
func (s *Server) run(sess *session) error {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	dst, err := s.cfg.Resolver.OriginalDst(sess.client)
	if err != nil {
		return fmt.Errorf("resolve original destination: %w", err)
	}
	sess.dst = dst

	s.log.Info("connecting",
		zap.Stringer("destination", dst),
		zap.Stringer("client", sess.client.RemoteAddr()))

	sess.state = StateConnecting
	up, err := s.cfg.Dialer.DialContext(ctx, "tcp", s.cfg.Upstream)
	if err != nil {
		return fmt.Errorf("upstream %s unreachable: %w", s.cfg.Upstream, err)
	}
	sess.upstream = up

	sess.state = StateHandshaking
	if err := socks5.ClientDial(up, dst.String()); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	sess.state = StateRelaying
	counts, err := relay.Pump(ctx, sess.client, up)
	if s.cfg.Stats != nil {
		s.cfg.Stats.Add(dst.IP, counts.Total())
	}
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}

	s.log.Debug("session finished",
		zap.Stringer("destination", dst),
		zap.Int64("bytes", counts.Total()))
	return nil
}
