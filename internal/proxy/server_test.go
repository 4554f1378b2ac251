package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	gosocks5 "github.com/things-go/go-socks5"
	txsocks5 "github.com/txthinking/socks5"

	"github.com/blksocks/blksocks/internal/conn"
	"github.com/blksocks/blksocks/internal/dialer"
	"github.com/blksocks/blksocks/internal/stats"
	"github.com/blksocks/blksocks/internal/testutil"
)

// staticResolver stands in for firewall redirection in tests: every accepted
// connection "was originally addressed" to the fixed destination.
type staticResolver struct {
	addr *net.TCPAddr
}

func (r staticResolver) OriginalDst(net.Conn) (*net.TCPAddr, error) {
	return r.addr, nil
}

type failingResolver struct{}

func (failingResolver) OriginalDst(net.Conn) (*net.TCPAddr, error) {
	return nil, fmt.Errorf("socket gone")
}

func startServer(t *testing.T, cfg Config) net.Listener {
	t.Helper()

	if cfg.Dialer == nil {
		cfg.Dialer = dialer.NewDirect(dialer.Config{DialTimeout: 2 * time.Second})
	}

	ln, err := conn.ListenTCP("tcp", "127.0.0.1:0", net.KeepAliveConfig{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	srv := NewServer(context.Background(), cfg, nil)
	go func() { _ = srv.Serve(ln) }()

	return ln
}

// startUpstreamSOCKS5 runs a real SOCKS5 server for sessions to tunnel
// through.
func startUpstreamSOCKS5(t *testing.T) net.Listener {
	t.Helper()

	lc := net.ListenConfig{}
	upLn, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = upLn.Close() })

	srv := gosocks5.NewServer()
	go func() { _ = srv.Serve(upLn) }()

	return upLn
}

func TestServerRelaysThroughUpstream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()
	upLn := startUpstreamSOCKS5(t)

	tracker := stats.NewTracker()
	ln := startServer(t, Config{
		Upstream: upLn.Addr().String(),
		Resolver: staticResolver{addr: echoLn.Addr().(*net.TCPAddr)},
		Stats:    tracker,
	})

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	msg := []byte("GET / HTTP/1.0\r\n\r\n")
	testutil.AssertEcho(t, c, c, msg)

	_ = c.Close()

	// Relay accounting lands after both directions finish; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		top := tracker.Top(1)
		if len(top) == 1 && top[0].Bytes >= int64(2*len(msg)) {
			if top[0].IP != "127.0.0.1" {
				t.Errorf("accounted ip = %q", top[0].IP)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stats never recorded, got %+v", tracker.Top(1))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServerClosesClientOnUpstreamReject(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	upLn, waitUp := testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		_ = testutil.HandleSOCKS5Reject(c, txsocks5.RepConnectionRefused)
	})

	ln := startServer(t, Config{
		Upstream: upLn.Addr().String(),
		Resolver: staticResolver{addr: &net.TCPAddr{IP: net.IPv4(192, 0, 2, 1), Port: 80}},
	})

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	// The interception is transparent: no protocol error comes back, the
	// connection just closes with nothing relayed.
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 64)
	n, err := c.Read(buf)
	if n != 0 || err == nil {
		t.Fatalf("read = %d, %v; want closed with no data", n, err)
	}

	waitUp()
}

func TestServerClosesClientOnAuthMismatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	upLn, waitUp := testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		_ = testutil.HandleSOCKS5SelectMethod(c, txsocks5.MethodUsernamePassword)
	})

	ln := startServer(t, Config{
		Upstream: upLn.Addr().String(),
		Resolver: staticResolver{addr: &net.TCPAddr{IP: net.IPv4(192, 0, 2, 1), Port: 80}},
	})

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	if n, err := c.Read(make([]byte, 1)); n != 0 || err == nil {
		t.Fatalf("read = %d, %v; want closed with no data", n, err)
	}

	waitUp()
}

func TestServerSurvivesUnreachableUpstream(t *testing.T) {
	// Grab a port that refuses connections.
	lc := net.ListenConfig{}
	dead, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	deadAddr := dead.Addr().String()
	_ = dead.Close()

	ln := startServer(t, Config{
		Upstream: deadAddr,
		Resolver: staticResolver{addr: &net.TCPAddr{IP: net.IPv4(192, 0, 2, 1), Port: 80}},
		Dialer:   dialer.NewDirect(dialer.Config{DialTimeout: time.Second}),
	})

	// Several consecutive clients: each one's session fails, but the accept
	// loop keeps going.
	for i := 0; i < 3; i++ {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			t.Fatalf("connection %d: %v", i, err)
		}
		_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
		if n, err := c.Read(make([]byte, 1)); n != 0 || err == nil {
			t.Fatalf("connection %d: read = %d, %v; want closed", i, n, err)
		}
		_ = c.Close()
	}
}

func TestServerClosesClientOnResolutionFailure(t *testing.T) {
	upLn := startUpstreamSOCKS5(t)

	ln := startServer(t, Config{
		Upstream: upLn.Addr().String(),
		Resolver: failingResolver{},
	})

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	if n, err := c.Read(make([]byte, 1)); n != 0 || err == nil {
		t.Fatalf("read = %d, %v; want closed", n, err)
	}
}

func TestServerConcurrentSessions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()
	upLn := startUpstreamSOCKS5(t)

	ln := startServer(t, Config{
		Upstream: upLn.Addr().String(),
		Resolver: staticResolver{addr: echoLn.Addr().(*net.TCPAddr)},
	})

	const sessions = 50

	var wg sync.WaitGroup
	errs := make(chan error, sessions)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			c, err := net.Dial("tcp", ln.Addr().String())
			if err != nil {
				errs <- err
				return
			}
			defer c.Close()

			msg := []byte(fmt.Sprintf("session %d payload", i))
			if _, err := c.Write(msg); err != nil {
				errs <- err
				return
			}
			buf := make([]byte, len(msg))
			if _, err := io.ReadFull(c, buf); err != nil {
				errs <- err
				return
			}
			if string(buf) != string(msg) {
				errs <- fmt.Errorf("session %d: got %q", i, buf)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	up1, up2 := net.Pipe()
	defer up2.Close()

	sess := newSession(a)
	sess.upstream = up1

	sess.close()
	sess.close()

	if sess.state != StateClosed {
		t.Errorf("state = %v", sess.state)
	}
	if _, err := a.Read(make([]byte, 1)); err == nil {
		t.Error("client conn still open")
	}
	if _, err := up1.Read(make([]byte, 1)); err == nil {
		t.Error("upstream conn still open")
	}
}
