package tproxy

import (
	"context"
	"net"
	"testing"
)

func TestNewResolverModes(t *testing.T) {
	for _, mode := range []string{"", ModeTProxy} {
		r, err := NewResolver(mode)
		if err != nil {
			t.Fatalf("mode %q: %v", mode, err)
		}
		if _, ok := r.(LocalAddrResolver); !ok {
			t.Errorf("mode %q: got %T", mode, r)
		}
	}

	if _, err := NewResolver("nat"); err == nil {
		t.Error("unknown mode should fail")
	}
}

func TestLocalAddrResolver(t *testing.T) {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- c
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	c := <-accepted
	defer c.Close()

	// Without firewall redirection in the way, the accepted socket's local
	// address is just the listener address. TPROXY substitutes the original
	// destination here; either way the resolver reads the same field.
	dst, err := LocalAddrResolver{}.OriginalDst(c)
	if err != nil {
		t.Fatal(err)
	}

	want := ln.Addr().(*net.TCPAddr)
	if !dst.IP.Equal(want.IP) || dst.Port != want.Port {
		t.Errorf("got %v, want %v", dst, want)
	}
}

func TestLocalAddrResolverRejectsNonTCP(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	if _, err := (LocalAddrResolver{}).OriginalDst(a); err == nil {
		t.Error("expected error for non-TCP connection")
	}
}
