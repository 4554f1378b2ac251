package testutil

import (
	"context"
	"io"
	"net"

	"github.com/txthinking/socks5"
)

// HandleSOCKS5Connect serves one no-auth SOCKS5 CONNECT exchange on c,
// dialing the requested destination and relaying bytes until either side
// closes. Intended as the handler for StartSingleAcceptServer.
func HandleSOCKS5Connect(ctx context.Context, c net.Conn) error {
	if err := negotiateNoAuth(c); err != nil {
		return err
	}

	req, err := socks5.NewRequestFrom(c)
	if err != nil {
		return err
	}
	if req.Cmd != socks5.CmdConnect {
		_, _ = zeroAddrReply(socks5.RepCommandNotSupported).WriteTo(c)
		return nil
	}

	d := net.Dialer{}
	dst, err := d.DialContext(ctx, "tcp", req.Address())
	if err != nil {
		_, _ = zeroAddrReply(socks5.RepHostUnreachable).WriteTo(c)
		return nil
	}
	defer dst.Close()

	a, addr, port, err := socks5.ParseAddress(dst.LocalAddr().String())
	if err != nil {
		return err
	}
	if a == socks5.ATYPDomain {
		addr = addr[1:]
	}
	if _, err := socks5.NewReply(socks5.RepSuccess, a, addr, port).WriteTo(c); err != nil {
		return err
	}

	go func() {
		_, _ = io.Copy(dst, c)
		_ = dst.Close()
	}()
	_, _ = io.Copy(c, dst)

	return nil
}

// HandleSOCKS5Reject serves the handshake up to the CONNECT request, then
// rejects it with the given reply code without dialing anything.
func HandleSOCKS5Reject(c net.Conn, code byte) error {
	if err := negotiateNoAuth(c); err != nil {
		return err
	}
	if _, err := socks5.NewRequestFrom(c); err != nil {
		return err
	}
	_, err := zeroAddrReply(code).WriteTo(c)
	return err
}

// HandleSOCKS5SelectMethod answers method negotiation by selecting method,
// regardless of what the client offered, then stops.
func HandleSOCKS5SelectMethod(c net.Conn, method byte) error {
	if _, err := socks5.NewNegotiationRequestFrom(c); err != nil {
		return err
	}
	_, err := socks5.NewNegotiationReply(method).WriteTo(c)
	return err
}

func negotiateNoAuth(c net.Conn) error {
	if _, err := socks5.NewNegotiationRequestFrom(c); err != nil {
		return err
	}
	_, err := socks5.NewNegotiationReply(socks5.MethodNone).WriteTo(c)
	return err
}

func zeroAddrReply(rep byte) *socks5.Reply {
	return socks5.NewReply(rep, socks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00})
}
