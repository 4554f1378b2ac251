package socks5

import (
	"fmt"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

// ClientDial performs the full client handshake on an established connection
// to the upstream proxy: method negotiation followed by a CONNECT request
// for address. On return with nil error the connection is a ready tunnel and
// the stream position is exactly past the reply; any error means the
// connection is unusable and must be closed.
func ClientDial(conn net.Conn, address string) error {
	if err := ClientNegotiate(conn); err != nil {
		return err
	}
	return ClientConnect(conn, address)
}

// ClientNegotiate advertises the no-auth method and checks the server's
// selection.
func ClientNegotiate(conn net.Conn) error {
	if _, err := txsocks5.NewNegotiationRequest([]byte{txsocks5.MethodNone}).WriteTo(conn); err != nil {
		return fmt.Errorf("write negotiation: %w", err)
	}

	neg, err := txsocks5.NewNegotiationReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read negotiation: %w: %w", ErrProtocol, err)
	}

	if neg.Method != txsocks5.MethodNone {
		return fmt.Errorf("method 0x%02x: %w", neg.Method, ErrUnsupportedMethod)
	}
	return nil
}

// ClientConnect sends a CONNECT request for address and reads the reply,
// including the bound address and port. Those are consumed fully even though
// unused; leftover reply bytes would otherwise leak into the relayed stream.
func ClientConnect(conn net.Conn, address string) error {
	atyp, dstAddr, dstPort, err := txsocks5.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("parse address %q: %w", address, err)
	}
	if atyp == txsocks5.ATYPDomain {
		dstAddr = dstAddr[1:]
	}

	if _, err := txsocks5.NewRequest(txsocks5.CmdConnect, atyp, dstAddr, dstPort).WriteTo(conn); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	rep, err := txsocks5.NewReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read reply: %w: %w", ErrProtocol, err)
	}
	if rep.Rep != txsocks5.RepSuccess {
		return &RejectError{Code: rep.Rep}
	}
	return nil
}
