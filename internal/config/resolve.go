package config

import (
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

const resolvConf = "/etc/resolv.conf"

// ResolveUpstream resolves the host part of addr to an IP literal, so that
// the upstream SOCKS5 proxy is looked up once at startup rather than on
// every dial. IP literals pass through unchanged.
func ResolveUpstream(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	if net.ParseIP(host) != nil {
		return addr, nil
	}

	ip, err := lookupA(host)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(ip.String(), port), nil
}

func lookupA(host string) (net.IP, error) {
	cc, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", resolvConf, err)
	}

	c := &dns.Client{Timeout: 5 * time.Second}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range cc.Servers {
		r, _, err := c.Exchange(m, net.JoinHostPort(server, cc.Port))
		if err != nil {
			lastErr = err
			continue
		}
		for _, ans := range r.Answer {
			if a, ok := ans.(*dns.A); ok {
				return a.A, nil
			}
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, lastErr)
	}
	return nil, fmt.Errorf("resolve %s: no A records", host)
}
