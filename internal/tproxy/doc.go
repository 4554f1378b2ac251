// Package tproxy implements transparent proxy listeners and original
// destination recovery for Linux, FreeBSD, and OpenBSD.
//
// On Linux, it listens with IP_TRANSPARENT for use with iptables/nftables
// TPROXY rules. TPROXY delivers redirected connections with the original
// destination preserved as the accepted socket's local address, so the
// default resolver simply reads that. For iptables REDIRECT/DNAT setups,
// where the destination is rewritten and must be fetched from conntrack,
// the "redirect" resolver queries SO_ORIGINAL_DST instead.
//
// On FreeBSD, it listens with IP_BINDANY (protocol-level); IPFW fwd and PF
// rdr-to preserve the original destination in the local address.
//
// On OpenBSD, it listens with SO_BINDANY (socket-level); PF rdr-to preserves
// the original destination in the local address.
//
// On other platforms, the listener is stubbed out and returns errors.
package tproxy
