package gcs

import "net"

// localAddrBytes renders addr ("host:port" or a bare host) into the
// 16-byte form LocalAddr returns: an IPv6 host's native 16 bytes, or an
// IPv4 host's four-byte dotted quad zero-padded left into the last four
// bytes of the buffer (IPv4-mapped placement). Hosts that don't resolve
// to a parseable IP — LocalHub's synthetic "local:<name>" descriptors,
// used only in tests and the in-process interactive mode — map to the
// IPv4-mapped unspecified address, since there is no real network
// address to report.
func localAddrBytes(addr string) [16]byte {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ip = net.IPv4zero
	}
	var b [16]byte
	if v4 := ip.To4(); v4 != nil {
		copy(b[12:], v4)
	} else {
		copy(b[:], ip.To16())
	}
	return b
}
