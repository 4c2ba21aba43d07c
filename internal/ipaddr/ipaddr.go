// Package ipaddr parses, canonicalizes and classifies textual IP addresses
// and CIDR blocks for the chain validators in the root package.
package ipaddr

import (
	"errors"
	"net/netip"
	"strconv"
	"strings"
)

// maxTextLen bounds the accepted input size. The longest valid textual form
// (IPv6 with embedded IPv4 plus a /prefix) is well under this; anything longer
// is rejected before parsing so pathological inputs fail in constant time.
const maxTextLen = 64

var (
	ErrInvalid          = errors.New("Invalid IP")
	ErrInvalidCIDR      = errors.New("Invalid CIDR")
	ErrMultipleElisions = errors.New("Invalid IPv6 (multiple '::')")
	ErrGroupCount       = errors.New("Invalid IPv6 (wrong group count)")
)

// Parse returns the address for s, rejecting zoned addresses and oversized
// input. Structurally broken IPv6 yields a more specific error than the
// generic ErrInvalid.
func Parse(s string) (netip.Addr, error) {
	if len(s) == 0 || len(s) > maxTextLen {
		return netip.Addr{}, ErrInvalid
	}
	if strings.Count(s, "::") > 1 {
		return netip.Addr{}, ErrMultipleElisions
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		if structurallyBadV6(s) {
			return netip.Addr{}, ErrGroupCount
		}
		return netip.Addr{}, ErrInvalid
	}
	if a.Zone() != "" {
		return netip.Addr{}, ErrInvalid
	}
	return a, nil
}

// structurallyBadV6 reports whether s looks like an IPv6 address with the
// wrong number of groups (no "::" elision to absorb the difference).
func structurallyBadV6(s string) bool {
	if !strings.Contains(s, ":") || strings.Contains(s, "::") {
		return false
	}
	colons := strings.Count(s, ":")
	if strings.Contains(s, ".") {
		// embedded IPv4 replaces the final two groups
		return colons != 6
	}
	return colons != 7
}

// Normalize returns the canonical textual form: dotted quad for IPv4, eight
// colon-separated zero-padded lowercase hex groups for IPv6 (including
// addresses written with embedded IPv4). Normalize is idempotent.
func Normalize(s string) (string, error) {
	a, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Canonical(a), nil
}

// Canonical renders an already parsed address in normalized form.
func Canonical(a netip.Addr) string {
	if a.Is4() {
		return a.String()
	}
	return a.StringExpanded()
}

// NormalizeCIDR validates "<ip>/<prefixLen>" and returns it with the address
// part normalized. The prefix length is checked against the address family
// (0..32 for IPv4, 0..128 for IPv6).
func NormalizeCIDR(s string) (string, error) {
	if len(s) > maxTextLen {
		return "", ErrInvalidCIDR
	}
	i := strings.LastIndexByte(s, '/')
	if i < 0 {
		return "", ErrInvalidCIDR
	}
	a, err := Parse(s[:i])
	if err != nil {
		return "", err
	}
	bits, err := strconv.Atoi(s[i+1:])
	if err != nil || bits < 0 || bits > a.BitLen() {
		return "", ErrInvalidCIDR
	}
	return Canonical(a) + "/" + strconv.Itoa(bits), nil
}

// reserved holds the private, loopback, link-local and multicast ranges
// rejected by the blacklist validator.
var reserved = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("ff00::/8"),
}

// IsReserved reports whether a falls inside a private or reserved range.
func IsReserved(a netip.Addr) bool {
	a = a.Unmap()
	for _, p := range reserved {
		if p.Contains(a) {
			return true
		}
	}
	return false
}
