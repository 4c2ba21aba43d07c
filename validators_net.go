package sluice

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/okonak/sluice/internal/ipaddr"
)

const (
	MsgIPNotString      = "IP address is not a string"
	MsgIPBlacklisted    = "IP is blacklisted"
	MsgInvalidHostname  = "Invalid hostname"
	MsgInvalidHostOrIP  = "Invalid hostname or IP"
	MsgInvalidFQDN      = "Invalid FQDN"
	MsgReservedHostname = "Hostname is reserved"
	MsgDeniedHostname   = "Hostname is not allowed"
	MsgInvalidAddrPair  = "Invalid address pair"
)

// IsIP accepts IPv4 dotted-quad or IPv6 (including "::" shorthand and
// embedded IPv4) and normalizes to canonical form: dotted quad for IPv4,
// eight zero-padded hex groups for IPv6. Input beyond a small size bound is
// rejected outright, so pathological values fail fast.
func (c *Chain) IsIP() *Chain {
	return c.append("isIP", "IP address.", func(ctx context.Context, v, baton any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New(MsgIPNotString)
		}
		n, err := ipaddr.Normalize(s)
		if err != nil {
			return nil, err
		}
		return n, nil
	})
}

// IsCIDR accepts "<ip>/<prefixLen>", validating the prefix length against
// the address family and normalizing the address part.
func (c *Chain) IsCIDR() *Chain {
	return c.append("isCIDR", "CIDR block.", func(ctx context.Context, v, baton any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New(MsgIPNotString)
		}
		n, err := ipaddr.NormalizeCIDR(s)
		if err != nil {
			return nil, err
		}
		return n, nil
	})
}

// NotIPBlacklisted rejects addresses inside the fixed private/reserved
// ranges (IPv4 private, loopback, link-local and multicast blocks; IPv6
// loopback, unique-local, link-local and multicast blocks).
func (c *Chain) NotIPBlacklisted() *Chain {
	return c.append("notIPBlacklisted", "Publicly routable IP address.", func(ctx context.Context, v, baton any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New(MsgIPNotString)
		}
		a, err := ipaddr.Parse(s)
		if err != nil {
			return nil, err
		}
		if ipaddr.IsReserved(a) {
			return nil, errors.New(MsgIPBlacklisted)
		}
		return ipaddr.Canonical(a), nil
	})
}

// IsHostname requires standard DNS hostname grammar.
func (c *Chain) IsHostname() *Chain {
	return c.append("isHostname", "Hostname.", func(ctx context.Context, v, baton any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New(MsgNotString)
		}
		if !validHostname(s) {
			return nil, errors.New(MsgInvalidHostname)
		}
		return s, nil
	})
}

// IsHostnameOrIP accepts either a hostname or an IP address; IPs are
// normalized.
func (c *Chain) IsHostnameOrIP() *Chain {
	return c.append("isHostnameOrIp", "Hostname or IP address.", func(ctx context.Context, v, baton any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New(MsgNotString)
		}
		if n, err := ipaddr.Normalize(s); err == nil {
			return n, nil
		}
		if validHostname(s) {
			return s, nil
		}
		return nil, errors.New(MsgInvalidHostOrIP)
	})
}

// reservedTLDs and reservedNames are never valid public FQDNs.
var reservedTLDs = map[string]bool{
	"test": true, "example": true, "invalid": true, "localhost": true,
}

var reservedNames = map[string]bool{
	"example.com": true, "example.net": true, "example.org": true,
}

// IsAllowedFQDNOrIP accepts an IP (normalized) or a fully qualified hostname
// that is not single-label, not under a reserved TLD or reserved name, and
// does not fall under any caller-supplied denied suffix (matched on a dot
// boundary).
func (c *Chain) IsAllowedFQDNOrIP(denied ...string) *Chain {
	return c.append("isAllowedFQDNOrIP", "Public FQDN or IP address.", func(ctx context.Context, v, baton any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New(MsgNotString)
		}
		if n, err := ipaddr.Normalize(s); err == nil {
			return n, nil
		}
		host := strings.ToLower(strings.TrimSuffix(s, "."))
		if !validHostname(host) {
			return nil, errors.New(MsgInvalidHostname)
		}
		labels := strings.Split(host, ".")
		if len(labels) < 2 {
			return nil, errors.New(MsgInvalidFQDN)
		}
		if reservedTLDs[labels[len(labels)-1]] || reservedNames[host] {
			return nil, errors.New(MsgReservedHostname)
		}
		for _, d := range denied {
			d = strings.ToLower(strings.TrimSuffix(d, "."))
			if host == d || strings.HasSuffix(host, "."+d) {
				return nil, errors.New(MsgDeniedHostname)
			}
		}
		return s, nil
	})
}

// IsAddressPair accepts "ip:port", splitting on the last colon to tolerate
// IPv6 colons, validating both parts independently, and recombining into
// "normalizedIP:port".
func (c *Chain) IsAddressPair() *Chain {
	return c.append("isAddressPair", "ip:port pair.", func(ctx context.Context, v, baton any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New(MsgNotString)
		}
		i := strings.LastIndexByte(s, ':')
		if i <= 0 || i == len(s)-1 {
			return nil, errors.New(MsgInvalidAddrPair)
		}
		ip, err := ipaddr.Normalize(s[:i])
		if err != nil {
			return nil, err
		}
		port, err := strconv.Atoi(s[i+1:])
		if err != nil || port < 1 || port > 65535 {
			return nil, errors.New(MsgInvalidPort)
		}
		return ip + ":" + strconv.Itoa(port), nil
	})
}

// validHostname checks DNS label rules: 1-63 character alphanumeric/hyphen
// labels without leading or trailing hyphens, 253 characters overall.
func validHostname(s string) bool {
	if len(s) == 0 || len(s) > 253 {
		return false
	}
	for _, label := range strings.Split(s, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for i := 0; i < len(label); i++ {
			ch := label[i]
			switch {
			case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '-':
			default:
				return false
			}
		}
	}
	return true
}
