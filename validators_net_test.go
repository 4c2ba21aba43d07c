package sluice_test

import (
	"strings"
	"testing"
	"time"

	sluice "github.com/okonak/sluice"
)

func TestIsIP_CanonicalizesIPv6(t *testing.T) {
	c := sluice.NewChain().IsIP()
	cases := map[string]string{
		"::1234":      "0000:0000:0000:0000:0000:0000:0000:1234",
		"1234::":      "1234:0000:0000:0000:0000:0000:0000:0000",
		"::":          "0000:0000:0000:0000:0000:0000:0000:0000",
		"2001:db8::1": "2001:0db8:0000:0000:0000:0000:0000:0001",
		"10.1.2.3":    "10.1.2.3",
	}
	for in, want := range cases {
		v, err := run(t, c, in)
		if err != nil {
			t.Fatalf("IsIP(%q): %v", in, err)
		}
		if v.(string) != want {
			t.Fatalf("IsIP(%q): got %q, want %q", in, v, want)
		}
		// normalization is idempotent
		v2, err := run(t, c, v)
		if err != nil || v2.(string) != want {
			t.Fatalf("IsIP not idempotent on %q: v=%v err=%v", want, v2, err)
		}
	}
}

func TestIsIP_Rejections(t *testing.T) {
	c := sluice.NewChain().IsIP()
	mustFail(t, c, 5, "IP address is not a string")
	mustFail(t, c, nil, "IP address is not a string")
	mustFail(t, c, "999.1.1.1", "Invalid IP")
	mustFail(t, c, "1::2::3", "Invalid IPv6 (multiple '::')")
	mustFail(t, c, "1:2:3:4:5:6:7", "Invalid IPv6 (wrong group count)")
}

func TestIsIP_PathologicalInputFailsFast(t *testing.T) {
	c := sluice.NewChain().IsIP()
	huge := strings.Repeat("1:2.3:", 200000) // ~1.2MB of separators and digits
	start := time.Now()
	_, err := run(t, c, huge)
	if err == nil {
		t.Fatalf("expected error for pathological input")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("pathological input took %v", elapsed)
	}
}

func TestIsCIDR(t *testing.T) {
	c := sluice.NewChain().IsCIDR()
	v, err := run(t, c, "192.168.0.0/16")
	if err != nil || v.(string) != "192.168.0.0/16" {
		t.Fatalf("cidr: v=%v err=%v", v, err)
	}
	v, err = run(t, c, "2001:db8::/32")
	if err != nil || v.(string) != "2001:0db8:0000:0000:0000:0000:0000:0000/32" {
		t.Fatalf("cidr v6: v=%v err=%v", v, err)
	}
	mustFail(t, c, "10.0.0.0/33", "Invalid CIDR")
	mustFail(t, c, "2001:db8::/129", "Invalid CIDR")
	mustFail(t, c, "10.0.0.0", "Invalid CIDR")
}

func TestNotIPBlacklisted(t *testing.T) {
	c := sluice.NewChain().NotIPBlacklisted()
	if _, err := run(t, c, "8.8.8.8"); err != nil {
		t.Fatalf("public IP rejected: %v", err)
	}
	for _, in := range []string{"10.0.0.1", "172.16.5.5", "192.168.1.1", "127.0.0.1", "224.0.0.1", "fc00::1", "ff02::1", "::1"} {
		mustFail(t, c, in, "IP is blacklisted")
	}
}

func TestHostnameValidators(t *testing.T) {
	h := sluice.NewChain().IsHostname()
	if _, err := run(t, h, "db-01.internal.corp"); err != nil {
		t.Fatalf("hostname: %v", err)
	}
	mustFail(t, h, "-bad.example", "Invalid hostname")
	mustFail(t, h, "a..b", "Invalid hostname")

	hi := sluice.NewChain().IsHostnameOrIP()
	if v, err := run(t, hi, "::1"); err != nil || v.(string) != "0000:0000:0000:0000:0000:0000:0000:0001" {
		t.Fatalf("hostnameOrIP v6: v=%v err=%v", v, err)
	}
	if _, err := run(t, hi, "web.service"); err != nil {
		t.Fatalf("hostnameOrIP host: %v", err)
	}
	mustFail(t, hi, "no spaces here", "Invalid hostname or IP")
}

func TestIsAllowedFQDNOrIP(t *testing.T) {
	c := sluice.NewChain().IsAllowedFQDNOrIP("denied.io")
	if _, err := run(t, c, "app.prod.net"); err != nil {
		t.Fatalf("fqdn: %v", err)
	}
	if _, err := run(t, c, "8.8.4.4"); err != nil {
		t.Fatalf("fqdn ip: %v", err)
	}
	mustFail(t, c, "singlelabel", "Invalid FQDN")
	mustFail(t, c, "foo.test", "Hostname is reserved")
	mustFail(t, c, "something.localhost", "Hostname is reserved")
	mustFail(t, c, "example.com", "Hostname is reserved")
	mustFail(t, c, "api.denied.io", "Hostname is not allowed")
	// suffix match respects dot boundaries
	if _, err := run(t, c, "notdenied.io"); err != nil {
		t.Fatalf("dot-boundary suffix match broke: %v", err)
	}
}

func TestIsAddressPair(t *testing.T) {
	c := sluice.NewChain().IsAddressPair()
	v, err := run(t, c, "10.1.2.3:8080")
	if err != nil || v.(string) != "10.1.2.3:8080" {
		t.Fatalf("pair: v=%v err=%v", v, err)
	}
	// splits on the last colon, tolerating IPv6 colons
	v, err = run(t, c, "::1:443")
	if err != nil || v.(string) != "0000:0000:0000:0000:0000:0000:0000:0001:443" {
		t.Fatalf("pair v6: v=%v err=%v", v, err)
	}
	mustFail(t, c, "nocolon", "Invalid address pair")
	mustFail(t, c, "10.0.0.1:99999", "Invalid port")
}
