package ipaddr_test

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/okonak/sluice/internal/ipaddr"
)

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"192.168.0.1", "192.168.0.1"},
		{"::1", "0000:0000:0000:0000:0000:0000:0000:0001"},
		{"2001:db8::1", "2001:0db8:0000:0000:0000:0000:0000:0001"},
		{"::ffff:10.0.0.1", "0000:0000:0000:0000:0000:ffff:0a00:0001"},
		{"0000:0000:0000:0000:0000:0000:0000:0001", "0000:0000:0000:0000:0000:0000:0000:0001"},
	}
	for _, c := range cases {
		got, err := ipaddr.Normalize(c.in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
		again, err := ipaddr.Normalize(got)
		if err != nil || again != got {
			t.Fatalf("Normalize not idempotent on %q: %q, %v", got, again, err)
		}
	}
}

func TestParse_Rejections(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{"", ipaddr.ErrInvalid},
		{"not-an-ip", ipaddr.ErrInvalid},
		{"256.1.1.1", ipaddr.ErrInvalid},
		{"fe80::1%eth0", ipaddr.ErrInvalid},
		{"1::2::3", ipaddr.ErrMultipleElisions},
		{"1:2:3:4:5:6:7", ipaddr.ErrGroupCount},
		{"1:2:3:4:5:6:7:8:9", ipaddr.ErrGroupCount},
		{strings.Repeat("1:", 200) + "2", ipaddr.ErrInvalid},
	}
	for _, c := range cases {
		if _, err := ipaddr.Parse(c.in); err != c.want {
			t.Fatalf("Parse(%q) err = %v, want %v", c.in, err, c.want)
		}
	}
}

func TestNormalizeCIDR(t *testing.T) {
	got, err := ipaddr.NormalizeCIDR("2001:db8::/32")
	if err != nil {
		t.Fatalf("NormalizeCIDR: %v", err)
	}
	if got != "2001:0db8:0000:0000:0000:0000:0000:0000/32" {
		t.Fatalf("NormalizeCIDR = %q", got)
	}
	for _, bad := range []string{"10.0.0.0", "10.0.0.0/33", "10.0.0.0/-1", "10.0.0.0/x", "::/129"} {
		if _, err := ipaddr.NormalizeCIDR(bad); err == nil {
			t.Fatalf("NormalizeCIDR(%q) should fail", bad)
		}
	}
}

func TestIsReserved(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"172.32.0.1", false},
		{"192.168.255.255", true},
		{"127.0.0.1", true},
		{"169.254.0.1", true},
		{"224.0.0.5", true},
		{"::1", true},
		{"fd00::1", true},
		{"fe80::1", true},
		{"ff02::1", true},
		{"::ffff:10.0.0.1", true},
		{"8.8.8.8", false},
		{"2001:db8::1", false},
	}
	for _, c := range cases {
		if got := ipaddr.IsReserved(netip.MustParseAddr(c.in)); got != c.want {
			t.Fatalf("IsReserved(%s) = %v, want %v", c.in, got, c.want)
		}
	}
}
