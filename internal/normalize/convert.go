package normalize

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"
)

// CanonicalMAC normalizes a MAC address to lower-case colon-separated form.
// Accepts colon, hyphen and dot separated input as well as bare hex.
func CanonicalMAC(raw string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.NewReplacer(":", "", "-", "", ".", "").Replace(cleaned)
	if len(cleaned) != 12 {
		return "", fmt.Errorf("malformed MAC address %q", raw)
	}
	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		pair := cleaned[i : i+2]
		for _, c := range pair {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
				return "", fmt.Errorf("malformed MAC address %q", raw)
			}
		}
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(pair)
	}
	return b.String(), nil
}

// CanonicalCIDR normalizes an address or network to CIDR notation. A bare
// host address gets a /32 (or /128 for IPv6); "addr netmask" pairs are
// converted to prefix length.
func CanonicalCIDR(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty address")
	}

	// FortiGate reports "10.0.0.1 255.255.255.0" for interface addresses.
	if fields := strings.Fields(s); len(fields) == 2 {
		ip := net.ParseIP(fields[0])
		maskIP := net.ParseIP(fields[1])
		if ip == nil || maskIP == nil {
			return "", fmt.Errorf("malformed address %q", raw)
		}
		mask := net.IPMask(maskIP.To4())
		if mask == nil {
			return "", fmt.Errorf("malformed netmask %q", fields[1])
		}
		ones, bits := mask.Size()
		if bits == 0 {
			return "", fmt.Errorf("malformed netmask %q", fields[1])
		}
		return fmt.Sprintf("%s/%d", ip.String(), ones), nil
	}

	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return "", fmt.Errorf("malformed CIDR %q: %w", raw, err)
		}
		return p.String(), nil
	}

	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", fmt.Errorf("malformed address %q: %w", raw, err)
	}
	if addr.Is4() {
		return addr.String() + "/32", nil
	}
	return addr.String() + "/128", nil
}

// NetworkCIDR normalizes a network to its canonical (masked) prefix, so
// "10.1.2.3/24" and "10.1.2.0/24" fold to the same key.
func NetworkCIDR(raw string) (string, error) {
	cidr, err := CanonicalCIDR(raw)
	if err != nil {
		return "", err
	}
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return "", err
	}
	return p.Masked().String(), nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseUTC parses a source timestamp in any of the formats the sources emit
// and normalizes it to UTC.
func ParseUTC(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
