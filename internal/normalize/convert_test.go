package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalMAC(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"colon form", "AA:BB:CC:DD:EE:FF", "aa:bb:cc:dd:ee:ff", false},
		{"hyphen form", "aa-bb-cc-dd-ee-ff", "aa:bb:cc:dd:ee:ff", false},
		{"cisco dot form", "aabb.ccdd.eeff", "aa:bb:cc:dd:ee:ff", false},
		{"bare hex", "aabbccddeeff", "aa:bb:cc:dd:ee:ff", false},
		{"padded", "  AA:BB:CC:DD:EE:FF  ", "aa:bb:cc:dd:ee:ff", false},
		{"too short", "aa:bb:cc", "", true},
		{"non hex", "zz:bb:cc:dd:ee:ff", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalMAC(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalCIDR(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"already cidr", "10.1.0.5/24", "10.1.0.5/24", false},
		{"bare ipv4", "10.1.0.5", "10.1.0.5/32", false},
		{"bare ipv6", "fd00::1", "fd00::1/128", false},
		{"addr netmask pair", "10.1.0.1 255.255.255.0", "10.1.0.1/24", false},
		{"garbage", "not-an-address", "", true},
		{"empty", "", "", true},
		{"bad netmask", "10.1.0.1 255.255.255.256", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalCIDR(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNetworkCIDRFoldsHostBits(t *testing.T) {
	a, err := NetworkCIDR("10.1.2.3/24")
	require.NoError(t, err)
	b, err := NetworkCIDR("10.1.2.0/24")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "10.1.2.0/24", a)
}

func TestParseUTC(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", "2026-03-01T10:00:00Z", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"rfc3339 offset", "2026-03-01T12:00:00+02:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"space separated", "2026-03-01 10:00:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"date only", "2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUTC(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
		})
	}

	_, err := ParseUTC("yesterday")
	assert.Error(t, err)
	_, err = ParseUTC("")
	assert.Error(t, err)
}
