package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceKey(t *testing.T) {
	tests := []struct {
		name     string
		hostname string
		serial   string
		want     NaturalKey
	}{
		{"hostname and serial", "WS-042", "FGT60F123", "ws-042|fgt60f123"},
		{"hostname only", "ws-042", "", "ws-042"},
		{"serial only", "", "FGT60F123", "fgt60f123"},
		{"whitespace trimmed", "  WS-042  ", " abc ", "ws-042|abc"},
		{"both empty", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeviceKey(tt.hostname, tt.serial))
		})
	}
}

func TestChildKeys(t *testing.T) {
	assert.Equal(t, NaturalKey("fw-01/port1"), InterfaceKey("fw-01", " PORT1 "))
	assert.Equal(t, NaturalKey("100@hq"), VLANKey(100, "HQ"))
	assert.Equal(t, NaturalKey("10.1.0.0/24@hq"), PrefixKey("10.1.0.0/24", "HQ"))
	assert.Equal(t, NaturalKey("10.1.0.5/32"), IPAddressKey(" 10.1.0.5/32 "))
}

func TestKindTierOrdering(t *testing.T) {
	assert.Equal(t, 0, KindDevice.Tier())
	assert.Equal(t, 1, KindInterface.Tier())
	assert.Equal(t, 2, KindVLAN.Tier())
	assert.Equal(t, 2, KindPrefix.Tier())
	assert.Equal(t, 3, KindIPAddress.Tier())

	prev := -1
	for _, k := range Kinds() {
		assert.GreaterOrEqual(t, k.Tier(), prev)
		prev = k.Tier()
	}
}

func TestParseKindRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("router")
	assert.Error(t, err)
}

func TestSetAttrDropsEmpty(t *testing.T) {
	e := CanonicalEntity{Source: "fortigate"}
	e.SetAttr(AttrHostname, "fw-01")
	e.SetAttr(AttrSerial, "")

	assert.Equal(t, "fw-01", e.Attr(AttrHostname))
	_, present := e.Attributes[AttrSerial]
	assert.False(t, present, "empty values must not be stored")
	assert.Equal(t, "fortigate", e.Attributes[AttrHostname].Source)
}
