package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmere/regsync/internal/domain/entity"
)

func fortigatePayload() Payload {
	return Payload{
		FetchedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Devices: []RawRecord{
			{
				"hostname":        "FW-01",
				"serial":          "FGT60F123",
				"hardware_vendor": "Fortinet",
				"hardware_type":   "Firewall",
				"os_name":         "FortiOS",
				"version":         "7.4.3",
				"mac":             "AA:BB:CC:DD:EE:01",
			},
			{"serial": "orphan-no-hostname"},
		},
		Interfaces: []RawRecord{
			{"name": "port1", "device": "FW-01", "status": "up", "mtu": 1500, "mac": "aa-bb-cc-dd-ee-02"},
			{"name": "port2", "device": "FW-01", "status": "down"},
			{"name": "", "device": "FW-01"},
		},
		VLANs: []RawRecord{
			{"vlan_id": 100, "name": "Servers"},
			{"vlan_id": 200},
			{"name": "no-vid"},
		},
		Prefixes: []RawRecord{
			{"subnet": "10.1.2.3/24", "vlan_id": 100},
			{"subnet": "garbage"},
		},
		IPAddresses: []RawRecord{
			{"ip": "10.1.2.50", "hostname": "ws-042", "lease_type": "dhcp", "interface": "port1"},
			{"ip": "not-an-ip"},
		},
	}
}

func TestFortigateNormalizeDevices(t *testing.T) {
	n, err := ForSource(SourceFortiGate, "hq")
	require.NoError(t, err)

	entities, warns := n.Normalize(fortigatePayload())

	var devices []entity.CanonicalEntity
	for _, e := range entities {
		if e.Kind == entity.KindDevice {
			devices = append(devices, e)
		}
	}
	require.Len(t, devices, 1, "hostname-less device must be skipped")

	fw := devices[0]
	assert.Equal(t, "fw-01", fw.Attr(entity.AttrHostname))
	assert.Equal(t, "fgt60f123", fw.Attr(entity.AttrSerial))
	assert.Equal(t, "firewall", fw.Attr(entity.AttrRole))
	assert.Equal(t, "aa:bb:cc:dd:ee:01", fw.Attr(entity.AttrMAC))
	assert.Equal(t, "hq", fw.Attr(entity.AttrSite))

	require.Len(t, fw.Aliases, 3)
	assert.Equal(t, entity.AliasSerial, fw.Aliases[0].Type)
	assert.Equal(t, entity.AliasMAC, fw.Aliases[1].Type)
	assert.Equal(t, entity.AliasHostname, fw.Aliases[2].Type)

	assert.NotEmpty(t, warns, "skipped device must produce a warning")
}

func TestFortigateNormalizeChildren(t *testing.T) {
	n, err := ForSource(SourceFortiGate, "hq")
	require.NoError(t, err)

	entities, warns := n.Normalize(fortigatePayload())

	counts := map[entity.Kind]int{}
	for _, e := range entities {
		counts[e.Kind]++
	}
	assert.Equal(t, 2, counts[entity.KindInterface])
	assert.Equal(t, 2, counts[entity.KindVLAN])
	assert.Equal(t, 1, counts[entity.KindPrefix])
	assert.Equal(t, 1, counts[entity.KindIPAddress])

	for _, e := range entities {
		switch e.Kind {
		case entity.KindInterface:
			assert.Equal(t, "fw-01", e.ParentRef)
			if e.Attr(entity.AttrName) == "port1" {
				assert.Equal(t, "active", e.Attr(entity.AttrStatus))
				assert.Equal(t, "1500", e.Attr(entity.AttrMTU))
				assert.Equal(t, "aa:bb:cc:dd:ee:02", e.Attr(entity.AttrMAC))
			}
			if e.Attr(entity.AttrName) == "port2" {
				assert.Equal(t, "inactive", e.Attr(entity.AttrStatus))
			}
		case entity.KindVLAN:
			if e.Attr(entity.AttrVID) == "200" {
				assert.Equal(t, "VLAN-200", e.Attr(entity.AttrName), "missing names get a default")
			}
		case entity.KindPrefix:
			assert.Equal(t, "10.1.2.0/24", e.Attr(entity.AttrPrefix), "prefix must be masked")
		case entity.KindIPAddress:
			assert.Equal(t, "10.1.2.50/32", e.Attr(entity.AttrAddress))
			assert.Equal(t, "dhcp", e.Attr(entity.AttrLeaseType))
			assert.Equal(t, "ws-042", e.ParentRef)
		}
	}

	// one bad interface, one bad vlan, one bad prefix, one bad address
	assert.GreaterOrEqual(t, len(warns), 4)
}
