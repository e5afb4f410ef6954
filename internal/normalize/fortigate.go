package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/oakmere/regsync/internal/domain/entity"
)

// fortigateNormalizer maps FortiGate monitor API records. The firewall is
// authoritative for network topology: interfaces, VLANs, prefixes and the
// DHCP/ARP derived address table.
type fortigateNormalizer struct {
	site string
}

func (n *fortigateNormalizer) Source() string { return SourceFortiGate }

var (
	uuidHostname = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)
	macHostname  = regexp.MustCompile(`^([a-f0-9]{2}[:-]){5}[a-f0-9]{2}$`)
)

func (n *fortigateNormalizer) Normalize(p Payload) ([]entity.CanonicalEntity, []Warning) {
	var out []entity.CanonicalEntity
	var warns []Warning

	warn := func(format string, args ...any) {
		warns = append(warns, Warning{Source: SourceFortiGate, Detail: fmt.Sprintf(format, args...)})
	}

	for i, rec := range p.Devices {
		hostname := rec.str("hostname", "name")
		if hostname == "" {
			warn("device record %d has no hostname, skipped", i)
			continue
		}

		e := entity.CanonicalEntity{
			Kind:       entity.KindDevice,
			Source:     SourceFortiGate,
			ObservedAt: observedAt(rec, p.FetchedAt, "last_seen"),
		}
		e.SetAttr(entity.AttrHostname, strings.ToLower(hostname))
		e.SetAttr(entity.AttrSite, n.site)

		serial := rec.str("serial", "serial_number")
		e.SetAttr(entity.AttrSerial, strings.ToLower(serial))
		if vendor := rec.str("hardware_vendor"); vendor != "" && vendor != "Unknown" {
			e.SetAttr(entity.AttrManufacturer, vendor)
		}
		if model := rec.str("hardware_type"); model != "" && model != "Unknown" {
			e.SetAttr(entity.AttrModel, model)
		}
		if os := rec.str("os_name"); os != "" && os != "Unknown" {
			e.SetAttr(entity.AttrOS, os)
		}
		e.SetAttr(entity.AttrOSVersion, rec.str("version", "os_version"))
		e.SetAttr(entity.AttrRole, deviceRole(hostname, rec.str("hardware_type"), rec.str("hardware_family")))

		mac := ""
		if raw := rec.str("mac", "mac_address"); raw != "" {
			m, err := CanonicalMAC(raw)
			if err != nil {
				warn("device %q: %v", hostname, err)
			} else {
				mac = m
				e.SetAttr(entity.AttrMAC, m)
			}
		}

		if serial != "" {
			e.Aliases = append(e.Aliases, entity.Alias{Type: entity.AliasSerial, Value: strings.ToLower(serial)})
		}
		if mac != "" {
			e.Aliases = append(e.Aliases, entity.Alias{Type: entity.AliasMAC, Value: mac})
		}
		e.Aliases = append(e.Aliases, entity.Alias{Type: entity.AliasHostname, Value: strings.ToLower(hostname)})

		out = append(out, e)
	}

	for i, rec := range p.Interfaces {
		name := rec.str("name")
		device := rec.str("device", "hostname")
		if name == "" || device == "" {
			warn("interface record %d missing name or device, skipped", i)
			continue
		}

		e := entity.CanonicalEntity{
			Kind:       entity.KindInterface,
			Source:     SourceFortiGate,
			ObservedAt: p.FetchedAt,
			ParentRef:  strings.ToLower(device),
		}
		e.SetAttr(entity.AttrName, strings.ToLower(name))
		e.SetAttr(entity.AttrDescription, rec.str("description"))
		switch rec.str("status") {
		case "up":
			e.SetAttr(entity.AttrStatus, "active")
		case "down":
			e.SetAttr(entity.AttrStatus, "inactive")
		default:
			e.SetAttr(entity.AttrStatus, "unknown")
		}
		if mtu, ok := rec.intVal("mtu"); ok {
			e.SetAttr(entity.AttrMTU, strconv.Itoa(mtu))
		}
		if raw := rec.str("mac", "mac_address"); raw != "" {
			if m, err := CanonicalMAC(raw); err != nil {
				warn("interface %s/%s: %v", device, name, err)
			} else {
				e.SetAttr(entity.AttrMAC, m)
			}
		}
		out = append(out, e)
	}

	for i, rec := range p.VLANs {
		vid, ok := rec.intVal("vlan_id", "vlanid")
		if !ok {
			warn("vlan record %d has no VLAN ID, skipped", i)
			continue
		}
		e := entity.CanonicalEntity{
			Kind:       entity.KindVLAN,
			Source:     SourceFortiGate,
			ObservedAt: p.FetchedAt,
		}
		e.SetAttr(entity.AttrVID, strconv.Itoa(vid))
		e.SetAttr(entity.AttrSite, n.site)
		name := rec.str("name")
		if name == "" {
			name = fmt.Sprintf("VLAN-%d", vid)
		}
		e.SetAttr(entity.AttrName, name)
		e.SetAttr(entity.AttrDescription, rec.str("description"))
		out = append(out, e)
	}

	for i, rec := range p.Prefixes {
		subnet := rec.str("subnet", "prefix")
		cidr, err := NetworkCIDR(subnet)
		if err != nil {
			warn("prefix record %d: %v", i, err)
			continue
		}
		e := entity.CanonicalEntity{
			Kind:       entity.KindPrefix,
			Source:     SourceFortiGate,
			ObservedAt: p.FetchedAt,
		}
		e.SetAttr(entity.AttrPrefix, cidr)
		e.SetAttr(entity.AttrSite, n.site)
		e.SetAttr(entity.AttrDescription, rec.str("description"))
		if vid, ok := rec.intVal("vlan_id", "vlanid"); ok {
			e.SetAttr(entity.AttrVID, strconv.Itoa(vid))
		}
		out = append(out, e)
	}

	for i, rec := range p.IPAddresses {
		cidr, err := CanonicalCIDR(rec.str("ip", "address"))
		if err != nil {
			warn("address record %d: %v", i, err)
			continue
		}
		e := entity.CanonicalEntity{
			Kind:       entity.KindIPAddress,
			Source:     SourceFortiGate,
			ObservedAt: p.FetchedAt,
			ParentRef:  strings.ToLower(rec.str("hostname", "device")),
		}
		e.SetAttr(entity.AttrAddress, cidr)
		e.SetAttr(entity.AttrStatus, "active")
		leaseType := rec.str("lease_type")
		if leaseType == "" {
			leaseType = "arp"
		}
		e.SetAttr(entity.AttrLeaseType, leaseType)
		e.SetAttr(entity.AttrInterfaceName, strings.ToLower(rec.str("interface")))
		if raw := rec.str("mac", "mac_address"); raw != "" {
			if m, err := CanonicalMAC(raw); err != nil {
				warn("address %s: %v", cidr, err)
			} else {
				e.SetAttr(entity.AttrMAC, m)
			}
		}
		if host := rec.str("hostname"); host != "" {
			e.SetAttr(entity.AttrDescription, fmt.Sprintf("%s lease for %s", leaseType, host))
		}
		out = append(out, e)
	}

	return out, warns
}

// deviceRole derives a coarse role from hostname shape and hardware hints,
// mirroring how the firewall reports attached devices.
func deviceRole(hostname, hardwareType, hardwareFamily string) string {
	lower := strings.ToLower(hostname)
	switch {
	case strings.Contains(hardwareType, "Firewall") || lower == "fortigate":
		return "firewall"
	case uuidHostname.MatchString(lower) || macHostname.MatchString(lower):
		return "vm"
	case hardwareFamily == "File Server" || hardwareFamily == "NAS" || strings.Contains(hardwareType, "Server"):
		return "server"
	case hardwareFamily == "Phone" || hardwareFamily == "iPhone" || hardwareFamily == "Tablet":
		return "mobile"
	default:
		return "workstation"
	}
}
