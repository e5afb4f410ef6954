package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the type of registry object an entity describes.
type Kind int

const (
	KindDevice Kind = iota
	KindInterface
	KindVLAN
	KindPrefix
	KindIPAddress
)

func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindInterface:
		return "interface"
	case KindVLAN:
		return "vlan"
	case KindPrefix:
		return "prefix"
	case KindIPAddress:
		return "ip_address"
	default:
		return "unknown"
	}
}

// Tier returns the dependency tier of the kind. Objects in a lower tier must
// exist in the registry before objects in a higher tier can reference them:
// device -> interface -> (vlan, prefix) -> ip_address.
func (k Kind) Tier() int {
	switch k {
	case KindDevice:
		return 0
	case KindInterface:
		return 1
	case KindVLAN, KindPrefix:
		return 2
	case KindIPAddress:
		return 3
	default:
		return 4
	}
}

// Kinds lists every entity kind in ascending tier order.
func Kinds() []Kind {
	return []Kind{KindDevice, KindInterface, KindVLAN, KindPrefix, KindIPAddress}
}

// ParseKind converts a stored string back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "device":
		return KindDevice, nil
	case "interface":
		return KindInterface, nil
	case "vlan":
		return KindVLAN, nil
	case "prefix":
		return KindPrefix, nil
	case "ip_address":
		return KindIPAddress, nil
	default:
		return 0, fmt.Errorf("unknown entity kind %q", s)
	}
}

// NaturalKey is the stable identifying tuple of an entity within its kind,
// encoded as a single string so it can be compared, sorted and persisted.
type NaturalKey string

// DeviceKey builds a device natural key from the lowercased hostname plus the
// chassis serial when one is known.
func DeviceKey(hostname, serial string) NaturalKey {
	h := strings.ToLower(strings.TrimSpace(hostname))
	s := strings.ToLower(strings.TrimSpace(serial))
	switch {
	case h == "":
		return NaturalKey(s)
	case s == "":
		return NaturalKey(h)
	default:
		return NaturalKey(h + "|" + s)
	}
}

// InterfaceKey builds an interface natural key from its owning device key and
// the interface name.
func InterfaceKey(device NaturalKey, name string) NaturalKey {
	return NaturalKey(string(device) + "/" + strings.ToLower(strings.TrimSpace(name)))
}

// IPAddressKey builds an address natural key from the address in CIDR form.
func IPAddressKey(cidr string) NaturalKey {
	return NaturalKey(strings.TrimSpace(cidr))
}

// VLANKey builds a VLAN natural key from the VLAN ID and site.
func VLANKey(vid int, site string) NaturalKey {
	return NaturalKey(strconv.Itoa(vid) + "@" + strings.ToLower(strings.TrimSpace(site)))
}

// PrefixKey builds a prefix natural key from the network in CIDR form and site.
func PrefixKey(cidr, site string) NaturalKey {
	return NaturalKey(strings.TrimSpace(cidr) + "@" + strings.ToLower(strings.TrimSpace(site)))
}

// Alias is one candidate identity key for an entity. Two entities of the same
// kind that share any alias describe the same real-world object.
type Alias struct {
	Type  string
	Value string
}

// Alias types in merge priority order for devices.
const (
	AliasSerial   = "serial"
	AliasMAC      = "mac"
	AliasHostname = "hostname"
	AliasChild    = "child" // interface/address scoped under a device alias
	AliasCIDR     = "cidr"
	AliasVID      = "vid"
)

// AttributeValue is one merged attribute value with its provenance. Shadowed
// holds values from sources that lost the precedence decision; they are kept
// for audit and debugging only and never participate in the content hash.
type AttributeValue struct {
	Value      string
	Source     string
	ObservedAt time.Time
	Shadowed   []AttributeValue
}

// Attribute names shared across sources. Sources that do not know a field
// simply omit it.
const (
	AttrHostname      = "hostname"
	AttrSerial        = "serial"
	AttrManufacturer  = "manufacturer"
	AttrModel         = "model"
	AttrRole          = "role"
	AttrOS            = "os"
	AttrOSVersion     = "os_version"
	AttrOwner         = "owner"
	AttrCompliance    = "compliance"
	AttrAVStatus      = "av_status"
	AttrStatus        = "status"
	AttrMAC           = "mac"
	AttrMTU           = "mtu"
	AttrDescription   = "description"
	AttrSite          = "site"
	AttrName          = "name"
	AttrVID           = "vid"
	AttrAddress       = "address"
	AttrPrefix        = "prefix"
	AttrLeaseType     = "lease_type"
	AttrInterfaceName = "interface_name"
)

// CanonicalEntity is one object as seen by exactly one source, already
// normalized into shared units and attribute names.
type CanonicalEntity struct {
	Kind       Kind
	Source     string
	ObservedAt time.Time

	// Aliases are the candidate identity keys in priority order.
	Aliases []Alias

	// ParentRef names the owning device as the source reported it (hostname
	// or serial); the resolver rewrites it to the merged device key.
	ParentRef string

	Attributes map[string]AttributeValue
}

// SetAttr records an attribute value tagged with the entity's own source.
// Empty values are dropped so absent fields never shadow real ones.
func (e *CanonicalEntity) SetAttr(name, value string) {
	if value == "" {
		return
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]AttributeValue)
	}
	e.Attributes[name] = AttributeValue{
		Value:      value,
		Source:     e.Source,
		ObservedAt: e.ObservedAt,
	}
}

// Attr returns the value of the named attribute, or "" when unset.
func (e *CanonicalEntity) Attr(name string) string {
	return e.Attributes[name].Value
}
