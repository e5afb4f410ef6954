package normalize

import (
	"fmt"
	"strings"

	"github.com/oakmere/regsync/internal/domain/entity"
)

// intuneNormalizer maps Microsoft Graph managed-device records. The MDM
// service is authoritative for ownership and compliance.
type intuneNormalizer struct{}

func (n *intuneNormalizer) Source() string { return SourceIntune }

var complianceStates = map[string]string{
	"compliant":     "compliant",
	"noncompliant":  "non_compliant",
	"ingraceperiod": "non_compliant",
	"unknown":       "unknown",
}

func (n *intuneNormalizer) Normalize(p Payload) ([]entity.CanonicalEntity, []Warning) {
	var out []entity.CanonicalEntity
	var warns []Warning

	for i, rec := range p.Devices {
		name := rec.str("deviceName")
		if name == "" {
			warns = append(warns, Warning{
				Source: SourceIntune,
				Detail: fmt.Sprintf("managed device record %d has no deviceName, skipped", i),
			})
			continue
		}

		e := entity.CanonicalEntity{
			Kind:       entity.KindDevice,
			Source:     SourceIntune,
			ObservedAt: observedAt(rec, p.FetchedAt, "lastSyncDateTime"),
		}
		e.SetAttr(entity.AttrHostname, strings.ToLower(name))
		serial := strings.ToLower(rec.str("serialNumber"))
		e.SetAttr(entity.AttrSerial, serial)
		e.SetAttr(entity.AttrManufacturer, rec.str("manufacturer"))
		e.SetAttr(entity.AttrModel, rec.str("model"))
		e.SetAttr(entity.AttrOS, rec.str("operatingSystem"))
		e.SetAttr(entity.AttrOSVersion, rec.str("osVersion"))
		e.SetAttr(entity.AttrOwner, strings.ToLower(rec.str("userPrincipalName")))

		state := strings.ToLower(rec.str("complianceState"))
		if mapped, ok := complianceStates[state]; ok {
			e.SetAttr(entity.AttrCompliance, mapped)
		} else {
			e.SetAttr(entity.AttrCompliance, "unknown")
		}

		mac := ""
		if raw := rec.str("wiFiMacAddress", "ethernetMacAddress"); raw != "" {
			m, err := CanonicalMAC(raw)
			if err != nil {
				warns = append(warns, Warning{
					Source: SourceIntune,
					Detail: fmt.Sprintf("device %q: %v", name, err),
				})
			} else {
				mac = m
				e.SetAttr(entity.AttrMAC, m)
			}
		}

		if serial != "" {
			e.Aliases = append(e.Aliases, entity.Alias{Type: entity.AliasSerial, Value: serial})
		}
		if mac != "" {
			e.Aliases = append(e.Aliases, entity.Alias{Type: entity.AliasMAC, Value: mac})
		}
		e.Aliases = append(e.Aliases, entity.Alias{Type: entity.AliasHostname, Value: strings.ToLower(name)})

		out = append(out, e)
	}

	return out, warns
}
