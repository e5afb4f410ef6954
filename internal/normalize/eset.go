package normalize

import (
	"fmt"
	"strings"

	"github.com/oakmere/regsync/internal/domain/entity"
)

// esetNormalizer maps endpoint-security console records. The console is
// authoritative for antivirus status.
type esetNormalizer struct{}

func (n *esetNormalizer) Source() string { return SourceESET }

func (n *esetNormalizer) Normalize(p Payload) ([]entity.CanonicalEntity, []Warning) {
	var out []entity.CanonicalEntity
	var warns []Warning

	for i, rec := range p.Devices {
		hostname := rec.str("hostname", "name")
		if hostname == "" {
			warns = append(warns, Warning{
				Source: SourceESET,
				Detail: fmt.Sprintf("device record %d has no hostname, skipped", i),
			})
			continue
		}

		e := entity.CanonicalEntity{
			Kind:       entity.KindDevice,
			Source:     SourceESET,
			ObservedAt: observedAt(rec, p.FetchedAt, "last_seen"),
		}
		e.SetAttr(entity.AttrHostname, strings.ToLower(hostname))
		e.SetAttr(entity.AttrOS, rec.str("os_name"))
		e.SetAttr(entity.AttrOSVersion, rec.str("os_version"))
		status := rec.str("antivirus_status")
		if status == "" {
			status = "unknown"
		}
		e.SetAttr(entity.AttrAVStatus, status)

		mac := ""
		if raw := rec.str("mac", "mac_address"); raw != "" {
			m, err := CanonicalMAC(raw)
			if err != nil {
				warns = append(warns, Warning{
					Source: SourceESET,
					Detail: fmt.Sprintf("device %q: %v", hostname, err),
				})
			} else {
				mac = m
				e.SetAttr(entity.AttrMAC, m)
			}
		}

		serial := strings.ToLower(rec.str("serial_number"))
		e.SetAttr(entity.AttrSerial, serial)
		if serial != "" {
			e.Aliases = append(e.Aliases, entity.Alias{Type: entity.AliasSerial, Value: serial})
		}
		if mac != "" {
			e.Aliases = append(e.Aliases, entity.Alias{Type: entity.AliasMAC, Value: mac})
		}
		e.Aliases = append(e.Aliases, entity.Alias{Type: entity.AliasHostname, Value: strings.ToLower(hostname)})

		out = append(out, e)
	}

	return out, warns
}
