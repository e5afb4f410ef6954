// Package normalize maps raw per-source payloads into canonical entities.
// Normalizers are pure: they perform no I/O and never mutate shared state,
// so a given payload always yields the same entities. Malformed records are
// skipped with a warning rather than failing the source's contribution.
package normalize

import (
	"fmt"
	"strconv"
	"time"

	"github.com/oakmere/regsync/internal/domain/entity"
)

// Source identifiers as they appear in provenance metadata and the
// precedence table.
const (
	SourceFortiGate = "fortigate"
	SourceIntune    = "intune"
	SourceESET      = "eset"
)

// RawRecord is one untyped record from a source payload.
type RawRecord map[string]any

// Payload carries everything one source reported in one fetch. Slices a
// source does not populate stay empty.
type Payload struct {
	FetchedAt time.Time

	Devices     []RawRecord
	Interfaces  []RawRecord
	VLANs       []RawRecord
	Prefixes    []RawRecord
	IPAddresses []RawRecord
}

// Warning reports one skipped or degraded record.
type Warning struct {
	Source string
	Detail string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Source, w.Detail)
}

// Normalizer converts one source's payload into canonical entities.
type Normalizer interface {
	Source() string
	Normalize(p Payload) ([]entity.CanonicalEntity, []Warning)
}

// ForSource returns the normalizer for a source identifier. Site scopes the
// VLAN and prefix natural keys for deployments spanning multiple sites.
func ForSource(id, site string) (Normalizer, error) {
	switch id {
	case SourceFortiGate:
		return &fortigateNormalizer{site: site}, nil
	case SourceIntune:
		return &intuneNormalizer{}, nil
	case SourceESET:
		return &esetNormalizer{}, nil
	default:
		return nil, fmt.Errorf("no normalizer for source %q", id)
	}
}

// str returns the first non-empty string value among the given keys.
func (r RawRecord) str(keys ...string) string {
	for _, k := range keys {
		if v, ok := r[k]; ok {
			switch s := v.(type) {
			case string:
				if s != "" {
					return s
				}
			case fmt.Stringer:
				if out := s.String(); out != "" {
					return out
				}
			}
		}
	}
	return ""
}

// intVal returns the first integer-convertible value among the given keys.
func (r RawRecord) intVal(keys ...string) (int, bool) {
	for _, k := range keys {
		switch v := r[k].(type) {
		case int:
			return v, true
		case int64:
			return int(v), true
		case float64:
			return int(v), true
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// observedAt resolves a record's own timestamp, falling back to the fetch time.
func observedAt(r RawRecord, fallback time.Time, keys ...string) time.Time {
	if raw := r.str(keys...); raw != "" {
		if t, err := ParseUTC(raw); err == nil {
			return t
		}
	}
	return fallback
}
