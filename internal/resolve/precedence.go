package resolve

import (
	"sort"

	"github.com/oakmere/regsync/internal/domain/entity"
	"github.com/oakmere/regsync/internal/normalize"
)

// Precedence decides which source wins when several report the same
// attribute. The per-attribute table is deployment policy and overridable
// from configuration; ties between equally ranked sources fall to the most
// recently observed value.
type Precedence struct {
	// Default is the source order used for attributes without their own row.
	Default []string

	// PerAttribute maps attribute name to an ordered source priority list.
	PerAttribute map[string][]string
}

// DefaultPrecedence reflects which system is authoritative for what: the MDM
// service for ownership and compliance, the endpoint-security console for
// antivirus state, the firewall for everything network-shaped.
func DefaultPrecedence() Precedence {
	return Precedence{
		Default: []string{normalize.SourceFortiGate, normalize.SourceIntune, normalize.SourceESET},
		PerAttribute: map[string][]string{
			entity.AttrOwner:      {normalize.SourceIntune, normalize.SourceESET, normalize.SourceFortiGate},
			entity.AttrCompliance: {normalize.SourceIntune, normalize.SourceESET, normalize.SourceFortiGate},
			entity.AttrSerial:     {normalize.SourceIntune, normalize.SourceFortiGate, normalize.SourceESET},
			entity.AttrAVStatus:   {normalize.SourceESET, normalize.SourceIntune, normalize.SourceFortiGate},
			entity.AttrOS:         {normalize.SourceIntune, normalize.SourceESET, normalize.SourceFortiGate},
			entity.AttrOSVersion:  {normalize.SourceIntune, normalize.SourceESET, normalize.SourceFortiGate},
		},
	}
}

// rank returns the priority index of source for attr; unknown sources rank
// after every listed one.
func (p Precedence) rank(attr, source string) int {
	order, ok := p.PerAttribute[attr]
	if !ok {
		order = p.Default
	}
	for i, s := range order {
		if s == source {
			return i
		}
	}
	return len(order)
}

// pick merges candidate values for one attribute: the best-ranked source
// wins, ties resolve to the most recent observation, and the remaining
// candidates are kept as shadowed provenance. The sort key is total, so the
// outcome is independent of candidate arrival order.
func (p Precedence) pick(attr string, candidates []entity.AttributeValue) entity.AttributeValue {
	if len(candidates) == 1 {
		return candidates[0]
	}
	sorted := append([]entity.AttributeValue(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := p.rank(attr, sorted[i].Source), p.rank(attr, sorted[j].Source)
		if ri != rj {
			return ri < rj
		}
		if !sorted[i].ObservedAt.Equal(sorted[j].ObservedAt) {
			return sorted[i].ObservedAt.After(sorted[j].ObservedAt)
		}
		if sorted[i].Source != sorted[j].Source {
			return sorted[i].Source < sorted[j].Source
		}
		return sorted[i].Value < sorted[j].Value
	})

	winner := sorted[0]
	winner.Shadowed = nil
	for _, loser := range sorted[1:] {
		if loser.Value == winner.Value && loser.Source == winner.Source {
			continue
		}
		loser.Shadowed = nil
		winner.Shadowed = append(winner.Shadowed, loser)
	}
	return winner
}
