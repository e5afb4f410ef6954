// Package resolve merges canonical entities that describe the same
// real-world object but arrived from different sources under different
// identifiers. Devices merge through a union-find over their candidate alias
// keys; child objects then attach to the merged device keys. When a merge
// would be ambiguous the entities stay separate: conflating two real devices
// is worse than carrying a duplicate until the data improves.
package resolve

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/oakmere/regsync/internal/domain/entity"
)

type Resolver struct {
	prec   Precedence
	logger *zap.Logger
}

func NewResolver(prec Precedence, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{prec: prec, logger: logger}
}

// Resolve turns the unioned canonical entities of one run into logical
// entities, one per real-world object, sorted by dependency tier and key.
func (r *Resolver) Resolve(entities []entity.CanonicalEntity) ([]entity.LogicalEntity, []string) {
	byKind := make(map[entity.Kind][]entity.CanonicalEntity)
	for _, e := range entities {
		byKind[e.Kind] = append(byKind[e.Kind], e)
	}

	devices, aliasIndex, warns := r.resolveDevices(byKind[entity.KindDevice])
	out := devices

	out = append(out, r.resolveGrouped(byKind[entity.KindInterface], func(e *entity.CanonicalEntity) (entity.NaturalKey, entity.NaturalKey) {
		parent := resolveParent(e.ParentRef, aliasIndex)
		return entity.InterfaceKey(parent, e.Attr(entity.AttrName)), parent
	})...)

	out = append(out, r.resolveGrouped(byKind[entity.KindVLAN], func(e *entity.CanonicalEntity) (entity.NaturalKey, entity.NaturalKey) {
		vid, err := strconv.Atoi(e.Attr(entity.AttrVID))
		if err != nil {
			warns = append(warns, fmt.Sprintf("vlan record from %s has non-numeric id %q, skipped",
				e.Source, e.Attr(entity.AttrVID)))
			r.logger.Warn("vlan with unparseable id skipped",
				zap.String("vid", e.Attr(entity.AttrVID)),
				zap.String("source", e.Source))
			return "", ""
		}
		return entity.VLANKey(vid, e.Attr(entity.AttrSite)), ""
	})...)

	out = append(out, r.resolveGrouped(byKind[entity.KindPrefix], func(e *entity.CanonicalEntity) (entity.NaturalKey, entity.NaturalKey) {
		return entity.PrefixKey(e.Attr(entity.AttrPrefix), e.Attr(entity.AttrSite)), ""
	})...)

	out = append(out, r.resolveGrouped(byKind[entity.KindIPAddress], func(e *entity.CanonicalEntity) (entity.NaturalKey, entity.NaturalKey) {
		return entity.IPAddressKey(e.Attr(entity.AttrAddress)), resolveParent(e.ParentRef, aliasIndex)
	})...)

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind.Tier() != out[j].Kind.Tier() {
			return out[i].Kind.Tier() < out[j].Kind.Tier()
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Key < out[j].Key
	})

	return out, warns
}

// resolveDevices merges device entities through the alias graph and returns
// the merged devices plus an index from every known alias value to the
// merged device key, used to rewrite child parent references.
func (r *Resolver) resolveDevices(devs []entity.CanonicalEntity) ([]entity.LogicalEntity, map[string]entity.NaturalKey, []string) {
	var warns []string
	uf := NewUnionFind(len(devs))
	aliasOwner := make(map[string]int)
	serialOf := make(map[int]string)

	for i, e := range devs {
		if s := aliasValue(e, entity.AliasSerial); s != "" {
			serialOf[uf.Find(i)] = s
		}
	}

	for i, e := range devs {
		for _, a := range e.Aliases {
			k := a.Type + "\x00" + strings.ToLower(a.Value)
			j, seen := aliasOwner[k]
			if !seen {
				aliasOwner[k] = i
				continue
			}
			ri, rj := uf.Find(i), uf.Find(j)
			if ri == rj {
				continue
			}
			si, sj := serialOf[ri], serialOf[rj]
			if si != "" && sj != "" && si != sj {
				// Same alias but contradictory chassis serials: merging here
				// would conflate two distinct devices, so keep them apart.
				warn := fmt.Sprintf("identity conflict on %s=%s: serials %q vs %q, entities kept separate",
					a.Type, a.Value, si, sj)
				warns = append(warns, warn)
				r.logger.Warn("ambiguous device merge skipped",
					zap.String("alias", a.Value),
					zap.String("serial_a", si),
					zap.String("serial_b", sj))
				continue
			}
			root := uf.Union(ri, rj)
			if si != "" {
				serialOf[root] = si
			} else if sj != "" {
				serialOf[root] = sj
			}
		}
	}

	groups := uf.Groups()
	roots := make([]int, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	var out []entity.LogicalEntity
	aliasIndex := make(map[string]entity.NaturalKey)
	for _, root := range roots {
		members := make([]entity.CanonicalEntity, 0, len(groups[root]))
		for _, idx := range groups[root] {
			members = append(members, devs[idx])
		}

		attrs, sources := r.mergeAttributes(members)
		merged := entity.LogicalEntity{
			Kind:       entity.KindDevice,
			Key:        entity.DeviceKey(attrs[entity.AttrHostname].Value, attrs[entity.AttrSerial].Value),
			Attributes: attrs,
			Sources:    sources,
		}
		if merged.Key == "" {
			// No hostname or serial anywhere in the group; fall back to the
			// strongest alias so the entity is kept rather than dropped.
			if len(members[0].Aliases) > 0 {
				merged.Key = entity.NaturalKey(strings.ToLower(members[0].Aliases[0].Value))
			} else {
				warns = append(warns, "device group with no identifying key skipped")
				continue
			}
		}
		out = append(out, merged)

		for _, m := range members {
			for _, a := range m.Aliases {
				aliasIndex[strings.ToLower(a.Value)] = merged.Key
			}
		}
	}

	return out, aliasIndex, warns
}

// resolveGrouped merges non-device entities that share the same natural key.
// keyFn computes the natural key and resolved parent for one canonical entity.
func (r *Resolver) resolveGrouped(items []entity.CanonicalEntity, keyFn func(*entity.CanonicalEntity) (entity.NaturalKey, entity.NaturalKey)) []entity.LogicalEntity {
	type group struct {
		parent  entity.NaturalKey
		members []entity.CanonicalEntity
	}
	groups := make(map[entity.NaturalKey]*group)
	order := make([]entity.NaturalKey, 0, len(items))

	for i := range items {
		key, parent := keyFn(&items[i])
		if key == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &group{parent: parent}
			groups[key] = g
			order = append(order, key)
		}
		if g.parent == "" {
			g.parent = parent
		}
		g.members = append(g.members, items[i])
	}

	out := make([]entity.LogicalEntity, 0, len(order))
	for _, key := range order {
		g := groups[key]
		attrs, sources := r.mergeAttributes(g.members)
		out = append(out, entity.LogicalEntity{
			Kind:       g.members[0].Kind,
			Key:        key,
			ParentKey:  g.parent,
			Attributes: attrs,
			Sources:    sources,
		})
	}
	return out
}

// mergeAttributes applies the precedence table field by field across a merge
// group, keeping losing values as shadowed provenance.
func (r *Resolver) mergeAttributes(members []entity.CanonicalEntity) (map[string]entity.AttributeValue, []string) {
	candidates := make(map[string][]entity.AttributeValue)
	sourceSet := make(map[string]struct{})
	for _, m := range members {
		sourceSet[m.Source] = struct{}{}
		for name, v := range m.Attributes {
			candidates[name] = append(candidates[name], v)
		}
	}

	attrs := make(map[string]entity.AttributeValue, len(candidates))
	for name, values := range candidates {
		attrs[name] = r.prec.pick(name, values)
	}

	sources := make([]string, 0, len(sourceSet))
	for s := range sourceSet {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return attrs, sources
}

func resolveParent(ref string, aliasIndex map[string]entity.NaturalKey) entity.NaturalKey {
	if ref == "" {
		return ""
	}
	lower := strings.ToLower(ref)
	if key, ok := aliasIndex[lower]; ok {
		return key
	}
	return entity.NaturalKey(lower)
}

func aliasValue(e entity.CanonicalEntity, aliasType string) string {
	for _, a := range e.Aliases {
		if a.Type == aliasType {
			return strings.ToLower(a.Value)
		}
	}
	return ""
}
