package diff

import (
	"github.com/oakmere/regsync/internal/domain/entity"
)

// Class is the change-detection outcome for one present entity.
type Class int

const (
	ClassNew Class = iota
	ClassChanged
	ClassUnchanged
)

func (c Class) String() string {
	switch c {
	case ClassNew:
		return "new"
	case ClassChanged:
		return "changed"
	case ClassUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Classified pairs a resolved entity with its change class and, when one
// exists, its stored fingerprint.
type Classified struct {
	Entity   *entity.LogicalEntity
	Class    Class
	Previous *entity.FingerprintRecord
	NewHash  string
}

// Classify compares a freshly resolved entity against its stored fingerprint.
// An entity whose record is already retired always classifies as changed:
// the registry carries a retire marker that the update must clear.
func Classify(ent *entity.LogicalEntity, prev *entity.FingerprintRecord) Classified {
	hash := ent.ContentHash()
	c := Classified{Entity: ent, Previous: prev, NewHash: hash}
	switch {
	case prev == nil:
		c.Class = ClassNew
	case prev.State == entity.StateRetired:
		c.Class = ClassChanged
	case prev.ContentHash != hash:
		c.Class = ClassChanged
	default:
		c.Class = ClassUnchanged
	}
	return c
}
