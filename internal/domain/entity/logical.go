package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// LogicalEntity is the merged, de-duplicated representation of one real-world
// object across all sources. Logical entities are rebuilt from scratch every
// run and never persisted; the registry is their durable projection.
type LogicalEntity struct {
	Kind      Kind
	Key       NaturalKey
	ParentKey NaturalKey // owning device key for interfaces and addresses

	Attributes map[string]AttributeValue
	Sources    []string // sorted source identifiers that contributed
}

// Attr returns the merged value of the named attribute, or "" when unset.
func (e *LogicalEntity) Attr(name string) string {
	return e.Attributes[name].Value
}

// AttributeNames returns the attribute names in sorted order.
func (e *LogicalEntity) AttributeNames() []string {
	names := make([]string, 0, len(e.Attributes))
	for name := range e.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ContentHash returns a deterministic hash over the merged attribute values.
// Only winning values participate: provenance metadata and shadowed values
// are excluded, so a change in which source reported a value does not by
// itself trigger a registry write.
func (e *LogicalEntity) ContentHash() string {
	h := sha256.New()
	for _, name := range e.AttributeNames() {
		fmt.Fprintf(h, "%s=%s\n", name, e.Attributes[name].Value)
	}
	return hex.EncodeToString(h.Sum(nil))
}
