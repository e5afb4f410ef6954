package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func logicalWith(attrs map[string]AttributeValue) *LogicalEntity {
	return &LogicalEntity{
		Kind:       KindDevice,
		Key:        "ws-042",
		Attributes: attrs,
	}
}

func TestContentHashDeterministic(t *testing.T) {
	a := logicalWith(map[string]AttributeValue{
		AttrHostname: {Value: "ws-042"},
		AttrOS:       {Value: "Windows"},
	})
	b := logicalWith(map[string]AttributeValue{
		AttrOS:       {Value: "Windows"},
		AttrHostname: {Value: "ws-042"},
	})
	assert.Equal(t, a.ContentHash(), b.ContentHash())
}

func TestContentHashIgnoresProvenance(t *testing.T) {
	base := logicalWith(map[string]AttributeValue{
		AttrOS: {Value: "Windows", Source: "intune", ObservedAt: time.Now()},
	})
	other := logicalWith(map[string]AttributeValue{
		AttrOS: {
			Value:      "Windows",
			Source:     "eset",
			ObservedAt: time.Now().Add(-time.Hour),
			Shadowed:   []AttributeValue{{Value: "windows 10", Source: "fortigate"}},
		},
	})
	assert.Equal(t, base.ContentHash(), other.ContentHash(),
		"which source reported a value must not change the hash")
}

func TestContentHashChangesWithValue(t *testing.T) {
	a := logicalWith(map[string]AttributeValue{AttrOS: {Value: "Windows"}})
	b := logicalWith(map[string]AttributeValue{AttrOS: {Value: "Linux"}})
	c := logicalWith(map[string]AttributeValue{
		AttrOS:        {Value: "Windows"},
		AttrOSVersion: {Value: "11"},
	})

	assert.NotEqual(t, a.ContentHash(), b.ContentHash())
	assert.NotEqual(t, a.ContentHash(), c.ContentHash())
}

func TestFingerprintRecordClone(t *testing.T) {
	missing := time.Now().UTC()
	rec := &FingerprintRecord{
		Kind:         KindDevice,
		Key:          "ws-042",
		ContentHash:  "abc",
		Sources:      []string{"fortigate", "intune"},
		State:        StateMissing,
		MissingSince: &missing,
	}

	clone := rec.Clone()
	clone.Sources[0] = "eset"
	*clone.MissingSince = missing.Add(time.Hour)

	assert.Equal(t, "fortigate", rec.Sources[0])
	assert.True(t, rec.MissingSince.Equal(missing))
}
