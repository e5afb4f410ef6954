package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oakmere/regsync/internal/domain/entity"
)

func TestClassify(t *testing.T) {
	ent := &entity.LogicalEntity{
		Kind: entity.KindDevice,
		Key:  "ws-042",
		Attributes: map[string]entity.AttributeValue{
			entity.AttrHostname: {Value: "ws-042"},
		},
	}
	hash := ent.ContentHash()

	tests := []struct {
		name string
		prev *entity.FingerprintRecord
		want Class
	}{
		{"no record is new", nil, ClassNew},
		{"same hash unchanged", &entity.FingerprintRecord{ContentHash: hash, State: entity.StateActive}, ClassUnchanged},
		{"different hash changed", &entity.FingerprintRecord{ContentHash: "stale", State: entity.StateActive}, ClassChanged},
		{"missing record with same hash unchanged", &entity.FingerprintRecord{ContentHash: hash, State: entity.StateMissing}, ClassUnchanged},
		{"retired record always changed", &entity.FingerprintRecord{ContentHash: hash, State: entity.StateRetired}, ClassChanged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(ent, tt.prev)
			assert.Equal(t, tt.want, c.Class)
			assert.Equal(t, hash, c.NewHash)
		})
	}
}
