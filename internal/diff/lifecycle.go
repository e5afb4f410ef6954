package diff

import (
	"time"

	"github.com/oakmere/regsync/internal/domain/entity"
)

// PlanAbsent decides what to do with a fingerprint record whose entity was
// not present in the current run's resolved set. It returns the operation to
// plan ("" for none) and whether the record should be marked missing.
//
// The progression is deliberately slow: a single missed run only starts the
// clock, the soft retire fires when the grace period elapses, and the hard
// delete fires on a later run once the retire is confirmed. A transiently
// unreachable source therefore never causes destructive action.
func PlanAbsent(rec *entity.FingerprintRecord, now time.Time, grace time.Duration) (entity.Operation, bool) {
	switch rec.State {
	case entity.StateActive:
		return "", true
	case entity.StateMissing:
		if rec.MissingSince != nil && now.Sub(*rec.MissingSince) >= grace {
			return entity.OpRetire, false
		}
		return "", false
	case entity.StateRetired:
		return entity.OpHardDelete, false
	default:
		return "", false
	}
}
