// Package reconcile compares fetched donor sets against the previous
// snapshot and classifies every change.
package reconcile

import (
	"fmt"
	"slices"

	"github.com/peteski22/donorpulse/internal/domain"
)

// DuplicateRecordError reports a record identifier that appeared more than
// once within a single fetched set. It is an upstream data integrity fault
// and fails the sync run.
type DuplicateRecordError struct {
	// ID is the duplicated record identifier.
	ID string
}

// Error implements the error interface.
func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("duplicate record identifier %q in fetched set", e.ID)
}

// Diff reconciles the previous snapshot's record set with a freshly fetched
// full set. The fetched set is authoritative: the returned map is the fetched
// records keyed by identifier, and the delta partitions identifiers into
// added (only in fetched), updated (in both, any field differs) and removed
// (only in previous). Because the fetcher always delivers the complete
// upstream set, absence means true removal.
func Diff(prev map[string]domain.DonorRecord, fetched []domain.DonorRecord) (map[string]domain.DonorRecord, domain.Delta, error) {
	merged := make(map[string]domain.DonorRecord, len(fetched))
	var delta domain.Delta

	for _, record := range fetched {
		if _, exists := merged[record.ID]; exists {
			return nil, domain.Delta{}, &DuplicateRecordError{ID: record.ID}
		}
		merged[record.ID] = record

		previous, existed := prev[record.ID]
		switch {
		case !existed:
			delta.Added = append(delta.Added, record.ID)
		case !previous.Equal(record):
			delta.Updated = append(delta.Updated, record.ID)
		}
	}

	for id := range prev {
		if _, exists := merged[id]; !exists {
			delta.Removed = append(delta.Removed, id)
		}
	}

	slices.Sort(delta.Added)
	slices.Sort(delta.Removed)
	slices.Sort(delta.Updated)

	return merged, delta, nil
}
