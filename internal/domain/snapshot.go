package domain

import "time"

// AggregateSummary holds the statistics derived from one snapshot's record
// set. It is recomputed in full on every snapshot, never patched.
type AggregateSummary struct {
	// ActiveRecurringDonors is the number of donors with an active recurring plan.
	ActiveRecurringDonors int `json:"active_recurring_donors"`

	// AverageAmountCents is the average contribution per donor in cents,
	// truncated toward zero. Zero when the record set is empty.
	AverageAmountCents int64 `json:"average_amount_cents"`

	// LastUpdated is the most recent last-contribution timestamp across the
	// record set. Zero for an empty set. Derived from the records so that
	// identical inputs always produce identical summaries.
	LastUpdated time.Time `json:"last_updated"`

	// TopDonors is the leaderboard, sorted by amount descending.
	TopDonors []TopDonor `json:"top_donors"`

	// TotalAmountCents is the sum of all contributed amounts in cents.
	TotalAmountCents int64 `json:"total_amount_cents"`

	// TotalContributions is the sum of all contribution counts.
	TotalContributions int `json:"total_contributions"`

	// TotalDonors is the number of donors in the record set.
	TotalDonors int `json:"total_donors"`
}

// SyncSnapshot is a point-in-time immutable artifact produced by a successful
// sync cycle. Superseded, never mutated; prior versions stay retrievable.
type SyncSnapshot struct {
	// CreatedAt is when the snapshot was assembled.
	CreatedAt time.Time `json:"created_at"`

	// Records is the full donor set, keyed by record identifier.
	Records map[string]DonorRecord `json:"records"`

	// Summary is the precomputed aggregate over Records.
	Summary AggregateSummary `json:"summary"`

	// Version is the monotonically increasing snapshot version.
	Version int64 `json:"version"`
}

// Delta is the added/updated/removed partition between the previous
// snapshot's record set and a freshly fetched one. Identifier lists are
// sorted ascending.
type Delta struct {
	// Added are identifiers present only in the fetched set.
	Added []string `json:"added"`

	// Removed are identifiers present only in the previous set.
	Removed []string `json:"removed"`

	// Updated are identifiers present in both sets with differing fields.
	Updated []string `json:"updated"`
}
