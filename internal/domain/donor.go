// Package domain defines the donor data model shared across the sync engine.
package domain

import (
	"slices"
	"time"
)

// DonorRecord is a single donor as known to the engine. Identity is the
// upstream record identifier; every other field is mutable across syncs.
type DonorRecord struct {
	// AmountCents is the donor's total contributed amount in cents.
	AmountCents int64 `json:"amount_cents"`

	// CampaignID is the upstream campaign the donor is attributed to, if any.
	CampaignID string `json:"campaign_id,omitempty"`

	// ContributionCount is the number of contributions the donor has made.
	ContributionCount int `json:"contribution_count"`

	// DisplayName is the name shown on the donor wall.
	DisplayName string `json:"display_name"`

	// Email is the donor's email address.
	Email string `json:"email,omitempty"`

	// FirstSeenAt is when the donor first appeared upstream.
	FirstSeenAt time.Time `json:"first_seen_at"`

	// ID is the unique upstream record identifier, stable across syncs.
	ID string `json:"id"`

	// LastContributionAt is the timestamp of the most recent contribution.
	LastContributionAt time.Time `json:"last_contribution_at"`

	// Recurring indicates the donor has an active recurring giving plan.
	Recurring bool `json:"recurring"`

	// Tags are upstream labels attached to the donor.
	Tags []string `json:"tags,omitempty"`
}

// Equal reports whether two records match field by field. Used by the
// reconciler to classify a record as updated.
func (r DonorRecord) Equal(other DonorRecord) bool {
	return r.ID == other.ID &&
		r.DisplayName == other.DisplayName &&
		r.Email == other.Email &&
		r.AmountCents == other.AmountCents &&
		r.ContributionCount == other.ContributionCount &&
		r.LastContributionAt.Equal(other.LastContributionAt) &&
		r.FirstSeenAt.Equal(other.FirstSeenAt) &&
		r.CampaignID == other.CampaignID &&
		r.Recurring == other.Recurring &&
		slices.Equal(r.Tags, other.Tags)
}

// TopDonor is the leaderboard projection of a DonorRecord.
type TopDonor struct {
	// AmountCents is the donor's total contributed amount in cents.
	AmountCents int64 `json:"amount_cents"`

	// DisplayName is the name shown on the donor wall.
	DisplayName string `json:"display_name"`

	// ID is the upstream record identifier.
	ID string `json:"id"`

	// Recurring indicates the donor has an active recurring giving plan.
	Recurring bool `json:"recurring"`
}
