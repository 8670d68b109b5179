// Package aggregate derives summary statistics from donor record sets.
package aggregate

import (
	"cmp"
	"slices"

	"github.com/peteski22/donorpulse/internal/domain"
)

// Summarize computes the aggregate summary for a record set. It is a pure
// function: identical inputs always produce identical summaries, so the
// records are sorted before the leaderboard is cut and no clock is consulted.
// The average is integer division in cents, zero for an empty set.
func Summarize(records map[string]domain.DonorRecord, topN int) domain.AggregateSummary {
	summary := domain.AggregateSummary{
		TopDonors:   []domain.TopDonor{},
		TotalDonors: len(records),
	}

	for _, record := range records {
		summary.TotalAmountCents += record.AmountCents
		summary.TotalContributions += record.ContributionCount
		if record.Recurring {
			summary.ActiveRecurringDonors++
		}
		if record.LastContributionAt.After(summary.LastUpdated) {
			summary.LastUpdated = record.LastContributionAt
		}
	}

	if summary.TotalDonors > 0 {
		summary.AverageAmountCents = summary.TotalAmountCents / int64(summary.TotalDonors)
	}

	sorted := Rank(records)

	if topN > len(sorted) {
		topN = len(sorted)
	}
	for _, record := range sorted[:max(topN, 0)] {
		summary.TopDonors = append(summary.TopDonors, domain.TopDonor{
			AmountCents: record.AmountCents,
			DisplayName: record.DisplayName,
			ID:          record.ID,
			Recurring:   record.Recurring,
		})
	}

	return summary
}

// Rank flattens a record set into leaderboard order: amount descending,
// ties broken by earliest last contribution, then by identifier.
func Rank(records map[string]domain.DonorRecord) []domain.DonorRecord {
	sorted := make([]domain.DonorRecord, 0, len(records))
	for _, record := range records {
		sorted = append(sorted, record)
	}
	slices.SortFunc(sorted, compareDonors)

	return sorted
}

// compareDonors orders the leaderboard: amount descending, ties broken by
// earliest last contribution, then by identifier.
func compareDonors(a, b domain.DonorRecord) int {
	if c := cmp.Compare(b.AmountCents, a.AmountCents); c != 0 {
		return c
	}
	if !a.LastContributionAt.Equal(b.LastContributionAt) {
		if a.LastContributionAt.Before(b.LastContributionAt) {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.ID, b.ID)
}
