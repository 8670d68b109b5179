package givebutter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestContact_ToDomainType(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	lastDonation := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	contact := Contact{
		CampaignID:     "CAMP1",
		CreatedAt:      created,
		DonationCount:  4,
		Email:          "jane@example.com",
		FirstName:      "Jane",
		ID:             42,
		LastDonationAt: lastDonation,
		LastName:       "Donor",
		Tags:           []string{"wall"},
		TotalDonated:   10000,
	}

	record := contact.ToDomainType(true)

	require.Equal(t, "42", record.ID)
	require.Equal(t, "Jane Donor", record.DisplayName)
	require.Equal(t, "jane@example.com", record.Email)
	require.EqualValues(t, 10000, record.AmountCents)
	require.Equal(t, 4, record.ContributionCount)
	require.True(t, record.LastContributionAt.Equal(lastDonation))
	require.True(t, record.FirstSeenAt.Equal(created))
	require.Equal(t, "CAMP1", record.CampaignID)
	require.True(t, record.Recurring)
	require.Equal(t, []string{"wall"}, record.Tags)
}

func TestContact_DisplayName(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		firstName string
		lastName  string
		want      string
	}{
		"full name": {
			firstName: "Jane",
			lastName:  "Donor",
			want:      "Jane Donor",
		},
		"first name only": {
			firstName: "Jane",
			want:      "Jane",
		},
		"last name only": {
			lastName: "Donor",
			want:     "Donor",
		},
		"no name": {
			want: "Anonymous",
		},
		"whitespace only": {
			firstName: "  ",
			lastName:  " ",
			want:      "Anonymous",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			contact := Contact{FirstName: tc.firstName, LastName: tc.lastName}
			require.Equal(t, tc.want, contact.ToDomainType(false).DisplayName)
		})
	}
}

func TestMapDonors(t *testing.T) {
	t.Parallel()

	contacts := []Contact{
		{ID: 1, FirstName: "Jane"},
		{ID: 2, FirstName: "John"},
		{ID: 3, FirstName: "Pat"},
	}
	plans := []Plan{
		{ID: "plan_1", ContactID: 1, Status: PlanStatusActive},
		{ID: "plan_2", ContactID: 2, Status: PlanStatusPaused},
		{ID: "plan_3", ContactID: 99, Status: PlanStatusActive},
	}

	records := mapDonors(contacts, plans)

	require.Len(t, records, 3)
	require.True(t, records[0].Recurring, "active plan marks the donor recurring")
	require.False(t, records[1].Recurring, "paused plan does not count")
	require.False(t, records[2].Recurring, "no plan at all")
}
