package givebutter

import (
	"strconv"
	"strings"

	"github.com/peteski22/donorpulse/internal/domain"
)

// anonymousName is shown for contacts without a usable name.
const anonymousName = "Anonymous"

// ToDomainType converts a Contact to its donor record representation.
// The recurring flag comes from the contact's plans and is supplied by the
// caller because plans are a separate upstream resource.
func (c Contact) ToDomainType(recurring bool) domain.DonorRecord {
	return domain.DonorRecord{
		AmountCents:        c.TotalDonated,
		CampaignID:         c.CampaignID,
		ContributionCount:  c.DonationCount,
		DisplayName:        c.displayName(),
		Email:              c.Email,
		FirstSeenAt:        c.CreatedAt,
		ID:                 strconv.FormatInt(c.ID, 10),
		LastContributionAt: c.LastDonationAt,
		Recurring:          recurring,
		Tags:               c.Tags,
	}
}

// displayName builds the donor wall name from the contact's name parts.
func (c Contact) displayName() string {
	name := strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
	if name == "" {
		return anonymousName
	}
	return name
}

// Active reports whether the plan is currently charging.
func (p Plan) Active() bool {
	return p.Status == PlanStatusActive
}

// mapDonors converts wire contacts plus their recurring plans into the
// domain record set handed to the engine.
func mapDonors(contacts []Contact, plans []Plan) []domain.DonorRecord {
	recurring := make(map[int64]bool, len(plans))
	for _, plan := range plans {
		if plan.Active() {
			recurring[plan.ContactID] = true
		}
	}

	records := make([]domain.DonorRecord, 0, len(contacts))
	for _, contact := range contacts {
		records = append(records, contact.ToDomainType(recurring[contact.ID]))
	}

	return records
}
