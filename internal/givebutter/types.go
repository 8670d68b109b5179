// Package givebutter provides a client for the Givebutter API.
package givebutter

import "time"

const (
	// PlanStatusActive represents a recurring plan currently charging.
	PlanStatusActive PlanStatus = "active"

	// PlanStatusCancelled represents a recurring plan the donor cancelled.
	PlanStatusCancelled PlanStatus = "cancelled"

	// PlanStatusPaused represents a recurring plan on hold.
	PlanStatusPaused PlanStatus = "paused"
)

// Contact represents a donor contact in Givebutter.
type Contact struct {
	// CampaignID is the campaign the contact is attributed to, if any.
	CampaignID string `json:"campaign_id"`

	// CreatedAt is when the contact was created upstream.
	CreatedAt time.Time `json:"created_at"`

	// DonationCount is the number of donations the contact has made.
	DonationCount int `json:"donation_count"`

	// Email is the contact's email address.
	Email string `json:"email"`

	// FirstName is the contact's first name.
	FirstName string `json:"first_name"`

	// ID is the unique contact identifier.
	ID int64 `json:"id"`

	// LastDonationAt is the timestamp of the most recent donation.
	LastDonationAt time.Time `json:"last_donation_at"`

	// LastName is the contact's last name.
	LastName string `json:"last_name"`

	// Phone is the contact's phone number.
	Phone string `json:"phone"`

	// Tags are labels attached to the contact.
	Tags []string `json:"tags"`

	// TotalDonated is the contact's lifetime donated amount in cents.
	TotalDonated int64 `json:"total_donated"`
}

// Plan represents a recurring giving plan in Givebutter.
type Plan struct {
	// Amount is the per-interval amount in cents.
	Amount int64 `json:"amount"`

	// ContactID is the contact the plan belongs to.
	ContactID int64 `json:"contact_id"`

	// CreatedAt is when the plan was created.
	CreatedAt time.Time `json:"created_at"`

	// ID is the unique plan identifier.
	ID string `json:"id"`

	// Interval is the billing interval, e.g. "monthly".
	Interval string `json:"interval"`

	// Status is the plan status.
	Status PlanStatus `json:"status"`
}

// PlanStatus represents a Givebutter recurring plan status.
type PlanStatus string

// listMeta carries the pagination block common to list responses.
type listMeta struct {
	// CurrentPage is the page this response covers.
	CurrentPage int `json:"current_page"`

	// LastPage is the final page number for the listing.
	LastPage int `json:"last_page"`

	// PerPage is the page size the server applied.
	PerPage int `json:"per_page"`

	// Total is the total number of records across all pages.
	Total int `json:"total"`
}

// contactsResponse represents the API response for listing contacts.
type contactsResponse struct {
	// Data contains the page of contacts.
	Data []Contact `json:"data"`

	// Meta is the pagination block.
	Meta listMeta `json:"meta"`
}

// plansResponse represents the API response for listing recurring plans.
type plansResponse struct {
	// Data contains the page of plans.
	Data []Plan `json:"data"`

	// Meta is the pagination block.
	Meta listMeta `json:"meta"`
}
