package campaign

import "time"

// Campaign is an account-scoped outbound call campaign.
//
// Invariants:
// - Active may only be true while the owning account could afford the last
//   successful dispatch; the dispatcher auto-pauses on insufficient funds.
// - Campaigns start paused and are never physically deleted.
type Campaign struct {
	ID        string `json:"id" db:"id"`
	AccountID string `json:"account_id" db:"account_id"`

	Name string `json:"name" db:"name"`

	// FromNumber is the caller-ID the campaign dials from (E.164 where possible).
	FromNumber string `json:"from_number" db:"from_number"`

	// MessageTemplate may contain a {name} placeholder substituted per contact.
	MessageTemplate string `json:"message_template" db:"message_template"`

	// BatchSize is the number of contacts released per dispatch tick, [1,100].
	BatchSize int `json:"batch_size" db:"batch_size"`

	// BatchDelaySeconds is the cadence hint for the external scheduler.
	BatchDelaySeconds int `json:"batch_delay_seconds" db:"batch_delay_seconds"`

	// ForbiddenWords is the per-campaign moderation wordlist.
	ForbiddenWords []string `json:"forbidden_words,omitempty" db:"forbidden_words"`

	Active bool `json:"active" db:"active"`

	LastDispatchAt *time.Time `json:"last_dispatch_at,omitempty" db:"last_dispatch_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const (
	MinBatchSize = 1
	MaxBatchSize = 100
)

// Contact is a dialable entry of a campaign's contact list.
//
// Invariants:
// - (phone, campaign) is unique; duplicates in an upload are dropped.
// - Status only moves forward: pending -> dispatched -> {answered, unanswered}.
type Contact struct {
	ID         string `json:"id" db:"id"`
	CampaignID string `json:"campaign_id" db:"campaign_id"`

	Name  string `json:"name" db:"name"`
	Phone string `json:"phone" db:"phone"`

	Status ContactStatus `json:"status" db:"status"`

	// BatchToken records the dispatch tick that claimed this contact, so a
	// retried tick reconstructs its batch instead of claiming fresh contacts.
	BatchToken string `json:"batch_token,omitempty" db:"batch_token"`

	Notes string `json:"notes,omitempty" db:"notes"`

	// Position preserves upload order; batch selection is stable on it.
	Position int `json:"position" db:"position"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type ContactStatus string

const (
	ContactStatusPending    ContactStatus = "pending"
	ContactStatusDispatched ContactStatus = "dispatched"
	ContactStatusAnswered   ContactStatus = "answered"
	ContactStatusUnanswered ContactStatus = "unanswered"
)

func (s ContactStatus) IsValid() bool {
	switch s {
	case ContactStatusPending, ContactStatusDispatched, ContactStatusAnswered, ContactStatusUnanswered:
		return true
	}
	return false
}

// CanTransition reports whether a status change is a legal forward move.
// Terminal outcomes never revert.
func CanTransition(from, to ContactStatus) bool {
	switch from {
	case ContactStatusPending:
		return to == ContactStatusDispatched
	case ContactStatusDispatched:
		return to == ContactStatusAnswered || to == ContactStatusUnanswered
	default:
		return false
	}
}
