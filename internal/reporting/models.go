package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CampaignSummaryRequest requests aggregated dispatch progress for one campaign.
// Account isolation: AccountID is required.

type CampaignSummaryRequest struct {
	AccountID  string `json:"account_id"`
	CampaignID string `json:"campaign_id"`
}

type CampaignSummary struct {
	AccountID  string `json:"account_id"`
	CampaignID string `json:"campaign_id"`

	TotalContacts      int `json:"total_contacts"`
	PendingContacts    int `json:"pending_contacts"`
	DispatchedContacts int `json:"dispatched_contacts"`
	AnsweredContacts   int `json:"answered_contacts"`
	UnansweredContacts int `json:"unanswered_contacts"`

	AnswerRate     float64 `json:"answer_rate"`
	CompletionRate float64 `json:"completion_rate"`
}

// SpendSummaryRequest requests aggregated spend metrics.
// Spend is derived from immutable ledger entries scoped to the account.

type SpendSummaryRequest struct {
	AccountID  string    `json:"account_id"`
	Range      TimeRange `json:"range"`
	CampaignID string    `json:"campaign_id,omitempty"`
	Currency   string    `json:"currency,omitempty"`
}

type SpendSummary struct {
	AccountID  string `json:"account_id"`
	CampaignID string `json:"campaign_id,omitempty"`
	Currency   string `json:"currency"`

	TotalDebitMinor  int64 `json:"total_debit_minor"`
	TotalCreditMinor int64 `json:"total_credit_minor"`
	RefundMinor      int64 `json:"refund_minor"`
	NetDeltaMinor    int64 `json:"net_delta_minor"`

	DispatchDebitMinor int64 `json:"dispatch_debit_minor"`
	AdminCreditMinor   int64 `json:"admin_credit_minor"`
}
