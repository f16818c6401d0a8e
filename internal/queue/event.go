// Package queue defines the partnership decision messages exchanged over the
// broker and the background consumer that records them.
package queue

// Decision kinds carried by PartnershipDecisionEvent.
const (
	DecisionSuggested          = "suggested"
	DecisionValidated          = "validated"
	DecisionDeclined           = "declined"
	DecisionSuggestionApproved = "suggestion_approved"
	DecisionSuggestionDeclined = "suggestion_declined"
	DecisionAgreementSigned    = "agreement_signed"
)

// PartnershipDecisionEvent is published after a partnership decision has been
// committed.  It holds enough for downstream consumers (document generation,
// notifications, analytics) to react without querying the primary database.
type PartnershipDecisionEvent struct {
	PartnershipID string `json:"partnership_id"`
	EventID       string `json:"event_id"`
	CompanyID     string `json:"company_id"`
	Decision      string `json:"decision"`
	Status        string `json:"status"`
	PackID        string `json:"pack_id,omitempty"`
	PackName      string `json:"pack_name,omitempty"`
	TotalAmount   int64  `json:"total_amount"`
	Currency      string `json:"currency,omitempty"`
	ActorID       string `json:"actor_id"`
	OccurredAt    string `json:"occurred_at"`
}
