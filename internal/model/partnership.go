package model

import "time"

// PartnershipStatus is the decision state of a partnership.
type PartnershipStatus string

const (
	StatusRegistered PartnershipStatus = "REGISTERED"
	StatusSuggested  PartnershipStatus = "SUGGESTED"
	StatusValidated  PartnershipStatus = "VALIDATED"
	StatusDeclined   PartnershipStatus = "DECLINED"
)

// PackChoice is a pack picked for a partnership that has not been validated
// yet.  It stores raw partner input and organizer overrides; prices are
// resolved against the live catalog whenever it is read.
type PackChoice struct {
	PackID            string           `json:"pack_id"`
	Selections        SelectionList    `json:"option_selections"`
	PackPriceOverride *int64           `json:"pack_price_override"`
	OptionOverrides   map[string]int64 `json:"options_price_overrides,omitempty"`
}

// Clone returns a deep copy of c.
func (c *PackChoice) Clone() *PackChoice {
	if c == nil {
		return nil
	}
	out := &PackChoice{PackID: c.PackID}
	out.Selections = append(SelectionList(nil), c.Selections...)
	if c.PackPriceOverride != nil {
		v := *c.PackPriceOverride
		out.PackPriceOverride = &v
	}
	if len(c.OptionOverrides) > 0 {
		out.OptionOverrides = make(map[string]int64, len(c.OptionOverrides))
		for k, v := range c.OptionOverrides {
			out.OptionOverrides[k] = v
		}
	}
	return out
}

// PricedPack is a pack with its resolved options.  When stored as the
// validated pack of a partnership it is a frozen snapshot: prices are pinned
// and never re-read from the catalog.
type PricedPack struct {
	Pack              PackSummary         `json:"pack"`
	PackPriceOverride *int64              `json:"pack_price_override"`
	Options           []PartnershipOption `json:"options"`
}

// BasePrice returns the pack override when set, else the pinned base price.
func (p PricedPack) BasePrice() int64 {
	if p.PackPriceOverride != nil {
		return *p.PackPriceOverride
	}
	return p.Pack.BasePrice
}

// Clone returns a deep copy of p.
func (p *PricedPack) Clone() *PricedPack {
	if p == nil {
		return nil
	}
	out := &PricedPack{Pack: p.Pack}
	if p.PackPriceOverride != nil {
		v := *p.PackPriceOverride
		out.PackPriceOverride = &v
	}
	out.Options = make([]PartnershipOption, len(p.Options))
	for i, o := range p.Options {
		out.Options[i] = o.Clone()
	}
	return out
}

// ProcessStatus records the timestamps of decision milestones.
type ProcessStatus struct {
	SuggestionSentAt     *time.Time `json:"suggestion_sent_at"`
	SuggestionApprovedAt *time.Time `json:"suggestion_approved_at"`
	SuggestionDeclinedAt *time.Time `json:"suggestion_declined_at"`
	ValidatedAt          *time.Time `json:"validated_at"`
	DeclinedAt           *time.Time `json:"declined_at"`
	AgreementSignedAt    *time.Time `json:"agreement_signed_at"`
}

// Partnership is the aggregate tracking one company's sponsorship of one
// event.
//
// Fields:
//
//	Selected  – pack registered by the partner
//	Suggested – pending organizer proposal, nil when none
//	Validated – frozen priced snapshot, set once VALIDATED
//	Version   – optimistic concurrency counter, bumped on every write
type Partnership struct {
	ID        string            `json:"id"`
	EventID   string            `json:"event_id"`
	CompanyID string            `json:"company_id"`
	CreatedBy string            `json:"created_by"`
	Status    PartnershipStatus `json:"status"`
	Selected  *PackChoice       `json:"selected_pack"`
	Suggested *PackChoice       `json:"suggested_pack"`
	Validated *PricedPack       `json:"validated_pack"`
	Process   ProcessStatus     `json:"process"`
	Version   int64             `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Clone returns a deep copy so that workflow functions can return a new
// value without aliasing the input.
func (p Partnership) Clone() Partnership {
	out := p
	out.Selected = p.Selected.Clone()
	out.Suggested = p.Suggested.Clone()
	out.Validated = p.Validated.Clone()
	out.Process = ProcessStatus{
		SuggestionSentAt:     cloneTime(p.Process.SuggestionSentAt),
		SuggestionApprovedAt: cloneTime(p.Process.SuggestionApprovedAt),
		SuggestionDeclinedAt: cloneTime(p.Process.SuggestionDeclinedAt),
		ValidatedAt:          cloneTime(p.Process.ValidatedAt),
		DeclinedAt:           cloneTime(p.Process.DeclinedAt),
		AgreementSignedAt:    cloneTime(p.Process.AgreementSignedAt),
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
