package model

// PricingLine is one option entry of a pricing summary.
type PricingLine struct {
	Label         string  `json:"label"`
	Amount        int64   `json:"amount"`
	UnitAmount    int64   `json:"unit_amount"`
	Quantity      int     `json:"quantity"`
	SelectedValue *string `json:"selected_value,omitempty"`
	Required      bool    `json:"required"`
}

// PartnershipPricing is the pack-level summary consumed by billing and
// document generation.  Lines are in catalog order.
type PartnershipPricing struct {
	EventID         string        `json:"event_id"`
	PartnershipID   string        `json:"partnership_id"`
	PackName        string        `json:"pack_name"`
	BasePrice       int64         `json:"base_price"`
	Currency        string        `json:"currency"`
	TotalAmount     int64         `json:"total_amount"`
	RequiredOptions []PricingLine `json:"required_options"`
	OptionalOptions []PricingLine `json:"optional_options"`
}
