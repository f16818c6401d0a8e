package model

import "math"

// MaxQuantity is the largest quantity an option line may carry; it is the
// range of the quantity columns.
const MaxQuantity = math.MaxInt32

// PartnershipOption is a resolved, priced line item.  It is always derived
// from a catalog option, a selection and an optional override, so it carries
// no state of its own beyond what RecomputeTotal can reproduce.
type PartnershipOption struct {
	Type           OptionType       `json:"type"`
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	LabelWithValue string           `json:"label_with_value"`
	Price          int64            `json:"price"`
	Quantity       int              `json:"quantity"`
	TotalPrice     int64            `json:"total_price"`
	PriceOverride  *int64           `json:"price_override"`
	TypeDescriptor string           `json:"type_descriptor,omitempty"`
	SelectedValue  *SelectableValue `json:"selected_value,omitempty"`
	Required       bool             `json:"required"`
	Position       int              `json:"-"`
}

// UnitPrice is the price that enters the total: the override when set,
// otherwise Price.  For selectable options Price already holds the chosen
// value's price.
func (o PartnershipOption) UnitPrice() int64 {
	if o.PriceOverride != nil {
		return *o.PriceOverride
	}
	return o.Price
}

// LineTotal returns the unit price times the quantity for counted options
// and the unit price otherwise.  ok is false when the product does not fit
// in an int64.
func (o PartnershipOption) LineTotal() (total int64, ok bool) {
	switch o.Type {
	case OptionTypeTypedQuantitative, OptionTypeTypedNumber:
		return MulAmount(o.UnitPrice(), o.Quantity)
	default:
		return o.UnitPrice(), true
	}
}

// RecomputeTotal sets TotalPrice from the current price, quantity and
// override.  Callers check LineTotal first; an overflowing line is never
// stored.
func (o *PartnershipOption) RecomputeTotal() {
	o.TotalPrice, _ = o.LineTotal()
}

// MulAmount multiplies a non-negative amount by a non-negative quantity.
func MulAmount(amount int64, qty int) (int64, bool) {
	if amount < 0 || qty < 0 {
		return 0, false
	}
	if qty == 0 || amount == 0 {
		return 0, true
	}
	if amount > math.MaxInt64/int64(qty) {
		return 0, false
	}
	return amount * int64(qty), true
}

// AddAmount adds two non-negative amounts.
func AddAmount(a, b int64) (int64, bool) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// Clone returns a deep copy so callers can mutate the result freely.
func (o PartnershipOption) Clone() PartnershipOption {
	out := o
	if o.PriceOverride != nil {
		v := *o.PriceOverride
		out.PriceOverride = &v
	}
	if o.SelectedValue != nil {
		sv := *o.SelectedValue
		out.SelectedValue = &sv
	}
	return out
}
