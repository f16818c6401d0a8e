package pricing

import (
	"strconv"

	"github.com/iliyamo/sponsorship-partnerships/internal/model"
)

// Resolve prices one validated selection.  PriceOverride is always left nil;
// overrides are applied separately.
func Resolve(v Validated) model.PartnershipOption {
	opt := v.Option.Option
	out := model.PartnershipOption{
		Type:           opt.Type(),
		ID:             opt.ID,
		Name:           opt.Name,
		Description:    opt.Description,
		Price:          opt.Price,
		Quantity:       1,
		TypeDescriptor: opt.Tag(),
		Required:       v.Option.Required,
		Position:       v.Option.Position,
	}

	switch d := opt.Descriptor().(type) {
	case model.TextDescriptor:
		out.LabelWithValue = opt.Description
	case model.QuantitativeDescriptor:
		if s, ok := v.Selection.(model.QuantitativeSelection); ok {
			out.Quantity = s.SelectedQuantity
		}
		out.LabelWithValue = withValue(opt.Description, strconv.Itoa(out.Quantity))
	case model.NumberDescriptor:
		out.Quantity = d.FixedQuantity
		out.LabelWithValue = withValue(opt.Description, strconv.Itoa(out.Quantity))
	case model.SelectableDescriptor:
		if s, ok := v.Selection.(model.SelectableSelection); ok {
			if sv, found := opt.Value(s.SelectedValueID); found {
				out.SelectedValue = &sv
				out.Price = sv.Price
				out.LabelWithValue = withValue(opt.Description, sv.Value)
			}
		}
	}

	out.RecomputeTotal()
	return out
}

// ResolveAll resolves a validated batch, keeping its order.
func ResolveAll(validated []Validated) []model.PartnershipOption {
	out := make([]model.PartnershipOption, len(validated))
	for i, v := range validated {
		out[i] = Resolve(v)
	}
	return out
}

// ResolveChoice validates and resolves a stored pack choice against the
// live catalog, then re-applies its stored overrides.  Stored option
// overrides whose option is no longer selected are skipped.
func ResolveChoice(pack model.SponsoringPack, choice model.PackChoice) (model.PricedPack, error) {
	validated, err := ValidateSelections(pack, choice.Selections)
	if err != nil {
		return model.PricedPack{}, err
	}
	priced := model.PricedPack{
		Pack:    pack.Summary(),
		Options: ResolveAll(validated),
	}
	if choice.PackPriceOverride != nil {
		v := *choice.PackPriceOverride
		priced.PackPriceOverride = &v
	}
	for i := range priced.Options {
		if v, ok := choice.OptionOverrides[priced.Options[i].ID]; ok {
			ov := v
			priced.Options[i].PriceOverride = &ov
			priced.Options[i].RecomputeTotal()
		}
	}
	if id, overflow := checkAmounts(priced); overflow {
		return model.PricedPack{}, ValidationErrors{newOptionError(CodeInvalidOverride, id, "pack total exceeds the largest supported amount")}
	}
	return priced, nil
}

func withValue(description, value string) string {
	return description + " (" + value + ")"
}
