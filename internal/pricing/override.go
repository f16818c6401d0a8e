package pricing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/sponsorship-partnerships/internal/model"
)

// OptionOverride sets (non-nil) or clears (nil) the override of one
// resolved option.
type OptionOverride struct {
	OptionID      string `json:"id"`
	PriceOverride *int64 `json:"price_override"`
}

// ApplyPackOverride sets the pack-level override, or clears it when value
// is nil so the pinned base price applies again.
func ApplyPackOverride(pack model.PricedPack, value *int64) (model.PricedPack, error) {
	if value != nil && *value < 0 {
		return model.PricedPack{}, ValidationErrors{newOptionError(CodeInvalidOverride, "", "pack price override must not be negative")}
	}
	out := pack.Clone()
	out.PackPriceOverride = nil
	if value != nil {
		v := *value
		out.PackPriceOverride = &v
	}
	if _, overflow := checkAmounts(*out); overflow {
		return model.PricedPack{}, ValidationErrors{newOptionError(CodeInvalidOverride, "", "pack total exceeds the largest supported amount")}
	}
	return *out, nil
}

// ApplyOptionOverrides updates the overrides of the listed options only.
// Options not listed keep their current override.  Every entry is checked
// before anything is applied, so a rejected request leaves pack untouched.
// Totals are recomputed for every touched option.
func ApplyOptionOverrides(pack model.PricedPack, overrides []OptionOverride) (model.PricedPack, error) {
	index := make(map[string]int, len(pack.Options))
	for i, o := range pack.Options {
		index[o.ID] = i
	}

	var errs ValidationErrors
	listed := make(map[string]bool, len(overrides))
	for _, ov := range overrides {
		if _, ok := index[ov.OptionID]; !ok {
			errs = append(errs, newOptionError(CodeUnknownOverrideTarget, ov.OptionID, "option is not on the partnership"))
			continue
		}
		if listed[ov.OptionID] {
			errs = append(errs, newOptionError(CodeInvalidOverride, ov.OptionID, "option listed more than once"))
			continue
		}
		listed[ov.OptionID] = true
		if ov.PriceOverride != nil && *ov.PriceOverride < 0 {
			errs = append(errs, newOptionError(CodeInvalidOverride, ov.OptionID, "price override must not be negative"))
		}
	}
	if err := errs.orNil(); err != nil {
		return model.PricedPack{}, err
	}

	out := pack.Clone()
	for _, ov := range overrides {
		o := &out.Options[index[ov.OptionID]]
		o.PriceOverride = nil
		if ov.PriceOverride != nil {
			v := *ov.PriceOverride
			o.PriceOverride = &v
		}
		if _, ok := o.LineTotal(); !ok {
			errs = append(errs, newOptionError(CodeInvalidOverride, o.ID, "price override overflows the option total"))
			continue
		}
		o.RecomputeTotal()
	}
	if err := errs.orNil(); err != nil {
		return model.PricedPack{}, err
	}
	if id, overflow := checkAmounts(*out); overflow {
		return model.PricedPack{}, ValidationErrors{newOptionError(CodeInvalidOverride, id, "pack total exceeds the largest supported amount")}
	}
	return *out, nil
}

// OverrideRequest is a partial update of a partnership's overrides.
//
// pack_price_override follows a three-way convention: an absent field
// leaves the pack override unchanged, null clears it and an integer sets
// it.  Each listed options_price_overrides entry is set, or cleared when
// its price_override is null or absent.  Unlisted options are not touched.
type OverrideRequest struct {
	SetPackOverride   bool
	PackPriceOverride *int64
	Options           []OptionOverride
}

// UnmarshalJSON decodes the request keeping absent and null apart.
func (r *OverrideRequest) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*r = OverrideRequest{}
	if raw, ok := fields["pack_price_override"]; ok {
		r.SetPackOverride = true
		if err := json.Unmarshal(raw, &r.PackPriceOverride); err != nil {
			return fmt.Errorf("pack_price_override: %w", err)
		}
	}
	if raw, ok := fields["options_price_overrides"]; ok {
		if err := json.Unmarshal(raw, &r.Options); err != nil {
			return fmt.Errorf("options_price_overrides: %w", err)
		}
	}
	return nil
}

// Apply runs both override operations as one: either every change is
// applied or, when any entry is rejected, pack is returned untouched along
// with all the problems found.
func (r OverrideRequest) Apply(pack model.PricedPack) (model.PricedPack, error) {
	var errs ValidationErrors
	out := pack
	if r.SetPackOverride {
		next, err := ApplyPackOverride(out, r.PackPriceOverride)
		if err != nil {
			errs = append(errs, asValidationErrors(err)...)
		} else {
			out = next
		}
	}
	next, err := ApplyOptionOverrides(out, r.Options)
	if err != nil {
		errs = append(errs, asValidationErrors(err)...)
	}
	if err := errs.orNil(); err != nil {
		return pack, err
	}
	return next, nil
}

func asValidationErrors(err error) ValidationErrors {
	var v ValidationErrors
	if errors.As(err, &v) {
		return v
	}
	return ValidationErrors{newOptionError(CodeInvalidOverride, "", "%s", err.Error())}
}

// OverridesOf collects the option overrides currently set on pack, keyed by
// option id, in the shape stored on a pack choice.
func OverridesOf(pack model.PricedPack) map[string]int64 {
	out := make(map[string]int64)
	for _, o := range pack.Options {
		if o.PriceOverride != nil {
			out[o.ID] = *o.PriceOverride
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
