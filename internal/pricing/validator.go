// Package pricing turns a pack catalog and partner selections into priced
// line items, applies organizer overrides and folds the result into a
// pricing summary.  Everything here is pure: callers pass catalog snapshots
// in and get new values back.
package pricing

import (
	"sort"

	"github.com/iliyamo/sponsorship-partnerships/internal/model"
)

// Validated is a selection accepted against its catalog entry.
type Validated struct {
	Option    model.PackOption
	Selection model.OptionSelection
}

// ValidateSelection checks one selection against the option it references.
func ValidateSelection(opt model.SponsoringOption, sel model.OptionSelection) *OptionError {
	if want := sel.SelectionType().OptionType(); want != opt.Type() {
		return newOptionError(CodeTypeMismatch, opt.ID,
			"%s cannot select a %s option", sel.SelectionType(), opt.Type())
	}
	switch s := sel.(type) {
	case model.QuantitativeSelection:
		if s.SelectedQuantity <= 0 {
			return newOptionError(CodeInvalidQuantity, opt.ID,
				"selected quantity must be positive, got %d", s.SelectedQuantity)
		}
		if s.SelectedQuantity > model.MaxQuantity {
			return newOptionError(CodeInvalidQuantity, opt.ID,
				"selected quantity must not exceed %d, got %d", model.MaxQuantity, s.SelectedQuantity)
		}
		if _, ok := model.MulAmount(opt.Price, s.SelectedQuantity); !ok {
			return newOptionError(CodeInvalidQuantity, opt.ID,
				"selected quantity %d overflows the option total", s.SelectedQuantity)
		}
	case model.SelectableSelection:
		if _, ok := opt.Value(s.SelectedValueID); !ok {
			return newOptionError(CodeUnknownSelectableValue, opt.ID,
				"unknown selectable value %q", s.SelectedValueID)
		}
	}
	return nil
}

// ValidateSelections validates a whole batch against pack.  It never stops
// at the first failure: the returned ValidationErrors lists every rejected
// selection.  Required TEXT and TYPED_NUMBER options need no partner input
// and are added when absent; required options of the other two types must
// be selected.  The accepted result is in catalog order.
func ValidateSelections(pack model.SponsoringPack, selections []model.OptionSelection) ([]Validated, error) {
	var errs ValidationErrors
	accepted := make(map[string]Validated, len(selections))
	seen := make(map[string]bool, len(selections))

	for _, sel := range selections {
		id := sel.TargetOptionID()
		if seen[id] {
			errs = append(errs, newOptionError(CodeDuplicateSelection, id, "option selected more than once"))
			continue
		}
		seen[id] = true

		po, ok := pack.Lookup(id)
		if !ok {
			errs = append(errs, newOptionError(CodeUnknownOption, id, "option is not part of pack %q", pack.ID))
			continue
		}
		if err := ValidateSelection(po.Option, sel); err != nil {
			errs = append(errs, err)
			continue
		}
		accepted[id] = Validated{Option: po, Selection: sel}
	}

	for _, po := range pack.Options {
		if !po.Required || seen[po.Option.ID] {
			continue
		}
		switch po.Option.Type() {
		case model.OptionTypeText:
			accepted[po.Option.ID] = Validated{Option: po, Selection: model.TextSelection{OptionID: po.Option.ID}}
		case model.OptionTypeTypedNumber:
			accepted[po.Option.ID] = Validated{Option: po, Selection: model.NumberSelection{OptionID: po.Option.ID}}
		default:
			errs = append(errs, newOptionError(CodeMissingRequiredOption, po.Option.ID, "required option must be selected"))
		}
	}

	if err := errs.orNil(); err != nil {
		return nil, err
	}

	out := make([]Validated, 0, len(accepted))
	for _, v := range accepted {
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Option.Position != out[j].Option.Position {
			return out[i].Option.Position < out[j].Option.Position
		}
		return out[i].Option.Option.ID < out[j].Option.Option.ID
	})
	priced := model.PricedPack{Pack: pack.Summary(), Options: ResolveAll(out)}
	if id, overflow := checkAmounts(priced); overflow {
		return nil, ValidationErrors{newOptionError(CodeInvalidQuantity, id, "pack total exceeds the largest supported amount")}
	}
	return out, nil
}
