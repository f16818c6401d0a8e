package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// OptionType identifies which descriptor a sponsoring option carries.  The
// string values double as the wire tag of resolved options.
type OptionType string

const (
	OptionTypeText              OptionType = "text"
	OptionTypeTypedQuantitative OptionType = "typed_quantitative"
	OptionTypeTypedNumber       OptionType = "typed_number"
	OptionTypeTypedSelectable   OptionType = "typed_selectable"
)

// IsValid reports whether t is one of the four known option types.
func (t OptionType) IsValid() bool {
	switch t {
	case OptionTypeText, OptionTypeTypedQuantitative, OptionTypeTypedNumber, OptionTypeTypedSelectable:
		return true
	default:
		return false
	}
}

// ErrInvalidDescriptor is wrapped by every catalog construction failure.
var ErrInvalidDescriptor = errors.New("invalid option descriptor")

// SelectableValue is one choice of a TYPED_SELECTABLE option.  When chosen,
// its Price replaces the option's base price.
type SelectableValue struct {
	ID    string `json:"id"`
	Value string `json:"value"`
	Price int64  `json:"price"`
}

// OptionDescriptor is the closed set of type-specific descriptor payloads.
// Only the four descriptor types in this package implement it.
type OptionDescriptor interface {
	optionType() OptionType
}

// TextDescriptor describes a TEXT option: presence only, no extra data.
type TextDescriptor struct{}

// QuantitativeDescriptor describes a TYPED_QUANTITATIVE option whose quantity
// is chosen by the partner.
type QuantitativeDescriptor struct {
	Tag string
}

// NumberDescriptor describes a TYPED_NUMBER option whose quantity is fixed
// by the organizer.
type NumberDescriptor struct {
	Tag           string
	FixedQuantity int
}

// SelectableDescriptor describes a TYPED_SELECTABLE option and its ordered
// values.
type SelectableDescriptor struct {
	Tag    string
	Values []SelectableValue
}

func (TextDescriptor) optionType() OptionType         { return OptionTypeText }
func (QuantitativeDescriptor) optionType() OptionType { return OptionTypeTypedQuantitative }
func (NumberDescriptor) optionType() OptionType       { return OptionTypeTypedNumber }
func (SelectableDescriptor) optionType() OptionType   { return OptionTypeTypedSelectable }

// SponsoringOption is an organizer-authored catalog entry.  Values are only
// built through NewSponsoringOption (or JSON decoding, which calls it), so
// the descriptor always matches the option type.
type SponsoringOption struct {
	ID          string
	Name        string
	Description string
	Price       int64
	descriptor  OptionDescriptor
}

// OptionSpec is the flat, untrusted shape of a catalog entry as read from a
// database row or a request body.
type OptionSpec struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Type             OptionType        `json:"type"`
	Price            int64             `json:"price"`
	TypeDescriptor   string            `json:"type_descriptor,omitempty"`
	FixedQuantity    *int              `json:"fixed_quantity,omitempty"`
	SelectableValues []SelectableValue `json:"selectable_values,omitempty"`
}

// NewSponsoringOption validates spec and builds the option.  A descriptor
// field populated for the wrong type, or missing for the right one, is
// rejected with ErrInvalidDescriptor.
func NewSponsoringOption(spec OptionSpec) (SponsoringOption, error) {
	fail := func(format string, args ...any) (SponsoringOption, error) {
		return SponsoringOption{}, fmt.Errorf("%w: option %q: %s", ErrInvalidDescriptor, spec.ID, fmt.Sprintf(format, args...))
	}
	if strings.TrimSpace(spec.ID) == "" {
		return fail("id is required")
	}
	if spec.Price < 0 {
		return fail("price must not be negative")
	}
	tag := strings.TrimSpace(spec.TypeDescriptor)

	var d OptionDescriptor
	switch spec.Type {
	case OptionTypeText:
		if tag != "" || spec.FixedQuantity != nil || len(spec.SelectableValues) > 0 {
			return fail("text option must not carry a descriptor")
		}
		d = TextDescriptor{}
	case OptionTypeTypedQuantitative:
		if tag == "" {
			return fail("quantitative option requires type_descriptor")
		}
		if spec.FixedQuantity != nil || len(spec.SelectableValues) > 0 {
			return fail("quantitative option only carries type_descriptor")
		}
		d = QuantitativeDescriptor{Tag: tag}
	case OptionTypeTypedNumber:
		if tag == "" {
			return fail("number option requires type_descriptor")
		}
		if spec.FixedQuantity == nil || *spec.FixedQuantity <= 0 {
			return fail("number option requires a positive fixed_quantity")
		}
		if *spec.FixedQuantity > MaxQuantity {
			return fail("fixed_quantity must not exceed %d", MaxQuantity)
		}
		if len(spec.SelectableValues) > 0 {
			return fail("number option must not carry selectable_values")
		}
		d = NumberDescriptor{Tag: tag, FixedQuantity: *spec.FixedQuantity}
	case OptionTypeTypedSelectable:
		if tag == "" {
			return fail("selectable option requires type_descriptor")
		}
		if spec.FixedQuantity != nil {
			return fail("selectable option must not carry fixed_quantity")
		}
		if len(spec.SelectableValues) == 0 {
			return fail("selectable option requires at least one value")
		}
		seen := make(map[string]struct{}, len(spec.SelectableValues))
		values := make([]SelectableValue, 0, len(spec.SelectableValues))
		for _, v := range spec.SelectableValues {
			if strings.TrimSpace(v.ID) == "" {
				return fail("selectable value id is required")
			}
			if _, dup := seen[v.ID]; dup {
				return fail("duplicate selectable value %q", v.ID)
			}
			if v.Price < 0 {
				return fail("selectable value %q has a negative price", v.ID)
			}
			seen[v.ID] = struct{}{}
			values = append(values, v)
		}
		d = SelectableDescriptor{Tag: tag, Values: values}
	default:
		return fail("unknown type %q", spec.Type)
	}

	return SponsoringOption{
		ID:          spec.ID,
		Name:        spec.Name,
		Description: spec.Description,
		Price:       spec.Price,
		descriptor:  d,
	}, nil
}

// Type returns the option type implied by the descriptor.
func (o SponsoringOption) Type() OptionType {
	if o.descriptor == nil {
		return ""
	}
	return o.descriptor.optionType()
}

// Descriptor returns the type-specific payload for exhaustive switches.
func (o SponsoringOption) Descriptor() OptionDescriptor { return o.descriptor }

// Tag returns the semantic tag (e.g. "job_offer"); empty for TEXT options.
func (o SponsoringOption) Tag() string {
	switch d := o.descriptor.(type) {
	case QuantitativeDescriptor:
		return d.Tag
	case NumberDescriptor:
		return d.Tag
	case SelectableDescriptor:
		return d.Tag
	}
	return ""
}

// FixedQuantity returns the organizer-set quantity of a TYPED_NUMBER option.
func (o SponsoringOption) FixedQuantity() (int, bool) {
	if d, ok := o.descriptor.(NumberDescriptor); ok {
		return d.FixedQuantity, true
	}
	return 0, false
}

// Values returns a copy of the values of a TYPED_SELECTABLE option.
func (o SponsoringOption) Values() []SelectableValue {
	d, ok := o.descriptor.(SelectableDescriptor)
	if !ok {
		return nil
	}
	out := make([]SelectableValue, len(d.Values))
	copy(out, d.Values)
	return out
}

// Value looks up a selectable value by id.
func (o SponsoringOption) Value(id string) (SelectableValue, bool) {
	if d, ok := o.descriptor.(SelectableDescriptor); ok {
		for _, v := range d.Values {
			if v.ID == id {
				return v, true
			}
		}
	}
	return SelectableValue{}, false
}

// Spec flattens the option back to its wire/row shape.
func (o SponsoringOption) Spec() OptionSpec {
	spec := OptionSpec{
		ID:          o.ID,
		Name:        o.Name,
		Description: o.Description,
		Type:        o.Type(),
		Price:       o.Price,
	}
	switch d := o.descriptor.(type) {
	case QuantitativeDescriptor:
		spec.TypeDescriptor = d.Tag
	case NumberDescriptor:
		q := d.FixedQuantity
		spec.TypeDescriptor = d.Tag
		spec.FixedQuantity = &q
	case SelectableDescriptor:
		spec.TypeDescriptor = d.Tag
		spec.SelectableValues = o.Values()
	}
	return spec
}

// MarshalJSON encodes the option in its flat catalog shape.
func (o SponsoringOption) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Spec())
}

// UnmarshalJSON decodes and validates a catalog entry.
func (o *SponsoringOption) UnmarshalJSON(b []byte) error {
	var spec OptionSpec
	if err := json.Unmarshal(b, &spec); err != nil {
		return err
	}
	opt, err := NewSponsoringOption(spec)
	if err != nil {
		return err
	}
	*o = opt
	return nil
}
