package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SelectionType is the wire discriminator of a partner selection.
type SelectionType string

const (
	SelectionTypeText         SelectionType = "text_selection"
	SelectionTypeQuantitative SelectionType = "quantitative_selection"
	SelectionTypeNumber       SelectionType = "number_selection"
	SelectionTypeSelectable   SelectionType = "selectable_selection"
)

// OptionType returns the catalog option type a selection of type t must
// reference.
func (t SelectionType) OptionType() OptionType {
	switch t {
	case SelectionTypeText:
		return OptionTypeText
	case SelectionTypeQuantitative:
		return OptionTypeTypedQuantitative
	case SelectionTypeNumber:
		return OptionTypeTypedNumber
	case SelectionTypeSelectable:
		return OptionTypeTypedSelectable
	}
	return ""
}

// ErrUnknownSelectionType is returned when decoding a selection whose type
// discriminator is missing or not one of the four known values.
var ErrUnknownSelectionType = errors.New("unknown selection type")

// OptionSelection is the closed set of partner selection shapes.
type OptionSelection interface {
	SelectionType() SelectionType
	TargetOptionID() string
	isOptionSelection()
}

// TextSelection selects a TEXT option.
type TextSelection struct {
	OptionID string
}

// QuantitativeSelection selects a TYPED_QUANTITATIVE option with a
// partner-chosen quantity.
type QuantitativeSelection struct {
	OptionID         string
	SelectedQuantity int
}

// NumberSelection selects a TYPED_NUMBER option; the quantity comes from
// the catalog.
type NumberSelection struct {
	OptionID string
}

// SelectableSelection selects one value of a TYPED_SELECTABLE option.
type SelectableSelection struct {
	OptionID        string
	SelectedValueID string
}

func (TextSelection) SelectionType() SelectionType         { return SelectionTypeText }
func (QuantitativeSelection) SelectionType() SelectionType { return SelectionTypeQuantitative }
func (NumberSelection) SelectionType() SelectionType       { return SelectionTypeNumber }
func (SelectableSelection) SelectionType() SelectionType   { return SelectionTypeSelectable }

func (s TextSelection) TargetOptionID() string         { return s.OptionID }
func (s QuantitativeSelection) TargetOptionID() string { return s.OptionID }
func (s NumberSelection) TargetOptionID() string       { return s.OptionID }
func (s SelectableSelection) TargetOptionID() string   { return s.OptionID }

func (TextSelection) isOptionSelection()         {}
func (QuantitativeSelection) isOptionSelection() {}
func (NumberSelection) isOptionSelection()       {}
func (SelectableSelection) isOptionSelection()   {}

// selectionWire is the flat JSON shape shared by all selection variants.
type selectionWire struct {
	Type             SelectionType `json:"type"`
	OptionID         string        `json:"option_id"`
	SelectedQuantity *int          `json:"selected_quantity,omitempty"`
	SelectedValueID  *string       `json:"selected_value_id,omitempty"`
}

// EncodeSelection returns the wire shape of s.
func EncodeSelection(s OptionSelection) ([]byte, error) {
	w := selectionWire{Type: s.SelectionType(), OptionID: s.TargetOptionID()}
	switch v := s.(type) {
	case QuantitativeSelection:
		q := v.SelectedQuantity
		w.SelectedQuantity = &q
	case SelectableSelection:
		id := v.SelectedValueID
		w.SelectedValueID = &id
	}
	return json.Marshal(w)
}

// DecodeSelection parses one tagged selection.  Unknown discriminators are
// rejected rather than ignored.  Value legality (quantity > 0, known value
// ids) is left to the selection validator so that every problem in a batch
// can be reported together.
func DecodeSelection(b []byte) (OptionSelection, error) {
	var w selectionWire
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, err
	}
	switch w.Type {
	case SelectionTypeText:
		return TextSelection{OptionID: w.OptionID}, nil
	case SelectionTypeQuantitative:
		q := 0
		if w.SelectedQuantity != nil {
			q = *w.SelectedQuantity
		}
		return QuantitativeSelection{OptionID: w.OptionID, SelectedQuantity: q}, nil
	case SelectionTypeNumber:
		return NumberSelection{OptionID: w.OptionID}, nil
	case SelectionTypeSelectable:
		id := ""
		if w.SelectedValueID != nil {
			id = *w.SelectedValueID
		}
		return SelectableSelection{OptionID: w.OptionID, SelectedValueID: id}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSelectionType, w.Type)
}

// SelectionList is a JSON-codable list of selections.
type SelectionList []OptionSelection

// MarshalJSON encodes every selection with its discriminator.
func (l SelectionList) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(l))
	for _, s := range l {
		b, err := EncodeSelection(s)
		if err != nil {
			return nil, err
		}
		raws = append(raws, b)
	}
	return json.Marshal(raws)
}

// UnmarshalJSON decodes a list of tagged selections.
func (l *SelectionList) UnmarshalJSON(b []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		return err
	}
	out := make(SelectionList, 0, len(raws))
	for i, raw := range raws {
		s, err := DecodeSelection(raw)
		if err != nil {
			return fmt.Errorf("option_selections[%d]: %w", i, err)
		}
		out = append(out, s)
	}
	*l = out
	return nil
}
