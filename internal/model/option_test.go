package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestNewSponsoringOptionDescriptorMatchesType(t *testing.T) {
	values := []SelectableValue{{ID: "a", Value: "Small", Price: 10000}}

	tests := []struct {
		name    string
		spec    OptionSpec
		wantErr bool
	}{
		{name: "text", spec: OptionSpec{ID: "o1", Type: OptionTypeText, Price: 100}},
		{name: "text with tag", spec: OptionSpec{ID: "o1", Type: OptionTypeText, TypeDescriptor: "job_offer"}, wantErr: true},
		{name: "text with values", spec: OptionSpec{ID: "o1", Type: OptionTypeText, SelectableValues: values}, wantErr: true},
		{name: "quantitative", spec: OptionSpec{ID: "o2", Type: OptionTypeTypedQuantitative, TypeDescriptor: "job_offer"}},
		{name: "quantitative without tag", spec: OptionSpec{ID: "o2", Type: OptionTypeTypedQuantitative}, wantErr: true},
		{name: "quantitative with fixed quantity", spec: OptionSpec{ID: "o2", Type: OptionTypeTypedQuantitative, TypeDescriptor: "x", FixedQuantity: intPtr(2)}, wantErr: true},
		{name: "number", spec: OptionSpec{ID: "o3", Type: OptionTypeTypedNumber, TypeDescriptor: "nb_ticket", FixedQuantity: intPtr(4)}},
		{name: "number without quantity", spec: OptionSpec{ID: "o3", Type: OptionTypeTypedNumber, TypeDescriptor: "nb_ticket"}, wantErr: true},
		{name: "number zero quantity", spec: OptionSpec{ID: "o3", Type: OptionTypeTypedNumber, TypeDescriptor: "nb_ticket", FixedQuantity: intPtr(0)}, wantErr: true},
		{name: "selectable", spec: OptionSpec{ID: "o4", Type: OptionTypeTypedSelectable, TypeDescriptor: "booth", SelectableValues: values}},
		{name: "selectable without values", spec: OptionSpec{ID: "o4", Type: OptionTypeTypedSelectable, TypeDescriptor: "booth"}, wantErr: true},
		{name: "selectable duplicate values", spec: OptionSpec{ID: "o4", Type: OptionTypeTypedSelectable, TypeDescriptor: "booth", SelectableValues: append(values, values[0])}, wantErr: true},
		{name: "negative price", spec: OptionSpec{ID: "o5", Type: OptionTypeText, Price: -1}, wantErr: true},
		{name: "missing id", spec: OptionSpec{Type: OptionTypeText}, wantErr: true},
		{name: "unknown type", spec: OptionSpec{ID: "o6", Type: "banner"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opt, err := NewSponsoringOption(tc.spec)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidDescriptor) {
					t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if opt.Type() != tc.spec.Type {
				t.Fatalf("type = %q, want %q", opt.Type(), tc.spec.Type)
			}
		})
	}
}

func TestSponsoringOptionAccessors(t *testing.T) {
	opt, err := NewSponsoringOption(OptionSpec{
		ID: "booth", Type: OptionTypeTypedSelectable, TypeDescriptor: "booth_size",
		SelectableValues: []SelectableValue{{ID: "a", Value: "Small", Price: 10000}, {ID: "b", Value: "Large", Price: 30000}},
	})
	if err != nil {
		t.Fatalf("new option: %v", err)
	}
	if opt.Tag() != "booth_size" {
		t.Fatalf("tag = %q", opt.Tag())
	}
	if _, ok := opt.FixedQuantity(); ok {
		t.Fatalf("selectable option reported a fixed quantity")
	}
	v, ok := opt.Value("b")
	if !ok || v.Price != 30000 {
		t.Fatalf("value b = %+v, %v", v, ok)
	}
	vals := opt.Values()
	vals[0].Price = 1
	if again, _ := opt.Value("a"); again.Price != 10000 {
		t.Fatalf("Values leaked internal slice")
	}
}

func TestSponsoringOptionJSONRejectsMismatch(t *testing.T) {
	var opt SponsoringOption
	err := json.Unmarshal([]byte(`{"id":"o1","type":"typed_number","type_descriptor":"nb_ticket"}`), &opt)
	if !errors.Is(err, ErrInvalidDescriptor) {
		t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
	}

	err = json.Unmarshal([]byte(`{"id":"o1","type":"typed_number","type_descriptor":"nb_ticket","fixed_quantity":3,"price":500}`), &opt)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if q, ok := opt.FixedQuantity(); !ok || q != 3 {
		t.Fatalf("fixed quantity = %d, %v", q, ok)
	}
	b, err := json.Marshal(opt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var back SponsoringOption
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("decode encoded: %v", err)
	}
	if back.Tag() != "nb_ticket" || back.Price != 500 {
		t.Fatalf("round trip lost data: %+v", back.Spec())
	}
}
