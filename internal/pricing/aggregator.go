package pricing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/iliyamo/sponsorship-partnerships/internal/model"
)

// BuildPricing folds a priced pack into its summary.  It performs no
// catalog lookups.  pack must come from the validator, resolver or override
// engine, which reject any pack whose total does not fit in an int64.  Lines keep catalog order so that unchanged input always
// produces identical output.
func BuildPricing(eventID, partnershipID string, pack model.PricedPack) model.PartnershipPricing {
	options := make([]model.PartnershipOption, len(pack.Options))
	copy(options, pack.Options)
	sort.SliceStable(options, func(i, j int) bool { return options[i].Position < options[j].Position })

	out := model.PartnershipPricing{
		EventID:         eventID,
		PartnershipID:   partnershipID,
		PackName:        pack.Pack.Name,
		BasePrice:       pack.BasePrice(),
		Currency:        pack.Pack.Currency,
		RequiredOptions: []model.PricingLine{},
		OptionalOptions: []model.PricingLine{},
	}
	total := out.BasePrice
	for _, o := range options {
		line := model.PricingLine{
			Label:      o.LabelWithValue,
			Amount:     o.TotalPrice,
			UnitAmount: o.UnitPrice(),
			Quantity:   o.Quantity,
			Required:   o.Required,
		}
		if o.SelectedValue != nil {
			v := o.SelectedValue.Value
			line.SelectedValue = &v
		}
		total += o.TotalPrice
		if o.Required {
			out.RequiredOptions = append(out.RequiredOptions, line)
		} else {
			out.OptionalOptions = append(out.OptionalOptions, line)
		}
	}
	out.TotalAmount = total
	return out
}

// Digest returns a strong ETag for a pricing summary: the quoted SHA-256 of
// its JSON encoding.
func Digest(p model.PartnershipPricing) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return `"` + hex.EncodeToString(sum[:]) + `"`, nil
}
