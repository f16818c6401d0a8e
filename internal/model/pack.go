package model

import "time"

// PackOption places a catalog option inside a pack.  Required options are
// bundled with the pack; the others are optional add-ons.  Position is the
// catalog order used for every derived listing.
type PackOption struct {
	Option   SponsoringOption `json:"option"`
	Required bool             `json:"required"`
	Position int              `json:"position"`
}

// SponsoringPack is a priced sponsorship package offered for one event.
//
// Fields:
//
//	ID        – sponsoring_packs.id
//	EventID   – event the pack is sold for
//	Name      – display name
//	BasePrice – pack price in minor currency units
//	Currency  – ISO-4217 code, carried only
//	Options   – pack options in catalog order
type SponsoringPack struct {
	ID        string       `json:"id"`
	EventID   string       `json:"event_id"`
	Name      string       `json:"name"`
	BasePrice int64        `json:"base_price"`
	Currency  string       `json:"currency"`
	Options   []PackOption `json:"options"`
	CreatedAt time.Time    `json:"created_at"`
}

// Lookup returns the pack option with the given option id.
func (p SponsoringPack) Lookup(optionID string) (PackOption, bool) {
	for _, po := range p.Options {
		if po.Option.ID == optionID {
			return po, true
		}
	}
	return PackOption{}, false
}

// Summary returns the pack fields that are pinned into priced snapshots.
func (p SponsoringPack) Summary() PackSummary {
	return PackSummary{ID: p.ID, Name: p.Name, BasePrice: p.BasePrice, Currency: p.Currency}
}

// PackSummary identifies a pack and pins its base price.
type PackSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BasePrice int64  `json:"base_price"`
	Currency  string `json:"currency"`
}
