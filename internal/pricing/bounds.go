package pricing

import "github.com/iliyamo/sponsorship-partnerships/internal/model"

// checkAmounts walks pack in order and returns the id of the first option
// whose line total, or whose addition to the running total, does not fit in
// an int64.  overflow is false when every amount fits.
func checkAmounts(pack model.PricedPack) (optionID string, overflow bool) {
	total := pack.BasePrice()
	if total < 0 {
		return "", true
	}
	for _, o := range pack.Options {
		line, ok := o.LineTotal()
		if !ok {
			return o.ID, true
		}
		if total, ok = model.AddAmount(total, line); !ok {
			return o.ID, true
		}
	}
	return "", false
}
