package workflow

import (
	"fmt"
	"time"

	"github.com/iliyamo/sponsorship-partnerships/internal/model"
	"github.com/iliyamo/sponsorship-partnerships/internal/pricing"
)

// Current returns where the partnership's pricing is read from: either a
// pack choice to resolve against the live catalog, or a frozen snapshot.
// Exactly one of the results is non-nil for a well-formed partnership.
func Current(p model.Partnership) (*model.PackChoice, *model.PricedPack) {
	switch p.Status {
	case model.StatusValidated:
		return nil, p.Validated
	case model.StatusSuggested:
		if p.Suggested != nil {
			return p.Suggested, nil
		}
		if p.Validated != nil {
			return nil, p.Validated
		}
	case model.StatusDeclined:
		if p.Validated != nil {
			return nil, p.Validated
		}
		if p.Suggested != nil {
			return p.Suggested, nil
		}
	}
	return p.Selected, nil
}

// CatalogPackID returns the id of the catalog pack the caller must load
// before pricing p, or "" when p is priced from its frozen snapshot.
func CatalogPackID(p model.Partnership) string {
	if choice, _ := Current(p); choice != nil {
		return choice.PackID
	}
	return ""
}

// Price returns the current priced pack of p.  catalog is only read when p
// is not priced from a snapshot and must then be the pack CatalogPackID
// names.
func Price(p model.Partnership, catalog model.SponsoringPack) (model.PricedPack, error) {
	choice, snap := Current(p)
	if snap != nil {
		return *snap.Clone(), nil
	}
	if choice == nil {
		return model.PricedPack{}, fmt.Errorf("%w: partnership %s has no pack", ErrPackMismatch, p.ID)
	}
	if err := checkCatalog(*choice, catalog); err != nil {
		return model.PricedPack{}, err
	}
	return pricing.ResolveChoice(catalog, *choice)
}

// NewPartnership captures a registration.
type NewPartnership struct {
	ID        string
	EventID   string
	CompanyID string
	CreatedBy string
}

// Register validates the partner's selections against pack and returns a
// REGISTERED partnership.
func Register(in NewPartnership, pack model.SponsoringPack, selections []model.OptionSelection, now func() time.Time) (model.Partnership, error) {
	if now == nil {
		now = time.Now
	}
	if pack.EventID != in.EventID {
		return model.Partnership{}, fmt.Errorf("%w: pack %s does not belong to event %s", ErrPackMismatch, pack.ID, in.EventID)
	}
	if _, err := pricing.ValidateSelections(pack, selections); err != nil {
		return model.Partnership{}, err
	}
	createdAt := now().UTC()
	return model.Partnership{
		ID:        in.ID,
		EventID:   in.EventID,
		CompanyID: in.CompanyID,
		CreatedBy: in.CreatedBy,
		Status:    model.StatusRegistered,
		Selected:  &model.PackChoice{PackID: pack.ID, Selections: append(model.SelectionList(nil), selections...)},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// UpdateSelections replaces the partner's selections.  Only allowed while
// REGISTERED; stored option overrides for options no longer selected are
// dropped.
func UpdateSelections(p model.Partnership, pack model.SponsoringPack, selections []model.OptionSelection, now func() time.Time) (model.Partnership, error) {
	if now == nil {
		now = time.Now
	}
	if p.Status != model.StatusRegistered {
		return model.Partnership{}, &ConflictError{Status: p.Status, Op: "update selections"}
	}
	if p.Selected == nil || p.Selected.PackID != pack.ID {
		return model.Partnership{}, fmt.Errorf("%w: pack %s is not the registered pack", ErrPackMismatch, pack.ID)
	}
	validated, err := pricing.ValidateSelections(pack, selections)
	if err != nil {
		return model.Partnership{}, err
	}

	updated := p.Clone()
	updated.Selected.Selections = append(model.SelectionList(nil), selections...)
	kept := make(map[string]int64)
	for _, v := range validated {
		id := v.Option.Option.ID
		if ov, ok := updated.Selected.OptionOverrides[id]; ok {
			kept[id] = ov
		}
	}
	updated.Selected.OptionOverrides = nil
	if len(kept) > 0 {
		updated.Selected.OptionOverrides = kept
	}
	updated.UpdatedAt = now().UTC()
	return updated, nil
}

// Suggest records an alternate pack proposed by the organizer.  The
// validated snapshot, if any, is left as is.  Overrides carry over: the
// pack override when the same pack is suggested again, and option overrides
// for options the new pack still offers.
func Suggest(p model.Partnership, pack model.SponsoringPack, selections []model.OptionSelection, now func() time.Time) (model.Partnership, error) {
	if now == nil {
		now = time.Now
	}
	to, err := Transition(p.Status, EventSuggest)
	if err != nil {
		return model.Partnership{}, err
	}
	if pack.EventID != p.EventID {
		return model.Partnership{}, fmt.Errorf("%w: pack %s does not belong to event %s", ErrPackMismatch, pack.ID, p.EventID)
	}
	if _, err := pricing.ValidateSelections(pack, selections); err != nil {
		return model.Partnership{}, err
	}

	var (
		prevPackID   string
		prevPackOver *int64
		prevOptOver  map[string]int64
	)
	if choice, snap := Current(p); snap != nil {
		prevPackID, prevPackOver, prevOptOver = snap.Pack.ID, snap.PackPriceOverride, pricing.OverridesOf(*snap)
	} else if choice != nil {
		prevPackID, prevPackOver, prevOptOver = choice.PackID, choice.PackPriceOverride, choice.OptionOverrides
	}

	suggested := &model.PackChoice{PackID: pack.ID, Selections: append(model.SelectionList(nil), selections...)}
	if prevPackID == pack.ID && prevPackOver != nil {
		v := *prevPackOver
		suggested.PackPriceOverride = &v
	}
	for id, v := range prevOptOver {
		if _, ok := pack.Lookup(id); !ok {
			continue
		}
		if suggested.OptionOverrides == nil {
			suggested.OptionOverrides = make(map[string]int64)
		}
		suggested.OptionOverrides[id] = v
	}

	updated := p.Clone()
	at := now().UTC()
	updated.Status = to
	updated.Suggested = suggested
	updated.Process.SuggestionSentAt = &at
	updated.Process.SuggestionApprovedAt = nil
	updated.Process.SuggestionDeclinedAt = nil
	updated.UpdatedAt = at
	return updated, nil
}

// Validate promotes the pending suggestion, or else the registered pack,
// to a frozen priced snapshot.  catalog must be the pack CatalogPackID
// names; it is ignored when the partnership returns to a snapshot it
// already holds (a suggestion on a validated partnership that the partner
// turned down).
func Validate(p model.Partnership, catalog model.SponsoringPack, now func() time.Time) (model.Partnership, error) {
	if now == nil {
		now = time.Now
	}
	to, err := Transition(p.Status, EventValidate)
	if err != nil {
		return model.Partnership{}, err
	}
	priced, err := Price(p, catalog)
	if err != nil {
		return model.Partnership{}, err
	}

	updated := p.Clone()
	at := now().UTC()
	updated.Status = to
	updated.Validated = &priced
	updated.Suggested = nil
	updated.Process.ValidatedAt = &at
	updated.UpdatedAt = at
	return updated, nil
}

// Decline is terminal: once declined, nothing else may happen to the
// partnership.
func Decline(p model.Partnership, now func() time.Time) (model.Partnership, error) {
	if now == nil {
		now = time.Now
	}
	to, err := Transition(p.Status, EventDecline)
	if err != nil {
		return model.Partnership{}, err
	}
	updated := p.Clone()
	at := now().UTC()
	updated.Status = to
	updated.Process.DeclinedAt = &at
	updated.UpdatedAt = at
	return updated, nil
}

func pendingSuggestion(p model.Partnership, op string) error {
	if p.Status != model.StatusSuggested {
		return &ConflictError{Status: p.Status, Op: op}
	}
	if p.Suggested == nil || p.Process.SuggestionApprovedAt != nil || p.Process.SuggestionDeclinedAt != nil {
		return &ConflictError{Status: p.Status, Op: op, Reason: "no pending suggestion"}
	}
	return nil
}

// ApproveSuggestion records the partner's agreement with a pending
// suggestion.  The status stays SUGGESTED until the organizer decides.
func ApproveSuggestion(p model.Partnership, now func() time.Time) (model.Partnership, error) {
	if now == nil {
		now = time.Now
	}
	if err := pendingSuggestion(p, "approve suggestion"); err != nil {
		return model.Partnership{}, err
	}
	updated := p.Clone()
	at := now().UTC()
	updated.Process.SuggestionApprovedAt = &at
	updated.UpdatedAt = at
	return updated, nil
}

// DeclineSuggestion records the partner's refusal and drops the suggested
// pack.
func DeclineSuggestion(p model.Partnership, now func() time.Time) (model.Partnership, error) {
	if now == nil {
		now = time.Now
	}
	if err := pendingSuggestion(p, "decline suggestion"); err != nil {
		return model.Partnership{}, err
	}
	updated := p.Clone()
	at := now().UTC()
	updated.Suggested = nil
	updated.Process.SuggestionDeclinedAt = &at
	updated.UpdatedAt = at
	return updated, nil
}

// SignAgreement stamps the agreement milestone of a validated partnership.
func SignAgreement(p model.Partnership, now func() time.Time) (model.Partnership, error) {
	if now == nil {
		now = time.Now
	}
	if p.Status != model.StatusValidated {
		return model.Partnership{}, &ConflictError{Status: p.Status, Op: "sign agreement"}
	}
	if p.Process.AgreementSignedAt != nil {
		return model.Partnership{}, &ConflictError{Status: p.Status, Op: "sign agreement", Reason: "already signed"}
	}
	updated := p.Clone()
	at := now().UTC()
	updated.Process.AgreementSignedAt = &at
	updated.UpdatedAt = at
	return updated, nil
}

// ApplyOverrides applies an override request to the partnership's current
// pack.  On a frozen snapshot the totals are recomputed from the pinned
// prices; otherwise the pack choice is resolved against catalog and the
// resulting overrides are stored back on the choice.
func ApplyOverrides(p model.Partnership, catalog model.SponsoringPack, req pricing.OverrideRequest, now func() time.Time) (model.Partnership, error) {
	if now == nil {
		now = time.Now
	}
	if p.Status == model.StatusDeclined {
		return model.Partnership{}, &ConflictError{Status: p.Status, Op: "override prices"}
	}
	priced, err := Price(p, catalog)
	if err != nil {
		return model.Partnership{}, err
	}
	next, err := req.Apply(priced)
	if err != nil {
		return model.Partnership{}, err
	}

	updated := p.Clone()
	choice, snap := Current(updated)
	switch {
	case snap != nil:
		*snap = next
	case choice != nil:
		choice.PackPriceOverride = next.PackPriceOverride
		choice.OptionOverrides = pricing.OverridesOf(next)
	}
	updated.UpdatedAt = now().UTC()
	return updated, nil
}

func checkCatalog(choice model.PackChoice, catalog model.SponsoringPack) error {
	if choice.PackID != catalog.ID {
		return fmt.Errorf("%w: catalog pack %q does not match chosen pack %q", ErrPackMismatch, catalog.ID, choice.PackID)
	}
	return nil
}
