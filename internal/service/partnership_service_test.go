package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/sponsorship-partnerships/internal/cache"
	"github.com/iliyamo/sponsorship-partnerships/internal/database"
	"github.com/iliyamo/sponsorship-partnerships/internal/model"
	"github.com/iliyamo/sponsorship-partnerships/internal/pricing"
	"github.com/iliyamo/sponsorship-partnerships/internal/queue"
	"github.com/iliyamo/sponsorship-partnerships/internal/repository"
	"github.com/iliyamo/sponsorship-partnerships/internal/workflow"
)

var (
	organizer = Actor{UserID: "org-1", Role: model.RoleOrganizer}
	partner   = Actor{UserID: "partner-1", Role: model.RolePartner}
	stranger  = Actor{UserID: "partner-2", Role: model.RolePartner}
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]cache.PricingEntry
	hits    int
}

func (m *memoryCache) Get(_ context.Context, key string) (cache.PricingEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if ok {
		m.hits++
	}
	return e, ok
}

func (m *memoryCache) Set(_ context.Context, key string, e cache.PricingEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.PartnershipDecisionEvent
}

func (r *recordingNotifier) PublishDecision(_ context.Context, ev queue.PartnershipDecisionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type fixture struct {
	svc      *PartnershipService
	cache    *memoryCache
	notifier *recordingNotifier
	pack     model.SponsoringPack
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "svc.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &fixture{
		cache:    &memoryCache{entries: map[string]cache.PricingEntry{}},
		notifier: &recordingNotifier{},
	}
	f.svc = NewPartnershipService(repository.NewCatalogRepo(db), repository.NewPartnershipRepo(db), f.cache, f.notifier, "en")
	f.svc.Now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	t.Cleanup(f.svc.Wait)

	fixed := 4
	pack, err := f.svc.CreatePack(context.Background(), organizer, CreatePackInput{
		EventID: "devconf", Name: "Gold", BasePrice: 100000, Currency: "eur",
		Options: []PackOptionInput{
			{Required: true, OptionSpec: model.OptionSpec{ID: "logo", Name: "Logo", Description: "Logo on website", Type: model.OptionTypeText}},
			{OptionSpec: model.OptionSpec{ID: "jobs", Name: "Jobs", Description: "Job offers", Type: model.OptionTypeTypedQuantitative, TypeDescriptor: "job_offer", Price: 50000}},
			{Required: true, OptionSpec: model.OptionSpec{ID: "tickets", Type: model.OptionTypeTypedNumber, TypeDescriptor: "nb_ticket", FixedQuantity: &fixed, Price: 2000},
				Translations: []repository.OptionTranslation{{Language: "en", Name: "Tickets", Description: "Conference tickets"}, {Language: "fr", Name: "Billets", Description: "Billets"}}},
			{OptionSpec: model.OptionSpec{ID: "booth", Name: "Booth", Description: "Booth", Type: model.OptionTypeTypedSelectable, TypeDescriptor: "booth_size",
				SelectableValues: []model.SelectableValue{{ID: "a", Value: "Small", Price: 10000}, {ID: "b", Value: "Large", Price: 30000}}}},
		},
	})
	if err != nil {
		t.Fatalf("CreatePack: %v", err)
	}
	f.pack = pack
	return f
}

func (f *fixture) register(t *testing.T) PartnershipView {
	t.Helper()
	v, err := f.svc.Register(context.Background(), partner, RegisterInput{
		EventID: "devconf", CompanyID: "acme", PackID: f.pack.ID,
		Selections: model.SelectionList{
			model.QuantitativeSelection{OptionID: "jobs", SelectedQuantity: 2},
			model.SelectableSelection{OptionID: "booth", SelectedValueID: "b"},
		},
	}, "en")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return v
}

func TestCreatePackNormalizesAndReadsBack(t *testing.T) {
	f := newFixture(t)
	if f.pack.Currency != "EUR" || len(f.pack.Options) != 4 || f.pack.Options[2].Option.Description != "Conference tickets" {
		t.Fatalf("pack = %+v", f.pack)
	}
	packs, err := f.svc.ListPacks(context.Background(), "devconf", "fr")
	if err != nil || len(packs) != 1 || packs[0].Options[2].Option.Name != "Billets" {
		t.Fatalf("ListPacks = %+v, %v", packs, err)
	}
	empty, err := f.svc.ListPacks(context.Background(), "other", "en")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("ListPacks(other) = %v, %v", empty, err)
	}
}

func TestCreatePackRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tests := []struct {
		name string
		in   CreatePackInput
		want error
	}{
		{"descriptor", CreatePackInput{EventID: "e", Name: "P", Currency: "EUR", Options: []PackOptionInput{
			{OptionSpec: model.OptionSpec{ID: "x", Name: "X", Type: model.OptionTypeTypedNumber, TypeDescriptor: "t"}}}}, model.ErrInvalidDescriptor},
		{"duplicate", CreatePackInput{EventID: "e", Name: "P", Currency: "EUR", Options: []PackOptionInput{
			{OptionSpec: model.OptionSpec{ID: "x", Name: "X", Type: model.OptionTypeText}},
			{OptionSpec: model.OptionSpec{ID: "x", Name: "X", Type: model.OptionTypeText}}}}, ErrInvalidInput},
		{"no name", CreatePackInput{EventID: "e", Name: "P", Currency: "EUR", Options: []PackOptionInput{
			{OptionSpec: model.OptionSpec{ID: "x", Type: model.OptionTypeText}}}}, ErrInvalidInput},
		{"negative", CreatePackInput{EventID: "e", Name: "P", Currency: "EUR", BasePrice: -1}, ErrInvalidInput},
		{"taken id", CreatePackInput{EventID: "e", Name: "P", Currency: "EUR", Options: []PackOptionInput{
			{OptionSpec: model.OptionSpec{ID: "logo", Name: "Logo", Type: model.OptionTypeText}}}}, repository.ErrDuplicateID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.CreatePack(ctx, organizer, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegisterAndPrice(t *testing.T) {
	f := newFixture(t)
	v := f.register(t)
	if v.Status != model.StatusRegistered || v.Version != 1 || len(v.Current.Options) != 4 {
		t.Fatalf("view = %+v", v)
	}

	ctx := context.Background()
	res, err := f.svc.Pricing(ctx, partner, v.ID, "en")
	if err != nil {
		t.Fatalf("Pricing: %v", err)
	}
	// 100000 + 2*50000 + 4*2000 + 30000
	if res.Pricing.TotalAmount != 238000 || res.ETag == "" {
		t.Fatalf("pricing = %+v", res)
	}
	if len(res.Pricing.RequiredOptions) != 2 || len(res.Pricing.OptionalOptions) != 2 {
		t.Fatalf("partition = %+v", res.Pricing)
	}
	again, err := f.svc.Pricing(ctx, partner, v.ID, "en")
	if err != nil || again.ETag != res.ETag || f.cache.hits != 1 {
		t.Fatalf("second read etag=%q hits=%d err=%v", again.ETag, f.cache.hits, err)
	}

	if _, err := f.svc.Get(ctx, stranger, v.ID, "en"); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("stranger err = %v", err)
	}
	if _, err := f.svc.Get(ctx, organizer, v.ID, "en"); err != nil {
		t.Fatalf("organizer Get: %v", err)
	}
	if _, err := f.svc.Get(ctx, partner, "missing", "en"); !errors.Is(err, repository.ErrPartnershipNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}

func TestRegisterReportsEverySelectionError(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), partner, RegisterInput{
		EventID: "devconf", CompanyID: "acme", PackID: f.pack.ID,
		Selections: model.SelectionList{
			model.QuantitativeSelection{OptionID: "tickets", SelectedQuantity: 1},
			model.SelectableSelection{OptionID: "booth", SelectedValueID: "zzz"},
		},
	}, "en")
	var verrs pricing.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 2 {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, pricing.ErrTypeMismatch) || !errors.Is(err, pricing.ErrUnknownSelectableValue) {
		t.Fatalf("missing codes in %v", err)
	}

	_, err = f.svc.Register(context.Background(), partner, RegisterInput{EventID: "other", CompanyID: "acme", PackID: f.pack.ID}, "en")
	if !errors.Is(err, workflow.ErrPackMismatch) {
		t.Fatalf("foreign event err = %v", err)
	}
}

func TestValidateFreezesAndNotifies(t *testing.T) {
	f := newFixture(t)
	v := f.register(t)
	ctx := context.Background()

	if _, err := f.svc.Billing(ctx, organizer, v.ID, "en"); !errors.Is(err, workflow.ErrConflict) {
		t.Fatalf("billing before validate err = %v", err)
	}
	validated, err := f.svc.Validate(ctx, organizer, v.ID, v.Version)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if validated.Status != model.StatusValidated || validated.Process.ValidatedAt == nil {
		t.Fatalf("validated = %+v", validated)
	}

	override := int64(80000)
	res, err := f.svc.ApplyOverrides(ctx, organizer, v.ID, pricing.OverrideRequest{
		SetPackOverride:   true,
		PackPriceOverride: &override,
		Options:           []pricing.OptionOverride{{OptionID: "booth", PriceOverride: &override}},
	}, "en")
	if err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	// 80000 + 100000 + 8000 + 80000
	if res.Pricing.TotalAmount != 268000 {
		t.Fatalf("total = %d", res.Pricing.TotalAmount)
	}
	billing, err := f.svc.Billing(ctx, organizer, v.ID, "en")
	if err != nil || billing.ETag != res.ETag {
		t.Fatalf("billing = %+v, %v", billing, err)
	}

	if _, err := f.svc.SignAgreement(ctx, organizer, v.ID, "en"); err != nil {
		t.Fatalf("SignAgreement: %v", err)
	}

	f.svc.Wait()
	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	if len(f.notifier.events) != 2 {
		t.Fatalf("events = %+v", f.notifier.events)
	}
	byDecision := map[string]queue.PartnershipDecisionEvent{}
	for _, ev := range f.notifier.events {
		byDecision[ev.Decision] = ev
	}
	ev := byDecision[queue.DecisionValidated]
	if ev.TotalAmount != 238000 || ev.Currency != "EUR" || ev.ActorID != "org-1" || ev.Status != "VALIDATED" {
		t.Fatalf("validated event = %+v", ev)
	}
	if signed := byDecision[queue.DecisionAgreementSigned]; signed.TotalAmount != 268000 {
		t.Fatalf("signed event = %+v", signed)
	}
}

func TestSuggestionRoundTrip(t *testing.T) {
	f := newFixture(t)
	v := f.register(t)
	ctx := context.Background()

	s, err := f.svc.Suggest(ctx, organizer, v.ID, SuggestInput{
		PackID:     f.pack.ID,
		Selections: model.SelectionList{model.SelectableSelection{OptionID: "booth", SelectedValueID: "a"}},
	}, "en")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if s.Status != model.StatusSuggested || s.Suggested == nil || s.Process.SuggestionSentAt == nil {
		t.Fatalf("suggested = %+v", s)
	}
	if _, err := f.svc.UpdateSelections(ctx, partner, v.ID, nil, "en"); !errors.Is(err, workflow.ErrConflict) {
		t.Fatalf("update after suggest err = %v", err)
	}
	a, err := f.svc.ApproveSuggestion(ctx, partner, v.ID, "en")
	if err != nil || a.Process.SuggestionApprovedAt == nil {
		t.Fatalf("ApproveSuggestion = %+v, %v", a, err)
	}
	if _, err := f.svc.DeclineSuggestion(ctx, partner, v.ID, "en"); !errors.Is(err, workflow.ErrConflict) {
		t.Fatalf("second response err = %v", err)
	}
	d, err := f.svc.Decline(ctx, organizer, v.ID, a.Version, "en")
	if err != nil || d.Status != model.StatusDeclined {
		t.Fatalf("Decline = %+v, %v", d, err)
	}

	list, err := f.svc.ListByEvent(ctx, organizer, "devconf", "en")
	if err != nil || len(list) != 1 || list[0].Status != model.StatusDeclined {
		t.Fatalf("ListByEvent = %+v, %v", list, err)
	}
	hidden, err := f.svc.ListByEvent(ctx, stranger, "devconf", "en")
	if err != nil || len(hidden) != 0 {
		t.Fatalf("stranger ListByEvent = %+v, %v", hidden, err)
	}
}

func TestConcurrentValidateHasOneWinner(t *testing.T) {
	f := newFixture(t)
	v := f.register(t)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Validate(context.Background(), organizer, v.ID, v.Version)
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, workflow.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("ok=%d conflicts=%d", ok, conflicts)
	}
}

func TestConcurrentValidateAndDeclineHaveOneWinner(t *testing.T) {
	for i := 0; i < 10; i++ {
		f := newFixture(t)
		v := f.register(t)

		var wg sync.WaitGroup
		var validateErr, declineErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, validateErr = f.svc.Validate(context.Background(), organizer, v.ID, v.Version)
		}()
		go func() {
			defer wg.Done()
			_, declineErr = f.svc.Decline(context.Background(), organizer, v.ID, v.Version, "en")
		}()
		wg.Wait()

		if (validateErr == nil) == (declineErr == nil) {
			t.Fatalf("run %d: validate err = %v, decline err = %v", i, validateErr, declineErr)
		}
		loser := validateErr
		want := model.StatusDeclined
		if loser == nil {
			loser, want = declineErr, model.StatusValidated
		}
		var conflict *workflow.ConflictError
		if !errors.As(loser, &conflict) {
			t.Fatalf("run %d: loser err = %v", i, loser)
		}
		got, err := f.svc.Get(context.Background(), organizer, v.ID, "en")
		if err != nil || got.Status != want {
			t.Fatalf("run %d: stored = %+v, %v", i, got, err)
		}
	}
}

func TestDecisionsRequireCurrentVersion(t *testing.T) {
	f := newFixture(t)
	v := f.register(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		call    func() error
		missing bool
	}{
		{"validate without version", func() error {
			_, err := f.svc.Validate(ctx, organizer, v.ID, 0)
			return err
		}, true},
		{"decline without version", func() error {
			_, err := f.svc.Decline(ctx, organizer, v.ID, 0, "en")
			return err
		}, true},
		{"validate stale version", func() error {
			_, err := f.svc.Validate(ctx, organizer, v.ID, v.Version+1)
			return err
		}, false},
		{"decline stale version", func() error {
			_, err := f.svc.Decline(ctx, organizer, v.ID, v.Version+1, "en")
			return err
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if tt.missing {
				if !errors.Is(err, ErrVersionRequired) {
					t.Fatalf("err = %v, want ErrVersionRequired", err)
				}
				return
			}
			var conflict *workflow.ConflictError
			if !errors.As(err, &conflict) || conflict.Status != model.StatusRegistered {
				t.Fatalf("err = %v, want conflict at REGISTERED", err)
			}
		})
	}

	got, err := f.svc.Get(ctx, organizer, v.ID, "en")
	if err != nil || got.Status != model.StatusRegistered || got.Version != v.Version {
		t.Fatalf("stored = %+v, %v", got, err)
	}
}
