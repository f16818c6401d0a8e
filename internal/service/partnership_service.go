// Package service coordinates the pack catalog, the pricing engine, the
// decision workflow and storage on behalf of the HTTP handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/sponsorship-partnerships/internal/cache"
	"github.com/iliyamo/sponsorship-partnerships/internal/model"
	"github.com/iliyamo/sponsorship-partnerships/internal/pricing"
	"github.com/iliyamo/sponsorship-partnerships/internal/queue"
	"github.com/iliyamo/sponsorship-partnerships/internal/repository"
	"github.com/iliyamo/sponsorship-partnerships/internal/workflow"
)

var tracer = otel.Tracer("github.com/iliyamo/sponsorship-partnerships/internal/service")

// ErrInvalidInput marks request problems found before the pricing engine
// runs, such as a malformed pack definition.
var ErrInvalidInput = errors.New("invalid input")

// ErrVersionRequired is returned by decisions that must name the version
// they were taken on.
var ErrVersionRequired = errors.New("partnership version required")

// CatalogStore reads and writes sponsoring packs.
type CatalogStore interface {
	CreatePack(ctx context.Context, pack model.SponsoringPack, createdBy string, translations map[string][]repository.OptionTranslation) error
	GetPack(ctx context.Context, packID, lang, defaultLang string) (model.SponsoringPack, error)
	ListPacks(ctx context.Context, eventID, lang, defaultLang string) ([]model.SponsoringPack, error)
}

// PartnershipStore persists partnerships with compare-and-set updates.
type PartnershipStore interface {
	Create(ctx context.Context, p model.Partnership) (model.Partnership, error)
	Update(ctx context.Context, p model.Partnership, expectStatus model.PartnershipStatus, expectVersion int64) (model.Partnership, error)
	Get(ctx context.Context, id string) (model.Partnership, error)
	ListIDsByEvent(ctx context.Context, eventID string) ([]string, error)
}

// PricingCache memoizes pricing summaries per partnership version.
type PricingCache interface {
	Get(ctx context.Context, key string) (cache.PricingEntry, bool)
	Set(ctx context.Context, key string, e cache.PricingEntry)
}

// DecisionNotifier announces committed decisions.
type DecisionNotifier interface {
	PublishDecision(ctx context.Context, ev queue.PartnershipDecisionEvent) error
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) owns(p model.Partnership) bool {
	return a.Role == model.RoleOrganizer || p.CreatedBy == a.UserID
}

// PartnershipView is a partnership together with the pack it is currently
// priced from.
type PartnershipView struct {
	ID        string                  `json:"id"`
	EventID   string                  `json:"event_id"`
	CompanyID string                  `json:"company_id"`
	Status    model.PartnershipStatus `json:"status"`
	Version   int64                   `json:"version"`
	Selected  *model.PackChoice       `json:"selected_pack"`
	Suggested *model.PackChoice       `json:"suggested_pack,omitempty"`
	Current   model.PricedPack        `json:"current_pack"`
	Process   model.ProcessStatus     `json:"process_status"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// PricingResult is a pricing summary and its entity tag.
type PricingResult struct {
	Pricing model.PartnershipPricing
	ETag    string
}

// PackOptionInput describes one option of a pack being authored.  When no
// translations are given, Name and Description are stored under the
// default language.
type PackOptionInput struct {
	model.OptionSpec
	Required     bool                           `json:"required"`
	Translations []repository.OptionTranslation `json:"translations" validate:"dive"`
}

// CreatePackInput describes a pack being authored.
type CreatePackInput struct {
	EventID   string            `json:"-"`
	Name      string            `json:"name" validate:"required"`
	BasePrice int64             `json:"base_price" validate:"gte=0"`
	Currency  string            `json:"currency" validate:"required,len=3"`
	Options   []PackOptionInput `json:"options" validate:"dive"`
}

// RegisterInput is a partner's registration for an event.
type RegisterInput struct {
	EventID    string              `json:"-"`
	CompanyID  string              `json:"company_id" validate:"required"`
	PackID     string              `json:"pack_id" validate:"required"`
	Selections model.SelectionList `json:"option_selections"`
}

// SuggestInput is an organizer's counter-proposal.
type SuggestInput struct {
	PackID     string              `json:"pack_id" validate:"required"`
	Selections model.SelectionList `json:"option_selections"`
}

// PartnershipService implements every partnership operation.  Cache and
// Notifier are optional.
type PartnershipService struct {
	Catalog         CatalogStore
	Partnerships    PartnershipStore
	Cache           PricingCache
	Notifier        DecisionNotifier
	DefaultLanguage string
	Now             func() time.Time

	pending sync.WaitGroup
}

// NewPartnershipService wires a service.  pricingCache and notifier may be
// nil.
func NewPartnershipService(catalog CatalogStore, partnerships PartnershipStore, pricingCache PricingCache, notifier DecisionNotifier, defaultLang string) *PartnershipService {
	return &PartnershipService{
		Catalog:         catalog,
		Partnerships:    partnerships,
		Cache:           pricingCache,
		Notifier:        notifier,
		DefaultLanguage: defaultLang,
		Now:             time.Now,
	}
}

// Wait blocks until every in-flight decision notification has finished.
func (s *PartnershipService) Wait() { s.pending.Wait() }

func (s *PartnershipService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "partnership."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CreatePack validates and stores a new pack for in.EventID and returns it
// as read back in the default language.
func (s *PartnershipService) CreatePack(ctx context.Context, actor Actor, in CreatePackInput) (pack model.SponsoringPack, err error) {
	ctx, span := startSpan(ctx, "CreatePack", attribute.String("event.id", in.EventID))
	defer func() { endSpan(span, err) }()

	if in.BasePrice < 0 {
		return model.SponsoringPack{}, fmt.Errorf("%w: base_price must not be negative", ErrInvalidInput)
	}
	pack = model.SponsoringPack{
		ID:        uuid.NewString(),
		EventID:   in.EventID,
		Name:      in.Name,
		BasePrice: in.BasePrice,
		Currency:  strings.ToUpper(in.Currency),
		CreatedAt: s.now().UTC(),
	}
	translations := make(map[string][]repository.OptionTranslation, len(in.Options))
	for i, oi := range in.Options {
		spec := oi.OptionSpec
		if spec.ID == "" {
			spec.ID = uuid.NewString()
		}
		if _, dup := translations[spec.ID]; dup {
			return model.SponsoringPack{}, fmt.Errorf("%w: option %q listed twice", ErrInvalidInput, spec.ID)
		}
		trs, err := s.optionTranslations(spec, oi.Translations)
		if err != nil {
			return model.SponsoringPack{}, err
		}
		opt, err := model.NewSponsoringOption(spec)
		if err != nil {
			return model.SponsoringPack{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		pack.Options = append(pack.Options, model.PackOption{Option: opt, Required: oi.Required, Position: i})
		translations[spec.ID] = trs
	}

	if err := s.Catalog.CreatePack(ctx, pack, actor.UserID, translations); err != nil {
		return model.SponsoringPack{}, err
	}
	return s.Catalog.GetPack(ctx, pack.ID, s.DefaultLanguage, s.DefaultLanguage)
}

func (s *PartnershipService) optionTranslations(spec model.OptionSpec, given []repository.OptionTranslation) ([]repository.OptionTranslation, error) {
	if len(given) == 0 {
		if strings.TrimSpace(spec.Name) == "" {
			return nil, fmt.Errorf("%w: option %q needs a name or translations", ErrInvalidInput, spec.ID)
		}
		return []repository.OptionTranslation{{Language: s.DefaultLanguage, Name: spec.Name, Description: spec.Description}}, nil
	}
	seen := make(map[string]bool, len(given))
	for _, tr := range given {
		lang := strings.ToLower(strings.TrimSpace(tr.Language))
		if lang == "" || strings.TrimSpace(tr.Name) == "" {
			return nil, fmt.Errorf("%w: option %q has a translation without language or name", ErrInvalidInput, spec.ID)
		}
		if seen[lang] {
			return nil, fmt.Errorf("%w: option %q has two %q translations", ErrInvalidInput, spec.ID, lang)
		}
		seen[lang] = true
	}
	return given, nil
}

// ListPacks returns the catalog of an event in lang.
func (s *PartnershipService) ListPacks(ctx context.Context, eventID, lang string) (packs []model.SponsoringPack, err error) {
	ctx, span := startSpan(ctx, "ListPacks", attribute.String("event.id", eventID))
	defer func() { endSpan(span, err) }()

	packs, err = s.Catalog.ListPacks(ctx, eventID, lang, s.DefaultLanguage)
	if err != nil {
		return nil, err
	}
	if packs == nil {
		packs = []model.SponsoringPack{}
	}
	return packs, nil
}

// Register creates a REGISTERED partnership owned by actor.
func (s *PartnershipService) Register(ctx context.Context, actor Actor, in RegisterInput, lang string) (view PartnershipView, err error) {
	ctx, span := startSpan(ctx, "Register", attribute.String("event.id", in.EventID), attribute.String("pack.id", in.PackID))
	defer func() { endSpan(span, err) }()

	pack, err := s.Catalog.GetPack(ctx, in.PackID, lang, s.DefaultLanguage)
	if err != nil {
		return PartnershipView{}, err
	}
	p, err := workflow.Register(workflow.NewPartnership{
		ID:        uuid.NewString(),
		EventID:   in.EventID,
		CompanyID: in.CompanyID,
		CreatedBy: actor.UserID,
	}, pack, in.Selections, s.now)
	if err != nil {
		return PartnershipView{}, err
	}
	created, err := s.Partnerships.Create(ctx, p)
	if err != nil {
		return PartnershipView{}, err
	}
	priced, err := workflow.Price(created, pack)
	if err != nil {
		return PartnershipView{}, err
	}
	return newView(created, priced), nil
}

// Get returns the partnership with its current priced pack.
func (s *PartnershipService) Get(ctx context.Context, actor Actor, id, lang string) (view PartnershipView, err error) {
	ctx, span := startSpan(ctx, "Get", attribute.String("partnership.id", id))
	defer func() { endSpan(span, err) }()

	p, err := s.load(ctx, actor, id)
	if err != nil {
		return PartnershipView{}, err
	}
	return s.view(ctx, p, lang)
}

// ListByEvent returns the partnerships of an event visible to actor.
func (s *PartnershipService) ListByEvent(ctx context.Context, actor Actor, eventID, lang string) (views []PartnershipView, err error) {
	ctx, span := startSpan(ctx, "ListByEvent", attribute.String("event.id", eventID))
	defer func() { endSpan(span, err) }()

	ids, err := s.Partnerships.ListIDsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	views = make([]PartnershipView, 0, len(ids))
	for _, id := range ids {
		p, err := s.Partnerships.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !actor.owns(p) {
			continue
		}
		v, err := s.view(ctx, p, lang)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// UpdateSelections replaces the partner's selections on a REGISTERED
// partnership.
func (s *PartnershipService) UpdateSelections(ctx context.Context, actor Actor, id string, selections []model.OptionSelection, lang string) (view PartnershipView, err error) {
	ctx, span := startSpan(ctx, "UpdateSelections", attribute.String("partnership.id", id))
	defer func() { endSpan(span, err) }()

	saved, err := s.mutate(ctx, actor, id, "update selections", 0, func(p model.Partnership) (model.Partnership, error) {
		if p.Selected == nil {
			return model.Partnership{}, fmt.Errorf("%w: partnership %s has no selected pack", workflow.ErrPackMismatch, p.ID)
		}
		pack, err := s.Catalog.GetPack(ctx, p.Selected.PackID, lang, s.DefaultLanguage)
		if err != nil {
			return model.Partnership{}, err
		}
		return workflow.UpdateSelections(p, pack, selections, s.now)
	})
	if err != nil {
		return PartnershipView{}, err
	}
	return s.view(ctx, saved, lang)
}

// Pricing returns the pricing summary of the partnership's current pack.
func (s *PartnershipService) Pricing(ctx context.Context, actor Actor, id, lang string) (res PricingResult, err error) {
	ctx, span := startSpan(ctx, "Pricing", attribute.String("partnership.id", id))
	defer func() { endSpan(span, err) }()

	p, err := s.load(ctx, actor, id)
	if err != nil {
		return PricingResult{}, err
	}
	return s.pricingOf(ctx, p, lang)
}

// Billing returns the pricing summary used for invoicing.  Only VALIDATED
// partnerships can be billed.
func (s *PartnershipService) Billing(ctx context.Context, actor Actor, id, lang string) (res PricingResult, err error) {
	ctx, span := startSpan(ctx, "Billing", attribute.String("partnership.id", id))
	defer func() { endSpan(span, err) }()

	p, err := s.load(ctx, actor, id)
	if err != nil {
		return PricingResult{}, err
	}
	if p.Status != model.StatusValidated {
		return PricingResult{}, &workflow.ConflictError{Status: p.Status, Op: "billing"}
	}
	return s.pricingOf(ctx, p, lang)
}

// Suggest records an organizer's alternate pack and selections.
func (s *PartnershipService) Suggest(ctx context.Context, actor Actor, id string, in SuggestInput, lang string) (view PartnershipView, err error) {
	ctx, span := startSpan(ctx, "Suggest", attribute.String("partnership.id", id), attribute.String("pack.id", in.PackID))
	defer func() { endSpan(span, err) }()

	pack, err := s.Catalog.GetPack(ctx, in.PackID, lang, s.DefaultLanguage)
	if err != nil {
		return PartnershipView{}, err
	}
	saved, err := s.mutate(ctx, actor, id, "suggest", 0, func(p model.Partnership) (model.Partnership, error) {
		return workflow.Suggest(p, pack, in.Selections, s.now)
	})
	if err != nil {
		return PartnershipView{}, err
	}
	s.notify(actor, queue.DecisionSuggested, saved)
	priced, err := workflow.Price(saved, pack)
	if err != nil {
		return PartnershipView{}, err
	}
	return newView(saved, priced), nil
}

// Validate freezes the partnership's current pack into its priced snapshot.
// Labels are frozen in the default language.
//
// version must equal the stored partnership version, otherwise a
// *workflow.ConflictError is returned.
func (s *PartnershipService) Validate(ctx context.Context, actor Actor, id string, version int64) (view PartnershipView, err error) {
	ctx, span := startSpan(ctx, "Validate", attribute.String("partnership.id", id))
	defer func() { endSpan(span, err) }()

	if version < 1 {
		return PartnershipView{}, ErrVersionRequired
	}
	saved, err := s.mutate(ctx, actor, id, "validate", version, func(p model.Partnership) (model.Partnership, error) {
		catalog, err := s.catalogFor(ctx, p, s.DefaultLanguage)
		if err != nil {
			return model.Partnership{}, err
		}
		return workflow.Validate(p, catalog, s.now)
	})
	if err != nil {
		return PartnershipView{}, err
	}
	s.notify(actor, queue.DecisionValidated, saved)
	return newView(saved, *saved.Validated.Clone()), nil
}

// Decline ends the partnership.  version is required as for Validate.
func (s *PartnershipService) Decline(ctx context.Context, actor Actor, id string, version int64, lang string) (view PartnershipView, err error) {
	if version < 1 {
		return PartnershipView{}, ErrVersionRequired
	}
	return s.simpleDecision(ctx, actor, id, lang, version, "Decline", "decline", queue.DecisionDeclined, workflow.Decline)
}

// ApproveSuggestion records the partner's approval of a pending suggestion.
func (s *PartnershipService) ApproveSuggestion(ctx context.Context, actor Actor, id, lang string) (view PartnershipView, err error) {
	return s.simpleDecision(ctx, actor, id, lang, 0, "ApproveSuggestion", "approve suggestion", queue.DecisionSuggestionApproved, workflow.ApproveSuggestion)
}

// DeclineSuggestion records the partner's refusal of a pending suggestion.
func (s *PartnershipService) DeclineSuggestion(ctx context.Context, actor Actor, id, lang string) (view PartnershipView, err error) {
	return s.simpleDecision(ctx, actor, id, lang, 0, "DeclineSuggestion", "decline suggestion", queue.DecisionSuggestionDeclined, workflow.DeclineSuggestion)
}

// SignAgreement stamps the signed agreement on a VALIDATED partnership.
func (s *PartnershipService) SignAgreement(ctx context.Context, actor Actor, id, lang string) (view PartnershipView, err error) {
	return s.simpleDecision(ctx, actor, id, lang, 0, "SignAgreement", "sign agreement", queue.DecisionAgreementSigned, workflow.SignAgreement)
}

func (s *PartnershipService) simpleDecision(ctx context.Context, actor Actor, id, lang string, version int64, spanName, op, decision string,
	apply func(model.Partnership, func() time.Time) (model.Partnership, error)) (view PartnershipView, err error) {
	ctx, span := startSpan(ctx, spanName, attribute.String("partnership.id", id))
	defer func() { endSpan(span, err) }()

	saved, err := s.mutate(ctx, actor, id, op, version, func(p model.Partnership) (model.Partnership, error) {
		return apply(p, s.now)
	})
	if err != nil {
		return PartnershipView{}, err
	}
	s.notify(actor, decision, saved)
	return s.view(ctx, saved, lang)
}

// ApplyOverrides applies an organizer price override request and returns the
// resulting pricing summary.
func (s *PartnershipService) ApplyOverrides(ctx context.Context, actor Actor, id string, req pricing.OverrideRequest, lang string) (res PricingResult, err error) {
	ctx, span := startSpan(ctx, "ApplyOverrides", attribute.String("partnership.id", id))
	defer func() { endSpan(span, err) }()

	saved, err := s.mutate(ctx, actor, id, "override prices", 0, func(p model.Partnership) (model.Partnership, error) {
		catalog, err := s.catalogFor(ctx, p, lang)
		if err != nil {
			return model.Partnership{}, err
		}
		return workflow.ApplyOverrides(p, catalog, req, s.now)
	})
	if err != nil {
		return PricingResult{}, err
	}
	return s.pricingOf(ctx, saved, lang)
}

func (s *PartnershipService) load(ctx context.Context, actor Actor, id string) (model.Partnership, error) {
	p, err := s.Partnerships.Get(ctx, id)
	if err != nil {
		return model.Partnership{}, err
	}
	if !actor.owns(p) {
		return model.Partnership{}, repository.ErrForbidden
	}
	return p, nil
}

// mutate loads the partnership, applies fn and stores the result with a
// compare-and-set on the status and version that were read.  A positive
// version must match the stored one.
func (s *PartnershipService) mutate(ctx context.Context, actor Actor, id, op string, version int64, fn func(model.Partnership) (model.Partnership, error)) (model.Partnership, error) {
	p, err := s.load(ctx, actor, id)
	if err != nil {
		return model.Partnership{}, err
	}
	if version > 0 && p.Version != version {
		return model.Partnership{}, &workflow.ConflictError{Status: p.Status, Op: op,
			Reason: fmt.Sprintf("partnership is at version %d, not %d", p.Version, version)}
	}
	next, err := fn(p)
	if err != nil {
		return model.Partnership{}, err
	}
	saved, err := s.Partnerships.Update(ctx, next, p.Status, p.Version)
	if errors.Is(err, repository.ErrConflict) {
		status := p.Status
		if fresh, ferr := s.Partnerships.Get(ctx, id); ferr == nil {
			status = fresh.Status
		}
		return model.Partnership{}, &workflow.ConflictError{Status: status, Op: op, Reason: "partnership was modified concurrently"}
	}
	if err != nil {
		return model.Partnership{}, err
	}
	return saved, nil
}

// catalogFor loads the catalog pack p is priced against, or returns the
// zero pack when p is priced from its snapshot.
func (s *PartnershipService) catalogFor(ctx context.Context, p model.Partnership, lang string) (model.SponsoringPack, error) {
	packID := workflow.CatalogPackID(p)
	if packID == "" {
		return model.SponsoringPack{}, nil
	}
	return s.Catalog.GetPack(ctx, packID, lang, s.DefaultLanguage)
}

func (s *PartnershipService) currentPack(ctx context.Context, p model.Partnership, lang string) (model.PricedPack, error) {
	catalog, err := s.catalogFor(ctx, p, lang)
	if err != nil {
		return model.PricedPack{}, err
	}
	return workflow.Price(p, catalog)
}

func (s *PartnershipService) view(ctx context.Context, p model.Partnership, lang string) (PartnershipView, error) {
	priced, err := s.currentPack(ctx, p, lang)
	if err != nil {
		return PartnershipView{}, err
	}
	return newView(p, priced), nil
}

func newView(p model.Partnership, priced model.PricedPack) PartnershipView {
	return PartnershipView{
		ID:        p.ID,
		EventID:   p.EventID,
		CompanyID: p.CompanyID,
		Status:    p.Status,
		Version:   p.Version,
		Selected:  p.Selected,
		Suggested: p.Suggested,
		Current:   priced,
		Process:   p.Process,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (s *PartnershipService) pricingOf(ctx context.Context, p model.Partnership, lang string) (PricingResult, error) {
	key := cache.Key(p.ID, p.Version, strings.ToLower(lang))
	if s.Cache != nil {
		if e, ok := s.Cache.Get(ctx, key); ok {
			return PricingResult(e), nil
		}
	}
	priced, err := s.currentPack(ctx, p, lang)
	if err != nil {
		return PricingResult{}, err
	}
	summary := pricing.BuildPricing(p.EventID, p.ID, priced)
	etag, err := pricing.Digest(summary)
	if err != nil {
		return PricingResult{}, err
	}
	res := PricingResult{Pricing: summary, ETag: etag}
	if s.Cache != nil {
		s.Cache.Set(ctx, key, cache.PricingEntry(res))
	}
	return res, nil
}

// notify publishes a decision in the background.  The request that caused it
// has already been answered; failures are only logged.
func (s *PartnershipService) notify(actor Actor, decision string, p model.Partnership) {
	if s.Notifier == nil {
		return
	}
	ev := queue.PartnershipDecisionEvent{
		PartnershipID: p.ID,
		EventID:       p.EventID,
		CompanyID:     p.CompanyID,
		Decision:      decision,
		Status:        string(p.Status),
		ActorID:       actor.UserID,
		OccurredAt:    p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if priced, err := s.currentPack(ctx, p, s.DefaultLanguage); err == nil {
			summary := pricing.BuildPricing(p.EventID, p.ID, priced)
			ev.PackID = priced.Pack.ID
			ev.PackName = summary.PackName
			ev.TotalAmount = summary.TotalAmount
			ev.Currency = summary.Currency
		} else {
			log.Printf("partnership-service: price %s for %s event: %v", p.ID, decision, err)
		}
		if err := s.Notifier.PublishDecision(ctx, ev); err != nil {
			log.Printf("partnership-service: publish %s for %s: %v", decision, p.ID, err)
		}
	}()
}
