package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sponsorship-partnerships/internal/pricing"
	"github.com/iliyamo/sponsorship-partnerships/internal/service"
)

// OrganizerHandler serves pack authoring and the organizer's decisions.
// InvalidateCatalog, when set, is called after a pack is created so that
// cached catalog responses for the event are dropped.
type OrganizerHandler struct {
	Svc               *service.PartnershipService
	InvalidateCatalog func(ctx context.Context, eventID string)
}

func NewOrganizerHandler(svc *service.PartnershipService) *OrganizerHandler {
	return &OrganizerHandler{Svc: svc}
}

// CreatePack: POST /v1/organizer/events/:event_id/packs
func (h *OrganizerHandler) CreatePack(c echo.Context) error {
	var req service.CreatePackInput
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}
	req.EventID = c.Param("event_id")

	ctx, cancel := requestContext(c)
	defer cancel()

	pack, err := h.Svc.CreatePack(ctx, actorFrom(c), req)
	if err != nil {
		return respondError(c, err)
	}
	if h.InvalidateCatalog != nil {
		h.InvalidateCatalog(ctx, req.EventID)
	}
	return c.JSON(http.StatusCreated, pack)
}

// ListByEvent: GET /v1/organizer/events/:event_id/partnerships
func (h *OrganizerHandler) ListByEvent(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	views, err := h.Svc.ListByEvent(ctx, actorFrom(c), c.Param("event_id"), requestLanguage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"partnerships": views})
}

// Get: GET /v1/organizer/partnerships/:id
func (h *OrganizerHandler) Get(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	view, err := h.Svc.Get(ctx, actorFrom(c), c.Param("id"), requestLanguage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Pricing: GET /v1/organizer/partnerships/:id/pricing
func (h *OrganizerHandler) Pricing(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Svc.Pricing(ctx, actorFrom(c), c.Param("id"), requestLanguage(c))
	if err != nil {
		return respondError(c, err)
	}
	return writePricing(c, res)
}

// Billing: GET /v1/organizer/partnerships/:id/billing
func (h *OrganizerHandler) Billing(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Svc.Billing(ctx, actorFrom(c), c.Param("id"), requestLanguage(c))
	if err != nil {
		return respondError(c, err)
	}
	return writePricing(c, res)
}

// Suggest: POST /v1/organizer/partnerships/:id/suggest
func (h *OrganizerHandler) Suggest(c echo.Context) error {
	var req service.SuggestInput
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	view, err := h.Svc.Suggest(ctx, actorFrom(c), c.Param("id"), req, requestLanguage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Validate: POST /v1/organizer/partnerships/:id/validate
func (h *OrganizerHandler) Validate(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	version, ok := ifMatchVersion(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "If-Match must be a partnership version"})
	}
	view, err := h.Svc.Validate(ctx, actorFrom(c), c.Param("id"), version)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Decline: POST /v1/organizer/partnerships/:id/decline
func (h *OrganizerHandler) Decline(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	version, ok := ifMatchVersion(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "If-Match must be a partnership version"})
	}
	view, err := h.Svc.Decline(ctx, actorFrom(c), c.Param("id"), version, requestLanguage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// ApplyOverrides: PUT /v1/organizer/partnerships/:id/pricing
func (h *OrganizerHandler) ApplyOverrides(c echo.Context) error {
	var req pricing.OverrideRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Svc.ApplyOverrides(ctx, actorFrom(c), c.Param("id"), req, requestLanguage(c))
	if err != nil {
		return respondError(c, err)
	}
	return writePricing(c, res)
}

// SignAgreement: POST /v1/organizer/partnerships/:id/agreement/signed
func (h *OrganizerHandler) SignAgreement(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	view, err := h.Svc.SignAgreement(ctx, actorFrom(c), c.Param("id"), requestLanguage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}
