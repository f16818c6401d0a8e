package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sponsorship-partnerships/internal/model"
	"github.com/iliyamo/sponsorship-partnerships/internal/service"
)

// PartnerHandler serves the partner side of a partnership.
type PartnerHandler struct {
	Svc *service.PartnershipService
}

func NewPartnerHandler(svc *service.PartnershipService) *PartnerHandler {
	return &PartnerHandler{Svc: svc}
}

type selectionsReq struct {
	Selections model.SelectionList `json:"option_selections"`
}

// Register: POST /v1/events/:event_id/partnerships
func (h *PartnerHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}
	req.EventID = c.Param("event_id")

	ctx, cancel := requestContext(c)
	defer cancel()

	view, err := h.Svc.Register(ctx, actorFrom(c), req, requestLanguage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, view)
}

// Get: GET /v1/partnerships/:id
func (h *PartnerHandler) Get(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	view, err := h.Svc.Get(ctx, actorFrom(c), c.Param("id"), requestLanguage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// UpdateSelections: PUT /v1/partnerships/:id/selections
func (h *PartnerHandler) UpdateSelections(c echo.Context) error {
	var req selectionsReq
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	view, err := h.Svc.UpdateSelections(ctx, actorFrom(c), c.Param("id"), req.Selections, requestLanguage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Pricing: GET /v1/partnerships/:id/pricing
func (h *PartnerHandler) Pricing(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Svc.Pricing(ctx, actorFrom(c), c.Param("id"), requestLanguage(c))
	if err != nil {
		return respondError(c, err)
	}
	return writePricing(c, res)
}

// ApproveSuggestion: POST /v1/partnerships/:id/suggestion/approve
func (h *PartnerHandler) ApproveSuggestion(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	view, err := h.Svc.ApproveSuggestion(ctx, actorFrom(c), c.Param("id"), requestLanguage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// DeclineSuggestion: POST /v1/partnerships/:id/suggestion/decline
func (h *PartnerHandler) DeclineSuggestion(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	view, err := h.Svc.DeclineSuggestion(ctx, actorFrom(c), c.Param("id"), requestLanguage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}
