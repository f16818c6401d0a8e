package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sponsorship-partnerships/internal/service"
)

// CatalogHandler serves the public pack catalog.
type CatalogHandler struct {
	Svc *service.PartnershipService
}

func NewCatalogHandler(svc *service.PartnershipService) *CatalogHandler {
	return &CatalogHandler{Svc: svc}
}

// ListPacks: GET /v1/events/:event_id/packs
func (h *CatalogHandler) ListPacks(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	packs, err := h.Svc.ListPacks(ctx, c.Param("event_id"), requestLanguage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"packs": packs})
}
