package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sponsorship-partnerships/internal/model"
	"github.com/iliyamo/sponsorship-partnerships/internal/pricing"
	"github.com/iliyamo/sponsorship-partnerships/internal/repository"
	"github.com/iliyamo/sponsorship-partnerships/internal/service"
	"github.com/iliyamo/sponsorship-partnerships/internal/workflow"
)

type optionErrorDetail struct {
	OptionID string       `json:"option_id"`
	Code     pricing.Code `json:"code"`
	Message  string       `json:"message"`
}

// respondError maps service errors onto HTTP responses:
//
//	selection/override validation -> 400 with per-option details
//	bad input                     -> 400
//	missing If-Match version      -> 428
//	unknown pack or partnership   -> 404
//	not the owner                 -> 403
//	state or version conflict     -> 409 with the current status
//	anything else                 -> 500
func respondError(c echo.Context, err error) error {
	var (
		verrs    pricing.ValidationErrors
		optErr   *pricing.OptionError
		conflict *workflow.ConflictError
	)
	switch {
	case errors.As(err, &verrs):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "option validation failed", "details": details(verrs)})
	case errors.As(err, &optErr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "option validation failed", "details": details(pricing.ValidationErrors{optErr})})
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, model.ErrInvalidDescriptor),
		errors.Is(err, model.ErrUnknownSelectionType),
		errors.Is(err, workflow.ErrPackMismatch):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrVersionRequired):
		return c.JSON(http.StatusPreconditionRequired, echo.Map{"error": "If-Match with the partnership version is required"})
	case errors.Is(err, repository.ErrPackNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "pack not found"})
	case errors.Is(err, repository.ErrPartnershipNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "partnership not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": conflict.Error(), "status": conflict.Status})
	case errors.Is(err, workflow.ErrConflict), errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrDuplicateID):
		return c.JSON(http.StatusConflict, echo.Map{"error": "id already in use"})
	}
	log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func details(verrs pricing.ValidationErrors) []optionErrorDetail {
	out := make([]optionErrorDetail, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, optionErrorDetail{OptionID: e.OptionID, Code: e.Code, Message: e.Message})
	}
	return out
}
