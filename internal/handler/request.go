package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/language"

	"github.com/iliyamo/sponsorship-partnerships/internal/middleware"
	"github.com/iliyamo/sponsorship-partnerships/internal/service"
)

const requestTimeout = 5 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func actorFrom(c echo.Context) service.Actor {
	return service.Actor{UserID: middleware.UserID(c), Role: middleware.Role(c)}
}

// requestLanguage returns the preferred tag of the Accept-Language header,
// or "" when the header is missing or malformed.
func requestLanguage(c echo.Context) string {
	tags, _, err := language.ParseAcceptLanguage(c.Request().Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return ""
	}
	return strings.ToLower(tags[0].String())
}

// ifMatchVersion reads the partnership version from If-Match.  A missing
// header yields 0, which the service rejects as a missing precondition.
func ifMatchVersion(c echo.Context) (int64, bool) {
	raw := strings.TrimSpace(c.Request().Header.Get("If-Match"))
	if raw == "" {
		return 0, true
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return 0, false
	}
	return v, true
}

// etagMatches reports whether an If-None-Match header names etag.  Weak
// validators compare equal to their strong form.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}

// writePricing sends a pricing summary with its ETag and honours
// If-None-Match.
func writePricing(c echo.Context, res service.PricingResult) error {
	c.Response().Header().Set("ETag", res.ETag)
	if match := c.Request().Header.Get("If-None-Match"); match != "" && etagMatches(match, res.ETag) {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSON(http.StatusOK, res.Pricing)
}
