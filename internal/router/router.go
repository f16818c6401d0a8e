// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sponsorship-partnerships/internal/handler"
	"github.com/iliyamo/sponsorship-partnerships/internal/middleware"
	"github.com/iliyamo/sponsorship-partnerships/internal/model"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the auth endpoints.  Register, login, refresh and
// logout live under /v1/auth; /v1/me needs a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)              // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess) // keeps it
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOrganizer, model.RolePartner),
	)
	auth.GET("/me", a.Me)
}

// RegisterCatalog exposes the public pack catalog.  cache fronts it with
// the Redis response cache.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/events/:event_id/packs", h.ListPacks, cache)
}

// RegisterPartner registers PARTNER-scoped endpoints under /v1.
func RegisterPartner(e *echo.Echo, p *handler.PartnerHandler, jwtSecret string) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RolePartner),
	)

	g.POST("/events/:event_id/partnerships", p.Register)
	g.GET("/partnerships/:id", p.Get)
	g.PUT("/partnerships/:id/selections", p.UpdateSelections)
	g.GET("/partnerships/:id/pricing", p.Pricing)
	g.POST("/partnerships/:id/suggestion/approve", p.ApproveSuggestion)
	g.POST("/partnerships/:id/suggestion/decline", p.DeclineSuggestion)
}

// RegisterOrganizer registers ORGANIZER-scoped endpoints under
// /v1/organizer.
func RegisterOrganizer(e *echo.Echo, o *handler.OrganizerHandler, jwtSecret string) {
	g := e.Group("/v1/organizer",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOrganizer),
	)

	// ---- Catalog ----
	g.POST("/events/:event_id/packs", o.CreatePack)

	// ---- Partnerships ----
	g.GET("/events/:event_id/partnerships", o.ListByEvent)
	g.GET("/partnerships/:id", o.Get)
	g.GET("/partnerships/:id/pricing", o.Pricing)
	g.PUT("/partnerships/:id/pricing", o.ApplyOverrides)
	g.GET("/partnerships/:id/billing", o.Billing)

	// ---- Decisions ----
	g.POST("/partnerships/:id/suggest", o.Suggest)
	g.POST("/partnerships/:id/validate", o.Validate)
	g.POST("/partnerships/:id/decline", o.Decline)
	g.POST("/partnerships/:id/agreement/signed", o.SignAgreement)
}
