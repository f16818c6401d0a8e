package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sponsorship-partnerships/internal/config"
	"github.com/iliyamo/sponsorship-partnerships/internal/database"
	"github.com/iliyamo/sponsorship-partnerships/internal/handler"
	"github.com/iliyamo/sponsorship-partnerships/internal/repository"
	"github.com/iliyamo/sponsorship-partnerships/internal/service"
)

const testSecret = "router-test-secret"

type api struct {
	t   *testing.T
	e   *echo.Echo
	svc *service.PartnershipService
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: 4, DefaultLanguage: "en"}
	svc := service.NewPartnershipService(repository.NewCatalogRepo(db), repository.NewPartnershipRepo(db), nil, nil, "en")

	e := echo.New()
	e.Validator = handler.NewRequestValidator()
	RegisterRoutes(e)
	RegisterAuth(e, handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db)), testSecret)
	RegisterCatalog(e, handler.NewCatalogHandler(svc), func(next echo.HandlerFunc) echo.HandlerFunc { return next })
	RegisterPartner(e, handler.NewPartnerHandler(svc), testSecret)
	RegisterOrganizer(e, handler.NewOrganizerHandler(svc), testSecret)
	return &api{t: t, e: e, svc: svc}
}

func (a *api) do(method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *api) decode(rec *httptest.ResponseRecorder, v interface{}) {
	a.t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		a.t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

// signup registers a user and returns its access token.
func (a *api) signup(email, role string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/v1/auth/register", "",
		`{"email":"`+email+`","password":"correct-horse","role":"`+role+`"}`)
	if rec.Code != http.StatusCreated {
		a.t.Fatalf("register %s: %d %s", email, rec.Code, rec.Body.String())
	}
	var out struct {
		Access struct {
			Token string `json:"token"`
		} `json:"access"`
	}
	a.decode(rec, &out)
	return out.Access.Token
}

// version returns the current partnership version as an If-Match value.
func (a *api) version(id, token string) string {
	a.t.Helper()
	rec := a.do(http.MethodGet, "/v1/organizer/partnerships/"+id, token, "")
	var out struct {
		Version int64 `json:"version"`
	}
	a.decode(rec, &out)
	if rec.Code != http.StatusOK || out.Version < 1 {
		a.t.Fatalf("get %s: %d %s", id, rec.Code, rec.Body.String())
	}
	return strconv.FormatInt(out.Version, 10)
}

const packBody = `{
	"name": "Gold", "base_price": 100000, "currency": "eur",
	"options": [
		{"id": "logo", "name": "Logo", "description": "Logo on website", "type": "text", "required": true},
		{"id": "jobs", "name": "Jobs", "description": "Job offers", "type": "typed_quantitative", "type_descriptor": "job_offer", "price": 50000},
		{"id": "tickets", "type": "typed_number", "type_descriptor": "nb_ticket", "fixed_quantity": 4, "price": 2000, "required": true,
		 "translations": [{"language": "en", "name": "Tickets"}, {"language": "fr", "name": "Billets"}]},
		{"id": "booth", "name": "Booth", "type": "typed_selectable", "type_descriptor": "booth_size",
		 "selectable_values": [{"id": "a", "value": "Small", "price": 10000}, {"id": "b", "value": "Large", "price": 30000}]}
	]
}`

const registerBody = `{
	"company_id": "acme", "pack_id": "%PACK%",
	"option_selections": [
		{"type": "quantitative_selection", "option_id": "jobs", "selected_quantity": 2},
		{"type": "selectable_selection", "option_id": "booth", "selected_value_id": "b"}
	]
}`

func TestHealth(t *testing.T) {
	a := newAPI(t)
	if rec := a.do(http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t)
	token := a.signup("Org@Example.com", "organizer")

	rec := a.do(http.MethodGet, "/v1/me", token, "")
	var me struct {
		Role string `json:"role"`
	}
	a.decode(rec, &me)
	if rec.Code != http.StatusOK || me.Role != "ORGANIZER" {
		t.Fatalf("me = %d %s", rec.Code, rec.Body.String())
	}

	if rec := a.do(http.MethodPost, "/v1/auth/register", "", `{"email":"org@example.com","password":"correct-horse"}`); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register = %d", rec.Code)
	}
	if rec := a.do(http.MethodPost, "/v1/auth/register", "", `{"email":"not-an-email","password":"correct-horse"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad email = %d", rec.Code)
	}
	if rec := a.do(http.MethodPost, "/v1/auth/login", "", `{"email":"org@example.com","password":"wrong"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", rec.Code)
	}

	rec = a.do(http.MethodPost, "/v1/auth/login", "", `{"email":"org@example.com","password":"correct-horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d %s", rec.Code, rec.Body.String())
	}
	var pair struct {
		Refresh struct {
			Token string `json:"token"`
		} `json:"refresh"`
	}
	a.decode(rec, &pair)

	body := `{"refresh_token":"` + pair.Refresh.Token + `"}`
	if rec := a.do(http.MethodPost, "/v1/auth/refresh-access", "", body); rec.Code != http.StatusOK {
		t.Fatalf("refresh-access = %d", rec.Code)
	}
	if rec := a.do(http.MethodPost, "/v1/auth/refresh", "", body); rec.Code != http.StatusOK {
		t.Fatalf("refresh = %d", rec.Code)
	}
	// rotated: the old refresh token is gone
	if rec := a.do(http.MethodPost, "/v1/auth/refresh", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh = %d", rec.Code)
	}
	if rec := a.do(http.MethodPost, "/v1/auth/logout", token, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("logout = %d", rec.Code)
	}
}

func TestRoleGates(t *testing.T) {
	a := newAPI(t)
	partner := a.signup("p@example.com", "PARTNER")
	org := a.signup("o@example.com", "ORGANIZER")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/v1/partnerships/x", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/v1/partnerships/x", "nope", http.StatusUnauthorized},
		{"partner on organizer route", http.MethodPost, "/v1/organizer/events/devconf/packs", partner, http.StatusForbidden},
		{"organizer on partner route", http.MethodGet, "/v1/partnerships/x", org, http.StatusForbidden},
		{"unknown partnership", http.MethodGet, "/v1/organizer/partnerships/x", org, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := a.do(tt.method, tt.path, tt.token, ""); rec.Code != tt.want {
				t.Fatalf("code = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestPartnershipLifecycle(t *testing.T) {
	a := newAPI(t)
	t.Cleanup(a.svc.Wait)
	org := a.signup("o@example.com", "ORGANIZER")
	partner := a.signup("p@example.com", "PARTNER")
	other := a.signup("q@example.com", "PARTNER")

	rec := a.do(http.MethodPost, "/v1/organizer/events/devconf/packs", org, packBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create pack = %d %s", rec.Code, rec.Body.String())
	}
	var pack struct {
		ID       string `json:"id"`
		Currency string `json:"currency"`
	}
	a.decode(rec, &pack)
	if pack.Currency != "EUR" {
		t.Fatalf("pack = %s", rec.Body.String())
	}

	rec = a.do(http.MethodGet, "/v1/events/devconf/packs", "", "", "Accept-Language", "fr-CA, fr;q=0.9, en;q=0.5")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Billets") {
		t.Fatalf("catalog = %d %s", rec.Code, rec.Body.String())
	}

	rec = a.do(http.MethodPost, "/v1/events/devconf/partnerships", partner, strings.Replace(registerBody, "%PACK%", pack.ID, 1))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register = %d %s", rec.Code, rec.Body.String())
	}
	var view struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	a.decode(rec, &view)
	if view.Status != "REGISTERED" {
		t.Fatalf("status = %s", view.Status)
	}
	base := "/v1/partnerships/" + view.ID

	rec = a.do(http.MethodGet, base+"/pricing", partner, "")
	etag := rec.Header().Get("ETag")
	var summary struct {
		TotalAmount int64 `json:"total_amount"`
	}
	a.decode(rec, &summary)
	if rec.Code != http.StatusOK || etag == "" || summary.TotalAmount != 238000 {
		t.Fatalf("pricing = %d %q %s", rec.Code, etag, rec.Body.String())
	}
	if rec := a.do(http.MethodGet, base+"/pricing", partner, "", "If-None-Match", etag); rec.Code != http.StatusNotModified {
		t.Fatalf("conditional pricing = %d", rec.Code)
	}
	if rec := a.do(http.MethodGet, base, other, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign partner = %d", rec.Code)
	}

	rec = a.do(http.MethodPut, base+"/selections", partner,
		`{"option_selections":[{"type":"text_selection","option_id":"jobs"},{"type":"quantitative_selection","option_id":"ghost","selected_quantity":1}]}`)
	var failed struct {
		Details []struct {
			OptionID string `json:"option_id"`
			Code     string `json:"code"`
		} `json:"details"`
	}
	a.decode(rec, &failed)
	if rec.Code != http.StatusBadRequest || len(failed.Details) != 2 {
		t.Fatalf("bad selections = %d %s", rec.Code, rec.Body.String())
	}
	if rec := a.do(http.MethodPut, base+"/selections", partner, `{"option_selections":[{"type":"bogus","option_id":"jobs"}]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown selection type = %d", rec.Code)
	}

	orgBase := "/v1/organizer/partnerships/" + view.ID
	rec = a.do(http.MethodGet, orgBase+"/billing", org, "")
	var conflict struct {
		Status string `json:"status"`
	}
	a.decode(rec, &conflict)
	if rec.Code != http.StatusConflict || conflict.Status != "REGISTERED" {
		t.Fatalf("billing before validate = %d %s", rec.Code, rec.Body.String())
	}

	if rec := a.do(http.MethodPut, orgBase+"/pricing", org, `{"pack_price_override":-1}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("negative override = %d %s", rec.Code, rec.Body.String())
	}
	rec = a.do(http.MethodPut, orgBase+"/pricing", org, `{"pack_price_override":130000}`)
	a.decode(rec, &summary)
	if rec.Code != http.StatusOK || summary.TotalAmount != 268000 || rec.Header().Get("ETag") == etag {
		t.Fatalf("override = %d %s", rec.Code, rec.Body.String())
	}

	if rec := a.do(http.MethodPost, orgBase+"/validate", org, ""); rec.Code != http.StatusPreconditionRequired {
		t.Fatalf("validate without If-Match = %d %s", rec.Code, rec.Body.String())
	}
	if rec := a.do(http.MethodPost, orgBase+"/validate", org, "", "If-Match", "latest"); rec.Code != http.StatusBadRequest {
		t.Fatalf("validate with bad If-Match = %d %s", rec.Code, rec.Body.String())
	}
	current := a.version(view.ID, org)
	if rec := a.do(http.MethodPost, orgBase+"/validate", org, "", "If-Match", `"`+current+`"`); rec.Code != http.StatusOK {
		t.Fatalf("validate = %d %s", rec.Code, rec.Body.String())
	}
	rec = a.do(http.MethodPost, orgBase+"/decline", org, "", "If-Match", current)
	a.decode(rec, &conflict)
	if rec.Code != http.StatusConflict || conflict.Status != "VALIDATED" {
		t.Fatalf("decline on stale version = %d %s", rec.Code, rec.Body.String())
	}
	if rec := a.do(http.MethodPost, orgBase+"/validate", org, "", "If-Match", a.version(view.ID, org)); rec.Code != http.StatusConflict {
		t.Fatalf("second validate = %d", rec.Code)
	}
	rec = a.do(http.MethodGet, orgBase+"/billing", org, "")
	a.decode(rec, &summary)
	if rec.Code != http.StatusOK || summary.TotalAmount != 268000 {
		t.Fatalf("billing = %d %s", rec.Code, rec.Body.String())
	}
	if rec := a.do(http.MethodPost, orgBase+"/agreement/signed", org, ""); rec.Code != http.StatusOK {
		t.Fatalf("sign = %d %s", rec.Code, rec.Body.String())
	}

	rec = a.do(http.MethodGet, "/v1/organizer/events/devconf/partnerships", org, "")
	var list struct {
		Partnerships []struct {
			ID string `json:"id"`
		} `json:"partnerships"`
	}
	a.decode(rec, &list)
	if rec.Code != http.StatusOK || len(list.Partnerships) != 1 || list.Partnerships[0].ID != view.ID {
		t.Fatalf("list = %d %s", rec.Code, rec.Body.String())
	}
}

func TestSuggestionOverHTTP(t *testing.T) {
	a := newAPI(t)
	t.Cleanup(a.svc.Wait)
	org := a.signup("o@example.com", "ORGANIZER")
	partner := a.signup("p@example.com", "PARTNER")

	rec := a.do(http.MethodPost, "/v1/organizer/events/devconf/packs", org, packBody)
	var pack struct {
		ID string `json:"id"`
	}
	a.decode(rec, &pack)
	rec = a.do(http.MethodPost, "/v1/events/devconf/partnerships", partner, strings.Replace(registerBody, "%PACK%", pack.ID, 1))
	var view struct {
		ID string `json:"id"`
	}
	a.decode(rec, &view)

	if rec := a.do(http.MethodPost, "/v1/organizer/partnerships/"+view.ID+"/suggest", org, `{"option_selections":[]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("suggest without pack = %d", rec.Code)
	}
	rec = a.do(http.MethodPost, "/v1/organizer/partnerships/"+view.ID+"/suggest", org,
		`{"pack_id":"`+pack.ID+`","option_selections":[{"type":"quantitative_selection","option_id":"jobs","selected_quantity":5}]}`)
	var suggested struct {
		Status    string          `json:"status"`
		Suggested json.RawMessage `json:"suggested_pack"`
	}
	a.decode(rec, &suggested)
	if rec.Code != http.StatusOK || suggested.Status != "SUGGESTED" || len(suggested.Suggested) == 0 {
		t.Fatalf("suggest = %d %s", rec.Code, rec.Body.String())
	}

	if rec := a.do(http.MethodPost, "/v1/partnerships/"+view.ID+"/suggestion/approve", partner, ""); rec.Code != http.StatusOK {
		t.Fatalf("approve = %d %s", rec.Code, rec.Body.String())
	}
	if rec := a.do(http.MethodPost, "/v1/partnerships/"+view.ID+"/suggestion/decline", partner, ""); rec.Code != http.StatusConflict {
		t.Fatalf("decline after approve = %d %s", rec.Code, rec.Body.String())
	}
	if rec := a.do(http.MethodPost, "/v1/organizer/partnerships/"+view.ID+"/decline", org, "", "If-Match", a.version(view.ID, org)); rec.Code != http.StatusOK {
		t.Fatalf("decline = %d %s", rec.Code, rec.Body.String())
	}
}
