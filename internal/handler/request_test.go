package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sponsorship-partnerships/internal/model"
	"github.com/iliyamo/sponsorship-partnerships/internal/pricing"
	"github.com/iliyamo/sponsorship-partnerships/internal/repository"
	"github.com/iliyamo/sponsorship-partnerships/internal/service"
	"github.com/iliyamo/sponsorship-partnerships/internal/workflow"
)

func newContext(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestRequestLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"fr-CA, fr;q=0.9, en;q=0.5", "fr-ca"},
		{"en;q=0.2, de", "de"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Accept-Language", tt.header)
		}
		c, _ := newContext(req)
		if got := requestLanguage(c); got != tt.want {
			t.Fatalf("requestLanguage(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestWritePricingHonoursIfNoneMatch(t *testing.T) {
	res := service.PricingResult{Pricing: model.PartnershipPricing{TotalAmount: 42}, ETag: `"abc"`}

	tests := []struct {
		header string
		want   int
	}{
		{"", http.StatusOK},
		{`"abc"`, http.StatusNotModified},
		{`W/"abc"`, http.StatusNotModified},
		{`"old", "abc"`, http.StatusNotModified},
		{`"old",W/"abc"`, http.StatusNotModified},
		{"*", http.StatusNotModified},
		{`"old"`, http.StatusOK},
		{`"old", "older"`, http.StatusOK},
		{`"abcd"`, http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("If-None-Match", tt.header)
		}
		c, rec := newContext(req)
		if err := writePricing(c, res); err != nil || rec.Code != tt.want {
			t.Fatalf("If-None-Match %q = %d %v, want %d", tt.header, rec.Code, err, tt.want)
		}
		if rec.Header().Get("ETag") != `"abc"` {
			t.Fatalf("If-None-Match %q: ETag = %q", tt.header, rec.Header().Get("ETag"))
		}
		if tt.want == http.StatusNotModified && rec.Body.Len() != 0 {
			t.Fatalf("If-None-Match %q: body = %q", tt.header, rec.Body.String())
		}
	}
}

func TestIfMatchVersion(t *testing.T) {
	tests := []struct {
		header string
		want   int64
		ok     bool
	}{
		{"", 0, true},
		{"3", 3, true},
		{`"3"`, 3, true},
		{`W/"12"`, 12, true},
		{"latest", 0, false},
		{"0", 0, false},
		{"-2", 0, false},
		{"*", 0, false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if tt.header != "" {
			req.Header.Set("If-Match", tt.header)
		}
		c, _ := newContext(req)
		got, ok := ifMatchVersion(c)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ifMatchVersion(%q) = %d, %v, want %d, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRespondErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", pricing.ValidationErrors{{OptionID: "x", Code: pricing.CodeUnknownOption}}, http.StatusBadRequest},
		{"bad input", service.ErrInvalidInput, http.StatusBadRequest},
		{"no version", service.ErrVersionRequired, http.StatusPreconditionRequired},
		{"pack mismatch", workflow.ErrPackMismatch, http.StatusBadRequest},
		{"pack missing", repository.ErrPackNotFound, http.StatusNotFound},
		{"partnership missing", repository.ErrPartnershipNotFound, http.StatusNotFound},
		{"not owner", repository.ErrForbidden, http.StatusForbidden},
		{"conflict", &workflow.ConflictError{Status: model.StatusDeclined, Op: "validate"}, http.StatusConflict},
		{"stale", repository.ErrConflict, http.StatusConflict},
		{"duplicate id", repository.ErrDuplicateID, http.StatusConflict},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
			if err := respondError(c, tt.err); err != nil {
				t.Fatalf("respondError: %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("code = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
