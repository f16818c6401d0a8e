package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// RequestValidator plugs go-playground/validator into echo so that
// c.Validate checks the `validate` struct tags of request bodies.
type RequestValidator struct {
	v *validator.Validate
}

// NewRequestValidator returns an echo.Validator.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i interface{}) error {
	return rv.v.Struct(i)
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// bindAndValidate decodes the body into req and runs its validation tags.
// On failure the 400 response has already been written and handled is true.
func bindAndValidate(c echo.Context, req interface{}) (handled bool, err error) {
	if err := c.Bind(req); err != nil {
		msg := "invalid body"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			if s, ok := he.Message.(string); ok && s != "" {
				msg = s
			}
		}
		return true, c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	if c.Echo().Validator == nil {
		return false, nil
	}
	if err := c.Validate(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return true, c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		details := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, fieldError{Field: fe.Namespace(), Rule: fe.Tag()})
		}
		return true, c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": details})
	}
	return false, nil
}
