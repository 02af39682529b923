package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kalambet/tysite/internal/contact"
)

type contactResponse struct {
	Status string `json:"status"`
}

type validationResponse struct {
	Error  map[string]string `json:"error"`
	Fields contact.Errors    `json:"fields"`
}

type fieldResponse struct {
	Field contact.Field `json:"field"`
	Error string        `json:"error"`
}

func submitContact(deps Deps, r *http.Request, f contact.Form) (*contact.Session, error) {
	s := contact.NewSession(f)
	s.Timeout = deps.SubmitTimeout
	ctx := contact.WithVisitor(r.Context(), VisitorID(r.Context()))
	err := s.Submit(ctx, deps.Sender)
	if err != nil && !errors.Is(err, contact.ErrInvalid) {
		deps.Logger.Warn("contact submission failed", "visitor", VisitorID(r.Context()), "error", err)
	}
	return s, err
}

func handleContactSubmit(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var f contact.Form
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		s, err := submitContact(deps, r, f)
		switch {
		case errors.Is(err, contact.ErrInvalid):
			writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
				Error: map[string]string{
					"message": "validation failed",
					"type":    "validation_error",
				},
				Fields: s.View().Errors,
			})
		case err != nil:
			httpError(w, http.StatusServiceUnavailable, "api_error", "%s", contact.SubmitErrorMessage)
		default:
			writeJSON(w, http.StatusOK, contactResponse{Status: "sent"})
		}
	}
}

// handleContactValidate checks a single field, for validation on blur.
func handleContactValidate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		field := contact.Field(r.URL.Query().Get("field"))
		known := false
		for _, f := range contact.Fields {
			if f == field {
				known = true
				break
			}
		}
		if !known {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown field %q", field)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var f contact.Form
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, fieldResponse{Field: field, Error: contact.ValidateField(f, field)})
	}
}

func formFromRequest(r *http.Request) contact.Form {
	return contact.Form{
		Name:    r.PostForm.Get("name"),
		Email:   r.PostForm.Get("email"),
		Phone:   r.PostForm.Get("phone"),
		Message: r.PostForm.Get("message"),
		Privacy: r.PostForm.Get("privacy") != "",
	}
}
