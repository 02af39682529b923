package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/tysite/internal/storage"
)

func handleListInquiries(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		inquiries, err := deps.Store.ListInquiries(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list inquiries: %v", err)
			return
		}

		if inquiries == nil {
			inquiries = []storage.Inquiry{}
		}

		writeJSON(w, http.StatusOK, inquiries)
	}
}

func handleGetInquiry(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		q, err := deps.Store.GetInquiry(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "inquiry not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get inquiry: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, q)
	}
}
