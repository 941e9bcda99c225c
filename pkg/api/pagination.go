package api

import (
	"context"
	"net/http"
	"strconv"
)

// PaginationKey is used to store pagination parameters in the context.
type PaginationKey string

const (
	PageKey    PaginationKey = "page"
	PerPageKey PaginationKey = "per_page"
)

// Paginate returns a middleware storing the page and per_page query parameters in the context.
// per_page is bounded by maxPerPage.
func Paginate(defaultPerPage, maxPerPage int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// default values
			page := 1
			perPage := defaultPerPage

			// read query parameters
			q := r.URL.Query()
			if p := q.Get("page"); p != "" {
				if val, err := strconv.Atoi(p); err == nil && val > 0 {
					page = val
				}
			}
			if pp := q.Get("per_page"); pp != "" {
				if val, err := strconv.Atoi(pp); err == nil && val > 0 {
					perPage = val
				}
			}
			if maxPerPage > 0 && perPage > maxPerPage {
				perPage = maxPerPage
			}

			// add to context
			ctx := context.WithValue(r.Context(), PageKey, page)
			ctx = context.WithValue(ctx, PerPageKey, perPage)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
