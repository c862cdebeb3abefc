package handlers

import (
	"net/http"
	"runtime/debug"

	"github.com/portfolio-cms/apiserver/internal/logutil"
)

// Recoverer turns handler panics into a logged 500 JSON response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			logger := logutil.GetOrDefault(r.Context())
			logger.Error().
				Interface("panic", rvr).
				Bytes("stack", debug.Stack()).
				Msg("handler panic")

			if r.Header.Get("Connection") != "Upgrade" {
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
