package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// maxRequestBody bounds request bodies the same way
// correlator/internal/api/http.go's readRequestBody does, to keep a
// malformed or hostile client from exhausting memory on a POST.
const maxRequestBody = 1 << 20 // 1MB

// writeJSON encodes v as the response body with status and the
// correlator's Content-Type convention.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; nothing left to do but log via the
		// caller's own logger, which doesn't reach this helper. Matches
		// correlator/internal/api/http.go's best-effort encode.
		return
	}
}

// errorEnvelope is spec.md §6.2's uniform failure body.
type errorEnvelope struct {
	Error string `json:"error"`
}

// writeError writes the correlator's {error: "..."} envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Error: message})
}

// decodeJSON decodes r's body into dst, bounding its size first.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// pathVar reads a mux path variable.
func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// timeoutMiddleware enforces spec.md §6.2's 2-second-per-request
// ceiling on everything under /v1, responding 504 if a handler is still
// running when the deadline passes. Grounded on net/http's own
// TimeoutHandler — no third-party HTTP middleware appears anywhere in
// the retrieved example pack, and TimeoutHandler already solves the
// double-write hazard a hand-rolled version would have to reinvent.
func timeoutMiddleware(next http.Handler) http.Handler {
	return http.TimeoutHandler(next, requestTimeout, `{"error":"request timed out"}`)
}
