package handlers

import (
	"context"
	"encoding/json"
	"net/http"
)

// maxBodyBytes caps REST request bodies.
const maxBodyBytes = 64 << 10

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// storeContext bounds a REST handler's store call by the server's store timeout.
func (s *Server) storeContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.StoreTimeout)
}
