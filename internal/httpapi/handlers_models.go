package httpapi

import "net/http"

// listModels returns the combined model catalog across every active
// provider adapter. A provider with no configured API key is simply
// absent, so its models never appear here.
func (h *handlers) listModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Validation", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": h.deps.Providers.Catalog()})
}
