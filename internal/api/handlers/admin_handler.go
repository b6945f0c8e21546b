package handlers

import (
	"net/http"

	"github.com/isdelr/ender-feed-be/internal/services"
)

// AdminHandler exposes maintenance operations.
type AdminHandler struct {
	graph services.GraphServiceProvider
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(graph services.GraphServiceProvider) *AdminHandler {
	return &AdminHandler{graph: graph}
}

// Reconcile repairs asymmetric follow edges and reports what changed.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.graph.Reconcile(r.Context())
	if err != nil {
		writeError(w, err, "Graph reconcile failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
