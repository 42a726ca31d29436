package handlers

import (
	"net/http"

	"media-converter/internal/formats"
)

// GetConverters handles GET /api/converters.
func (h *Handlers) GetConverters(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSONStatus(w, http.StatusOK, formats.Catalogue())
}
