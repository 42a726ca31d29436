package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Register mounts the API and ops routes on r.
func (h *Handlers) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/convert", h.Convert).Methods(http.MethodPost)
	api.HandleFunc("/converters", h.GetConverters).Methods(http.MethodGet)
	api.HandleFunc("/user/history", h.GetHistory).Methods(http.MethodGet)
	api.HandleFunc("/user/info", h.GetInfo).Methods(http.MethodGet)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
}
