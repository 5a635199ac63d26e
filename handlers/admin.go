package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// BankStatus is mounted behind auth.RequireAdmin.
func (h *Handler) BankStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.bank.Status(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
