package handlers

import (
	"net/http"

	"scrooge-bank/service"
)

func (h *Handler) ApplyLoan(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req amountRequest
	if err := decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	amount, err := req.amount()
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	loan, err := h.bank.ApplyLoan(r.Context(), user.ID, amount)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, loan)
}

func (h *Handler) PayLoan(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req amountRequest
	if err := decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	amount, err := req.amount()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	id, err := pathID(r, service.ErrLoanNotFound)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	loan, err := h.bank.PayLoan(r.Context(), user.ID, id, amount)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loan)
}

func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	loans, err := h.bank.ListLoans(r.Context(), user.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loans)
}

func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	id, err := pathID(r, service.ErrLoanNotFound)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	loan, err := h.bank.GetLoan(r.Context(), user.ID, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loan)
}
