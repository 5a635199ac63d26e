package handlers

import (
	"context"
	"net/http"

	"scrooge-bank/models"
	"scrooge-bank/service"
)

func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req openAccountRequest
	if err := decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	acc, err := h.bank.OpenAccount(r.Context(), user.ID, models.AccountType(req.Type))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, acc)
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	accounts, err := h.bank.ListAccounts(r.Context(), user.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	id, err := pathID(r, service.ErrAccountNotFound)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	acc, err := h.bank.GetAccount(r.Context(), user.ID, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, acc)
}

func (h *Handler) CloseAccount(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	id, err := pathID(r, service.ErrAccountNotFound)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.bank.CloseAccount(r.Context(), user.ID, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.bank.Deposit)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.bank.Withdraw)
}

type moveFunc func(ctx context.Context, userID, accountID, amount int64) (*service.AccountResult, error)

// move validates the amount before the account is looked up, so a bad body
// is a 400 even against an account the caller cannot see.
func (h *Handler) move(w http.ResponseWriter, r *http.Request, fn moveFunc) {
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
	id, err := pathID(r, service.ErrAccountNotFound)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	res, err := fn(r.Context(), user.ID, id, amount)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
