package handlers

import (
	"net/http"
	"strings"

	"scrooge-bank/apperr"
	"scrooge-bank/models"
)

var ErrInvalidCredentials = apperr.New(apperr.Validation, "Invalid credentials")

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	hash, err := h.hasher.HashSecret(req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	user, err := h.bank.RegisterUser(r.Context(), strings.TrimSpace(req.Name), req.Email, hash, models.RoleUser)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	token, err := h.tokens.Issue(user)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{User: user, Token: token})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	user, err := h.bank.UserByEmail(r.Context(), req.Email)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			err = ErrInvalidCredentials
		}
		h.respondError(w, r, err)
		return
	}
	ok, err := h.hasher.VerifySecret(req.Password, user.PasswordHash)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !ok {
		h.respondError(w, r, ErrInvalidCredentials)
		return
	}
	token, err := h.tokens.Issue(user)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, authResponse{User: user, Token: token})
}
