// Package handlers is the HTTP surface of the bank: request validation, JSON
// responses, the router and statement export.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"scrooge-bank/apperr"
	"scrooge-bank/auth"
	"scrooge-bank/middleware"
	"scrooge-bank/models"
	"scrooge-bank/service"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	bank   *service.Bank
	tokens *auth.Tokens
	hasher *auth.Hasher
	store  Pinger
	log    *zap.Logger
}

func NewHandler(bank *service.Bank, tokens *auth.Tokens, hasher *auth.Hasher, store Pinger, log *zap.Logger) *Handler {
	return &Handler{bank: bank, tokens: tokens, hasher: hasher, store: store, log: log}
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation, apperr.InsufficientFunds, apperr.BankInsufficientCapacity, apperr.DuplicateIdentity:
		return http.StatusBadRequest
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": message}. Internal failures are logged
// and answered with a generic message.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("request_id", w.Header().Get(middleware.RequestIDHeader)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondJSON(w, status, errorBody{Error: "Internal Server Error"})
		return
	}
	respondJSON(w, status, errorBody{Error: apperr.MessageOf(err)})
}

// pathID reads the {id} route variable. Anything that is not a positive
// integer cannot name a record, so it is reported as notFound.
func pathID(r *http.Request, notFound error) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id < 1 {
		return 0, notFound
	}
	return id, nil
}

// caller is the user resolved by auth.VerifyToken.
func caller(r *http.Request) (*models.User, error) {
	u, ok := auth.UserFrom(r.Context())
	if !ok {
		return nil, apperr.New(apperr.Unauthorized, "Authorization required")
	}
	return u, nil
}
