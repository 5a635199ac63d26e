package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"scrooge-bank/auth"
	"scrooge-bank/middleware"
)

type RouterConfig struct {
	Prefix             string
	AllowedOrigins     []string
	RateLimitPerMinute int
}

func notFound(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
}

// NewRouter mounts every route under cfg.Prefix and wraps the result in the
// shared middleware chain.
func NewRouter(h *Handler, authn *auth.Authenticator, cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	api := r.PathPrefix(cfg.Prefix).Subrouter()
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	api.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)

	s := api.NewRoute().Subrouter()
	s.Use(authn.VerifyToken)

	s.HandleFunc("/accounts", h.OpenAccount).Methods(http.MethodPost)
	s.HandleFunc("/accounts", h.ListAccounts).Methods(http.MethodGet)
	s.HandleFunc("/accounts/{id}", h.GetAccount).Methods(http.MethodGet)
	s.HandleFunc("/accounts/{id}", h.CloseAccount).Methods(http.MethodDelete)
	s.HandleFunc("/accounts/{id}/deposits", h.Deposit).Methods(http.MethodPost)
	s.HandleFunc("/accounts/{id}/withdrawals", h.Withdraw).Methods(http.MethodPost)

	s.HandleFunc("/loans", h.ApplyLoan).Methods(http.MethodPost)
	s.HandleFunc("/loans", h.ListLoans).Methods(http.MethodGet)
	s.HandleFunc("/loans/{id}", h.GetLoan).Methods(http.MethodGet)
	s.HandleFunc("/loans/{id}/payments", h.PayLoan).Methods(http.MethodPost)

	s.HandleFunc("/transactions", h.ListTransactions).Methods(http.MethodGet)
	s.HandleFunc("/transactions/export", h.ExportTransactions).Methods(http.MethodGet)

	admin := s.PathPrefix("/admin").Subrouter()
	admin.Use(auth.RequireAdmin)
	admin.HandleFunc("/status", h.BankStatus).Methods(http.MethodGet)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	var handler http.Handler = r
	handler = limiter.Middleware(handler)
	handler = middleware.CORS(cfg.AllowedOrigins)(handler)
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.Recoverer(h.log)(handler)
	handler = middleware.RequestLogger(h.log)(handler)
	return handler
}
