package handlers

import (
	"net/http"
	"time"

	"scrooge-bank/database"
)

const dateLayout = "2006-01-02"

// dateRange reads the optional from/to query dates. Both ends are inclusive
// whole days in UTC.
func dateRange(r *http.Request) (database.TransactionFilter, error) {
	var f database.TransactionFilter
	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return f, invalid("Invalid from date format. Use YYYY-MM-DD")
		}
		f.From = t
	}
	if s := q.Get("to"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return f, invalid("Invalid to date format. Use YYYY-MM-DD")
		}
		f.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, invalid(`"from" must not be after "to"`)
	}
	return f, nil
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	f, err := dateRange(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	txs, err := h.bank.ListTransactions(r.Context(), user.ID, f)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

// ExportTransactions writes the caller's statement as pdf, xlsx or json.
func (h *Handler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = formatJSON
	}
	exp, ok := exporters[format]
	if !ok {
		h.respondError(w, r, invalid(`"format" must be one of [pdf, xlsx, json]`))
		return
	}
	f, err := dateRange(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	txs, err := h.bank.ListTransactions(r.Context(), user.ID, f)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	body, err := exp.render(statement{Owner: user, Filter: f, Transactions: txs})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", exp.contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.`+format+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
