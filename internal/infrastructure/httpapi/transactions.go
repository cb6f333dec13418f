package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"http-inspector/internal/domain"
	"http-inspector/internal/usecase"
)

// transactionView is a list row or detail body: the transaction plus the
// presentation fields list and detail screens show.
type transactionView struct {
	domain.Transaction
	Title  string `json:"title"`
	Status string `json:"status"`
	State  string `json:"state"` // pending|ok|error
}

type transactionDetail struct {
	transactionView
	Cache       *cacheMeta `json:"cache,omitempty"`
	CORS        *corsMeta  `json:"cors,omitempty"`
	RequestHex  string     `json:"requestHex,omitempty"`  // binary request body preview
	ResponseHex string     `json:"responseHex,omitempty"` // binary response body preview
	ErrorClass  string     `json:"errorClass,omitempty"`
}

func viewOf(tx domain.Transaction) transactionView {
	state := "ok"
	switch {
	case tx.IsPending():
		state = "pending"
	case tx.HasError():
		state = "error"
	}
	return transactionView{Transaction: tx, Title: tx.DisplayTitle(), Status: tx.StatusDescription(), State: state}
}

func (d *Deps) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	f := usecase.TransactionFilter{
		Q:          strings.TrimSpace(q.Get("q")),
		URL:        q.Get("url"),
		Method:     strings.TrimSpace(q.Get("method")),
		ErrorsOnly: truthy(q.Get("errors")),
		Limit:      limit,
		Offset:     offset,
	}
	items, total := d.Inspector.Service().List(f)
	views := make([]transactionView, 0, len(items))
	for _, tx := range items {
		views = append(views, viewOf(tx))
	}
	next := ""
	if offset+limit < total {
		next = strconv.Itoa(offset + limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views, "total": total, "next": next})
}

func (d *Deps) handleClearTransactions(w http.ResponseWriter, _ *http.Request) {
	d.Inspector.ClearTransactions()
	if d.Monitor != nil {
		d.Monitor.Cleared()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Deps) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tx, ok := d.Inspector.Service().Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "TRANSACTION_NOT_FOUND", "transaction not found", map[string]any{"id": id})
		return
	}
	writeJSON(w, http.StatusOK, detailOf(tx))
}

func (d *Deps) handleShareTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tx, ok := d.Inspector.Service().Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "TRANSACTION_NOT_FOUND", "transaction not found", map[string]any{"id": id})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(tx.ShareText()))
}

func (d *Deps) handleStats(w http.ResponseWriter, _ *http.Request) {
	count, errs, pending := d.Inspector.Service().Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":      count,
		"errorCount": errs,
		"success":    count - errs - pending,
		"pending":    pending,
		"capacity":   d.Inspector.Capacity(),
	})
}

// handleTransactionStream is a server-sent events feed of captured
// transactions. It starts with the current snapshot, oldest first.
func (d *Deps) handleTransactionStream(w http.ResponseWriter, r *http.Request) {
	if d.Monitor == nil {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "STREAM_UNSUPPORTED", "stream unsupported", nil)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := d.Monitor.Subscribe()
	defer d.Monitor.Unsubscribe(sub)
	enc := json.NewEncoder(w)

	all := d.Inspector.GetAllTransactions()
	for i := len(all) - 1; i >= 0; i-- {
		_ = writeSSE(w, flusher, "transaction", viewOf(all[i]), enc)
	}
	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			switch ev.Type {
			case "transaction_captured":
				if ev.Transaction != nil {
					_ = writeSSE(w, flusher, "transaction", viewOf(*ev.Transaction), enc)
				}
			case "transactions_cleared", "badge":
				_ = writeSSE(w, flusher, ev.Type, ev, enc)
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any, enc *json.Encoder) error {
	if _, err := w.Write([]byte("event: " + event + "\ndata: ")); err != nil {
		return err
	}
	// Encode terminates the line
	if err := enc.Encode(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n"))
	flusher.Flush()
	return err
}

func detailOf(tx domain.Transaction) transactionDetail {
	out := transactionDetail{transactionView: viewOf(tx)}
	if tx.Request.BodyText == nil && len(tx.Request.Body) > 0 {
		out.RequestHex = formatBinaryPreview(tx.Request.Body, previewMaxBytes)
	}
	if tx.Response != nil {
		if tx.Response.BodyText == nil && len(tx.Response.Body) > 0 {
			out.ResponseHex = formatBinaryPreview(tx.Response.Body, previewMaxBytes)
		}
		out.Cache = computeCacheMeta(tx.Response.StatusCode, tx.Response.Headers)
		preflight := tx.Request.Method == http.MethodOptions && getFold(tx.Request.Headers, "Access-Control-Request-Method") != ""
		if getFold(tx.Request.Headers, "Origin") != "" {
			out.CORS = computeCORSMeta(tx.Request.Method, tx.Request.Headers, tx.Response.Headers, preflight)
		}
	}
	if tx.Error != nil {
		out.ErrorClass = classifyError(*tx.Error)
	}
	return out
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
