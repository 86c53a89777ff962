package api

import (
	"net/http"
	"strconv"

	"github.com/LeventeLantos/result-messaging/internal/service"
	"github.com/LeventeLantos/result-messaging/internal/sheet"
)

// Upload parses an xlsx file from the "file" form field. With mode=template
// the Result column is not required.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxBytes)
	if err := r.ParseMultipartForm(h.uploadMaxBytes); err != nil {
		h.writeError(w, r, badRequest("invalid upload: "+err.Error()))
		return
	}

	f, _, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, badRequest("missing file field"))
		return
	}
	defer f.Close()

	table, err := sheet.Parse(f, sheet.Options{RequireResult: r.URL.Query().Get("mode") != "template"})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (h *Handler) SendRows(w http.ResponseWriter, r *http.Request) {
	var req rowsRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	_, c := caller(r)
	res, err := h.messaging.SendRows(r.Context(), c, service.RecipientRowsFrom(req.Data))
	if err != nil {
		// sends already happened; report them even if bookkeeping failed
		h.logger.ErrorContext(r.Context(), "row send bookkeeping failed", "err", err)
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) SendManual(w http.ResponseWriter, r *http.Request) {
	var req manualSendRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	_, c := caller(r)
	res, err := h.messaging.SendManual(r.Context(), c, req.Message, req.Numbers)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "manual send bookkeeping failed", "err", err)
	}
	writeJSON(w, http.StatusOK, res)
}

// ListFailures returns resolved and unresolved records unless resolved=false.
func (h *Handler) ListFailures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fq := service.FailureQuery{
		Limit:  parseInt(q.Get("limit"), 200),
		Offset: parseInt(q.Get("offset"), 0),
	}
	if v := q.Get("resolved"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, r, badRequest("resolved must be a boolean"))
			return
		}
		fq.UnresolvedOnly = !include
	}

	_, c := caller(r)
	items, err := h.messaging.ListFailures(r.Context(), c, fq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) ResendFailures(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(req.IDs) == 0 && len(req.Records) == 0 {
		h.writeError(w, r, badRequest("ids or records required"))
		return
	}
	if len(req.IDs) > 0 && len(req.Records) > 0 {
		h.writeError(w, r, badRequest("send either ids or records, not both"))
		return
	}

	_, c := caller(r)
	var (
		res service.ResendResult
		err error
	)
	if len(req.IDs) > 0 {
		res, err = h.messaging.ResendByIDs(r.Context(), c, req.IDs)
	} else {
		res, err = h.messaging.ResendRecords(r.Context(), c, req.Records)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) RecentSent(w http.ResponseWriter, r *http.Request) {
	_, c := caller(r)
	items, err := h.messaging.Recent(r.Context(), c, parseInt(r.URL.Query().Get("limit"), 50))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	b, err := h.messaging.Balance(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": b})
}
