package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/LeventeLantos/result-messaging/internal/results"
	"github.com/LeventeLantos/result-messaging/internal/sheet"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type rendered struct {
	kind    results.Kind
	rows    []results.Row
	columns []string
}

func (h *Handler) render(r *http.Request) (rendered, error) {
	var req templateRequest
	if err := h.decode(r, &req); err != nil {
		return rendered{}, err
	}
	kind, err := results.ParseKind(req.Type)
	if err != nil {
		return rendered{}, err
	}
	rows, err := results.Render(req.Data, kind)
	if err != nil {
		return rendered{}, err
	}
	return rendered{kind: kind, rows: rows, columns: req.Columns}, nil
}

func (h *Handler) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	out, err := h.render(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preview": out.rows})
}

func (h *Handler) DownloadTemplate(w http.ResponseWriter, r *http.Request) {
	out, err := h.render(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := sheet.Export(&buf, out.rows, out.columns); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="results_%s.xlsx"`, out.kind))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
