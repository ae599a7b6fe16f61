package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/recordmatch/internal/model"
	"github.com/sells-group/recordmatch/internal/sheet"
	"github.com/sells-group/recordmatch/internal/store"
)

// queryInt reads a non-negative integer query parameter, returning def when
// it is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, invalid(name + " must be a non-negative integer")
	}
	return n, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := s.store.ListComparisons(r.Context(), store.ListFilter{Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteComparison(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type comparisonResponse struct {
	*model.Comparison
	Filter     model.RowStatus   `json:"filter"`
	Rows       []model.RowResult `json:"comparisonData"`
	Pagination model.Pagination  `json:"pagination"`
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := model.ParseRowStatus(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, r, invalid(err.Error()))
		return
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", model.DefaultPageLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := s.store.GetComparison(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p := model.NewPagination(page, limit, 0)
	rows, total, err := s.store.ListRows(r.Context(), id, p.Filter(status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []model.RowResult{}
	}

	writeJSON(w, http.StatusOK, comparisonResponse{
		Comparison: c,
		Filter:     status,
		Rows:       rows,
		Pagination: model.NewPagination(p.Page, p.Limit, total),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := s.store.GetComparison(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, _, err := s.store.ListRows(r.Context(), id, model.RowFilter{Status: model.RowsAll})
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := sheet.WriteResultXLSX(&buf, c, rows); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sheet.ResultFileName(s.now())))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
