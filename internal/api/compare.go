package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/recordmatch/internal/match"
	"github.com/sells-group/recordmatch/internal/model"
	"github.com/sells-group/recordmatch/internal/runner"
	"github.com/sells-group/recordmatch/internal/sheet"
)

// parseUpload limits the body to the upload budget and parses the
// multipart form.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) error {
	limit := s.cfg.MaxUploadBytes()
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return tooLarge
		}
		// multipart does not always wrap the body error
		if strings.Contains(err.Error(), "request body too large") {
			return &http.MaxBytesError{Limit: limit}
		}
		return invalid("invalid multipart form")
	}
	return nil
}

// formFile reads the named upload fully. ok is false when it is missing.
func formFile(r *http.Request, field string) (runner.Input, bool, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return runner.Input{}, false, nil
		}
		return runner.Input{}, false, invalid("invalid upload " + field)
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(f)
	if err != nil {
		return runner.Input{}, false, eris.Wrapf(err, "api: read %s", field)
	}
	return runner.Input{Name: hdr.Filename, Data: data}, true, nil
}

type previewResponse struct {
	Type     string `json:"type"`
	FileName string `json:"fileName"`
	match.Preview
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUpload(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	in, ok, err := formFile(r, "file")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, invalid("No file uploaded"))
		return
	}

	fileType := r.FormValue("type")
	if fileType != "master" && fileType != "secondary" {
		writeError(w, r, invalid(`type must be "master" or "secondary"`))
		return
	}

	rs, err := sheet.Open(in.Name, in.Data, sheet.Options{SheetName: r.FormValue("sheet")})
	if err != nil {
		writeError(w, r, &runner.ParseError{File: in.Name, Err: err})
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		Type:     fileType,
		FileName: in.Name,
		Preview:  match.PreviewFirstRows(rs, s.match.PreviewRows),
	})
}

type suggestRequest struct {
	MasterColumns    []string `json:"masterColumns"`
	SecondaryColumns []string `json:"secondaryColumns"`
	MinScore         float64  `json:"minScore"`
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, invalid("invalid request body"))
		return
	}
	pairs := match.SuggestPairs(req.MasterColumns, req.SecondaryColumns, req.MinScore)
	if pairs == nil {
		pairs = []match.ColumnPair{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pairs": pairs})
}

type compareResponse struct {
	ID               string       `json:"id"`
	MasterFile       string       `json:"masterFile"`
	SecondaryFile    string       `json:"secondaryFile"`
	MasterColumns    []string     `json:"masterColumns"`
	SecondaryColumns []string     `json:"secondaryColumns"`
	TotalRows        int          `json:"totalRows"`
	MatchedRows      int          `json:"matchedRows"`
	UnmatchedRows    int          `json:"unmatchedRows"`
	Method           model.Method `json:"comparisonMethod"`
	Threshold        *float64     `json:"similarityThreshold,omitempty"`
	JobID            string       `json:"jobId"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUpload(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := s.compareRequest(r)
	if err == nil {
		err = req.Config.Validate()
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	jobID := strings.TrimSpace(r.FormValue("jobId"))
	if jobID == "" {
		jobID = uuid.NewString()
	}
	s.tracker.Initialize(jobID)
	req.Progress = s.tracker.Reporter(jobID)
	req.Save = true

	out, err := s.runner.Run(r.Context(), req)
	if err != nil {
		s.tracker.Fail(jobID, err)
		writeError(w, r, err)
		return
	}
	s.tracker.Complete(jobID)

	c := out.Comparison
	zap.L().Info("api: comparison saved",
		zap.String("comparison_id", c.ID),
		zap.String("job_id", jobID),
		zap.Int("matched_rows", c.MatchedRows),
	)
	writeJSON(w, http.StatusOK, compareResponse{
		ID:               c.ID,
		MasterFile:       c.MasterFile,
		SecondaryFile:    c.SecondaryFile,
		MasterColumns:    c.MasterColumns,
		SecondaryColumns: c.SecondaryColumns,
		TotalRows:        c.TotalRows,
		MatchedRows:      c.MatchedRows,
		UnmatchedRows:    c.UnmatchedRows,
		Method:           c.Method,
		Threshold:        c.Threshold,
		JobID:            jobID,
	})
}

// compareRequest reads the uploads and match settings from a parsed form.
func (s *Server) compareRequest(r *http.Request) (runner.Request, error) {
	var req runner.Request

	master, okM, err := formFile(r, "masterFile")
	if err != nil {
		return req, err
	}
	secondary, okS, err := formFile(r, "secondaryFile")
	if err != nil {
		return req, err
	}
	if !okM || !okS {
		return req, invalid("Both master and secondary files are required")
	}
	master.Sheet.SheetName = r.FormValue("masterSheet")
	secondary.Sheet.SheetName = r.FormValue("secondarySheet")

	cfg := match.Config{
		Mode:           match.ModeExact,
		CaseSensitive:  s.match.CaseSensitive,
		TrimWhitespace: s.match.TrimWhitespace,
	}
	if err := columnsField(r, "masterColumns", &cfg.MasterColumns); err != nil {
		return req, err
	}
	if err := columnsField(r, "secondaryColumns", &cfg.SecondaryColumns); err != nil {
		return req, err
	}
	if err := boolField(r, "caseSensitive", &cfg.CaseSensitive); err != nil {
		return req, err
	}
	if err := boolField(r, "trimWhitespace", &cfg.TrimWhitespace); err != nil {
		return req, err
	}

	if r.FormValue("enableFuzzyMatching") == "true" {
		cfg.Mode = match.ModeFuzzy
		cfg.Threshold = s.match.DefaultThreshold
		if v := strings.TrimSpace(r.FormValue("similarityThreshold")); v != "" {
			th, err := strconv.Atoi(v)
			if err != nil {
				return req, invalid("similarityThreshold must be an integer")
			}
			cfg.Threshold = float64(th)
		}
	}

	req.Master = master
	req.Secondary = secondary
	req.Config = cfg
	return req, nil
}

func columnsField(r *http.Request, field string, dst *[]string) error {
	raw := r.FormValue(field)
	if raw == "" {
		return invalid(field + " is required")
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return invalid(field + " must be a JSON array of column names")
	}
	return nil
}

func boolField(r *http.Request, field string, dst *bool) error {
	raw := r.FormValue(field)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return invalid(field + " must be true or false")
	}
	*dst = b
	return nil
}
