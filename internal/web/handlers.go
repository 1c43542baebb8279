package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/csvdiff/internal/compare"
	"github.com/JonMunkholm/csvdiff/internal/core"
	"github.com/JonMunkholm/csvdiff/internal/report"
	"github.com/JonMunkholm/csvdiff/internal/table"
)

const (
	// multipartMemory is the part of an upload kept in memory; the rest
	// spills to temporary files.
	multipartMemory = 32 << 20

	// formOverhead allows for multipart boundaries and the option fields.
	formOverhead = 1 << 20

	defaultListLimit = 50
)

type healthResponse struct {
	Status string `json:"status"`
	core.LimiterStatus
}

// handleHealth reports liveness and how busy the comparison slots are.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		LimiterStatus: s.service.Limiter().Status(),
	})
}

// handleColumns reads both uploads and returns their headers and the
// columns they share, from which a client picks the key.
func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer up.Close()

	req, err := parseRequest(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	cols, err := s.service.Columns(WithRequestMetadata(r.Context(), r), up.before, up.after, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cols)
}

// handleCompare compares the two uploads by the selected key and stores
// the result.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer up.Close()

	req, err := parseRequest(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	c, err := s.service.CompareSources(WithRequestMetadata(r.Context(), r), up.before, up.after, req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/comparisons/"+c.ID.String())
	writeJSON(w, http.StatusCreated, c)
}

// handleListComparisons returns stored comparison summaries, newest first.
func (s *Server) handleListComparisons(w http.ResponseWriter, r *http.Request) {
	infos, err := s.service.List(r.Context(), parseIntParam(r, "limit", defaultListLimit))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if infos == nil {
		infos = []core.ComparisonInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleGetComparison returns one stored comparison in full.
func (s *Server) handleGetComparison(w http.ResponseWriter, r *http.Request) {
	c, err := s.comparison(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("ETag", etag(c))
	writeJSON(w, http.StatusOK, c)
}

// handleExport renders a stored comparison as a report file. The ETag is
// the result digest, so an unchanged result answers 304.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	c, err := s.comparison(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err))
		return
	}
	opts := report.Options{Limit: parseIntParam(r, "limit", 0)}

	tag := etag(c)
	w.Header().Set("ETag", tag)
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, tag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	disposition := "attachment"
	if format == report.FormatHTML {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("%s; filename=%q", disposition, "comparison-"+c.ID.String()+"."+format.Extension()))

	if err := report.Write(r.Context(), w, format, c, opts); err != nil {
		// Headers are sent; the truncated body is all we can do.
		logRequestError(r, err, http.StatusOK)
	}
}

// handleDeleteComparison removes a stored comparison.
func (s *Server) handleDeleteComparison(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.service.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) comparison(r *http.Request) (*core.Comparison, error) {
	id, err := parseID(r)
	if err != nil {
		return nil, err
	}
	return s.service.Get(r.Context(), id)
}

// upload holds the two files of a multipart request.
type upload struct {
	before, after core.Source
	files         []multipart.File
	form          *multipart.Form
}

// Close releases the files and any temporary storage of the form.
func (u *upload) Close() {
	for _, f := range u.files {
		f.Close()
	}
	if u.form != nil {
		u.form.RemoveAll()
	}
}

// readUpload parses a multipart request carrying "before" and "after" files.
// Each file is limited to Compare.MaxFileSize.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	maxSize := s.cfg.Compare.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxSize+formOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}

	up := &upload{form: r.MultipartForm}
	for _, side := range []struct {
		field string
		dst   *core.Source
	}{
		{"before", &up.before},
		{"after", &up.after},
	} {
		file, header, err := r.FormFile(side.field)
		if errors.Is(err, http.ErrMissingFile) {
			up.Close()
			return nil, fmt.Errorf("%s: %w", side.field, core.ErrNoFile)
		}
		if err != nil {
			up.Close()
			return nil, fmt.Errorf("%s: %w", side.field, err)
		}
		up.files = append(up.files, file)

		if header.Size > maxSize {
			up.Close()
			return nil, fmt.Errorf("%s: %w", header.Filename, core.ErrFileTooLarge)
		}
		*side.dst = core.Source{Name: sourceName(header.Filename, side.field), R: file}
	}
	return up, nil
}

func sourceName(filename, field string) string {
	if filename == "" {
		return field
	}
	return filename
}

// parseRequest reads the comparison options from the parsed form.
func parseRequest(r *http.Request) (core.Request, error) {
	req := core.Request{
		Key:        r.FormValue("key"),
		Ignore:     splitList(r.FormValue("ignore")),
		NullTokens: table.ParseNullTokens(r.FormValue("null_tokens")),
	}

	if v := r.FormValue("duplicates"); v != "" {
		p, err := compare.ParseDuplicatePolicy(v)
		if err != nil {
			return req, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
		}
		req.Duplicates = p
	}
	if v := r.FormValue("delimiter"); v != "" {
		d, err := table.ParseDelimiter(v)
		if err != nil {
			return req, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
		}
		req.Delimiter = d
	}
	if v := r.FormValue("encoding"); v != "" {
		if err := table.CheckEncoding(v); err != nil {
			return req, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
		}
		req.Encoding = v
	}
	if v := r.FormValue("trim_space"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("%w: trim_space %q is not a boolean", core.ErrInvalidRequest, v)
		}
		req.TrimSpace = b
	}
	if v := r.FormValue("strip_formula"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("%w: strip_formula %q is not a boolean", core.ErrInvalidRequest, v)
		}
		req.StripFormula = b
	}
	return req, nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseID reads the comparison ID path parameter. A malformed ID cannot
// name a stored comparison, so it is reported as not found.
func parseID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", core.ErrNotFound, raw)
	}
	return id, nil
}

func etag(c *core.Comparison) string {
	return `"` + c.Result.Digest() + `"`
}

// etagMatches checks an If-None-Match header, which may list several tags.
func etagMatches(header, tag string) bool {
	for _, t := range strings.Split(header, ",") {
		t = strings.TrimSpace(t)
		if t == "*" || strings.TrimPrefix(t, "W/") == tag {
			return true
		}
	}
	return false
}
