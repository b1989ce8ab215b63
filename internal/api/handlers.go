package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/marginalia/internal/export"
	"github.com/starford/marginalia/internal/notes"
	"github.com/starford/marginalia/internal/noteservice"
	"github.com/starford/marginalia/internal/pipeline"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// Convert handles POST /api/convert.
//
//	@Summary		Convert highlight text into notes
//	@Tags			convert
//	@Accept			json
//	@Produce		json
//	@Produce		application/zip
//	@Produce		text/csv
//	@Param			format	query		string			false	"Response format"	Enums(json, zip, csv)
//	@Param			body	body		ConvertRequest	true	"Source metadata, highlight text and settings"
//	@Success		200		{object}	ConvertResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/convert [post]
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, "convert", err)
		return
	}
	if format == export.FormatDir {
		writeJSON(w, http.StatusBadRequest, errorBody("format dir is not available over HTTP"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	res, err := h.svc.Convert(r.Context(), req)
	if err != nil {
		writeError(w, "convert", err)
		return
	}

	if format == export.FormatJSON {
		writeJSON(w, http.StatusOK, convertResponse(res))
		return
	}
	writeBundle(w, format, res)
}

// writeBundle streams a zip or CSV export as a download. The run summary
// goes in headers since the body is not JSON.
func writeBundle(w http.ResponseWriter, format export.Format, res *pipeline.Result) {
	var buf bytes.Buffer
	if err := export.Write(&buf, format, res.Notes); err != nil {
		writeError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.BundleName(res.Source.Title, format)+`"`)
	w.Header().Set("X-Run-Id", res.Report.RunID)
	w.Header().Set("X-Tagging", string(res.Report.Tagging))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Extract handles POST /api/extract.
//
//	@Summary		Extract quotes from highlight text without converting them
//	@Tags			convert
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ExtractRequest	true	"Highlight text"
//	@Success		200		{object}	ExtractResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/extract [post]
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Extract(r.Context(), req.Text))
}

// Inspect handles POST /api/inspect.
//
//	@Summary		Parse a note document
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		InspectRequest	true	"Note document"
//	@Success		200		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/inspect [post]
func (h *Handler) Inspect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req InspectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	d, err := h.svc.Inspect(r.Context(), []byte(req.Content))
	if err != nil {
		writeError(w, "inspect", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ExportSession handles GET /api/session.
//
//	@Summary		Export the latest conversion
//	@Tags			session
//	@Produce		json
//	@Produce		application/zip
//	@Produce		text/csv
//	@Param			format	query		string	false	"Response format"	Enums(json, zip, csv, dir)
//	@Success		200		{object}	ConvertResponse
//	@Success		201		{object}	ExportResponse	"format=dir: notes written to the output directory"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session [get]
func (h *Handler) ExportSession(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, "session", err)
		return
	}
	if format == export.FormatDir {
		exp, err := h.svc.ExportSession(r.Context(), format)
		if err != nil {
			writeError(w, "session", err)
			return
		}
		writeJSON(w, http.StatusCreated, exp)
		return
	}
	res, err := h.svc.Session(r.Context())
	if err != nil {
		writeError(w, "session", err)
		return
	}
	if format == export.FormatJSON {
		writeJSON(w, http.StatusOK, convertResponse(res))
		return
	}
	writeBundle(w, format, res)
}

// ResetSession handles DELETE /api/session.
//
//	@Summary		Discard the latest conversion
//	@Tags			session
//	@Success		204	"Session cleared"
//	@Security		BearerAuth
//	@Router			/session [delete]
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	h.svc.ResetSession(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// ListRuns handles GET /api/runs.
//
//	@Summary		List recorded conversion runs, newest first
//	@Tags			runs
//	@Produce		json
//	@Param			limit	query		int	false	"Max runs"
//	@Success		200		{object}	RunListResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// GetRun handles GET /api/runs/{id}.
//
//	@Summary		Get one recorded run
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		string	true	"Run ID"
//	@Success		200	{object}	cache.RunRow
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Contract handles GET /api/contract.
//
//	@Summary		Describe the generated note format
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	ContractResponse
//	@Security		BearerAuth
//	@Router			/contract [get]
func (h *Handler) Contract(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ContractResponse{Contract: notes.Contract})
}
