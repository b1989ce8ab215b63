package api

import (
	"github.com/starford/marginalia/internal/cache"
	"github.com/starford/marginalia/internal/export"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/noteservice"
	"github.com/starford/marginalia/internal/pipeline"
)

// ConvertRequest is the request body for a conversion.
type ConvertRequest = pipeline.Request

// ConvertResponse is the JSON result of a conversion.
type ConvertResponse struct {
	Source   models.SourceMetadata `json:"source" validate:"required"`
	Report   pipeline.Report       `json:"report" validate:"required"`
	Taxonomy *models.Taxonomy      `json:"taxonomy,omitempty"`
	Notes    []export.Document     `json:"notes" validate:"required"`
}

func convertResponse(res *pipeline.Result) ConvertResponse {
	return ConvertResponse{
		Source:   res.Source,
		Report:   res.Report,
		Taxonomy: res.Taxonomy,
		Notes:    export.Documents(res.Notes),
	}
}

// ExtractRequest is the request body for extracting quotes.
type ExtractRequest struct {
	Text string `json:"text" example:"Page 12 | Highlight\nAttention is paid." validate:"required"`
}

// ExtractResponse lists the extracted quotes.
type ExtractResponse = noteservice.Extraction

// InspectRequest is the request body for parsing a note document.
type InspectRequest struct {
	Content string `json:"content" example:"---\nnote-type: quote\n---\n\n> Text" validate:"required"`
}

// NoteDetail is the parsed note returned by inspect (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// RunListResponse wraps the run history.
type RunListResponse struct {
	Runs []cache.RunRow `json:"runs" validate:"required"`
}

// ExportResponse lists the files a directory export wrote.
type ExportResponse = noteservice.Exported

// ContractResponse carries the note format description.
type ContractResponse struct {
	Contract string `json:"contract" validate:"required"`
}
