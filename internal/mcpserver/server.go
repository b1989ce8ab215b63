// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Marginalia tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/export"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/notes"
	"github.com/starford/marginalia/internal/noteservice"
	"github.com/starford/marginalia/internal/pipeline"
)

const noteFormatURI = "marginalia://note-format"

// Server wraps the MCP server with Marginalia tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all Marginalia tools registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Marginalia",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("extract_highlights",
		mcp.WithDescription("Split a Kindle highlight export into quotes with page numbers, without building notes."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw highlight export text")),
	), s.extractHighlights)

	s.mcp.AddTool(mcp.NewTool("convert_highlights",
		mcp.WithDescription("Convert a Kindle highlight export into linked Markdown notes: one source note, "+
			"one note per author and one note per quote. The result becomes the current session; "+
			"use export_session to fetch it as JSON, CSV, a zip archive or files."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw highlight export text")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title of the book or article")),
		mcp.WithString("authors", mcp.Required(), mcp.Description("Author names separated by semicolons")),
		mcp.WithString("year", mcp.Description("Publication year")),
		mcp.WithString("publisher", mcp.Description("Publisher")),
		mcp.WithString("link", mcp.Description("URL of the source")),
		mcp.WithString("citation", mcp.Description("Citation; generated when empty")),
		mcp.WithString("summary", mcp.Description("Summary for the source note")),
		mcp.WithString("author_bio", mcp.Description("Bio for the first author")),
		mcp.WithString("tags", mcp.Description("Source tags separated by commas")),
		mcp.WithString("format", mcp.Description("book, article, essay, report, podcast, video or other")),
		mcp.WithString("mode", mcp.Description("Tagging mode: batch, item, keywords or none")),
	), s.convertHighlights)

	s.mcp.AddTool(mcp.NewTool("export_session",
		mcp.WithDescription("Export the latest conversion. json and csv are returned inline; "+
			"zip and dir are written to the output directory and their paths returned."),
		mcp.WithString("format", mcp.Description("json (default), csv, zip or dir")),
	), s.exportSession)

	s.mcp.AddTool(mcp.NewTool("reset_session",
		mcp.WithDescription("Discard the latest conversion."),
	), s.resetSession)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the format of the notes a conversion produces. "+
			"Read it before post-processing generated notes."),
	), s.getNoteContract)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource(noteFormatURI, "Note Format",
			mcp.WithResourceDescription("Format of the source, author and quote notes a conversion produces."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) extractHighlights(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.Extract(ctx, text))
}

func (s *Server) convertHighlights(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	authors, err := req.RequireString("authors")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := pipeline.ParseMode(optional(req, "mode"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.svc.Convert(ctx, pipeline.Request{
		Source: models.SourceMetadata{
			Title:     title,
			Authors:   splitList(authors, ";"),
			AuthorBio: optional(req, "author_bio"),
			Year:      optional(req, "year"),
			Publisher: optional(req, "publisher"),
			Link:      optional(req, "link"),
			Citation:  optional(req, "citation"),
			Summary:   optional(req, "summary"),
			Tags:      splitList(optional(req, "tags"), ","),
			Format:    models.Format(optional(req, "format")),
		},
		Text:     text,
		Settings: pipeline.Settings{Mode: mode},
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	filenames := make([]string, len(res.Notes))
	for i, n := range res.Notes {
		filenames[i] = n.Filename
	}
	return jsonResult(map[string]any{
		"report": res.Report,
		"notes":  filenames,
	})
}

func (s *Server) exportSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := export.ParseFormat(optional(req, "format"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.ExportSession(ctx, format)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError("no conversion in session; call convert_highlights first"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if out.Content != "" {
		return mcp.NewToolResultText(out.Content), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("wrote %s:\n%s", out.Name, strings.Join(out.Paths, "\n"))), nil
}

func (s *Server) resetSession(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.svc.ResetSession(ctx)
	return mcp.NewToolResultText("session cleared"), nil
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(notes.Contract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      noteFormatURI,
			MIMEType: "text/markdown",
			Text:     notes.Contract,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// optional returns the string argument key, or "" when it is absent.
func optional(req mcp.CallToolRequest, key string) string {
	if v, err := req.RequireString(key); err == nil {
		return v
	}
	return ""
}

// splitList splits s on sep and drops blank items.
func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
