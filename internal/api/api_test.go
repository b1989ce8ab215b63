package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/marginalia/internal/export"
	"github.com/starford/marginalia/internal/noteservice"
	"github.com/starford/marginalia/internal/pipeline"
	"github.com/starford/marginalia/internal/sse"
	"github.com/starford/marginalia/internal/testutil"
)

// testEnv sets up a cache DB, service, and router for testing.
// An empty token means auth is disabled.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) http.Handler {
	t.Helper()
	router, _ := testEnvOutput(t, authEnabled, authToken, sseHandler)
	return router
}

// testEnvOutput is testEnvFull that also returns the output directory.
func testEnvOutput(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (http.Handler, string) {
	t.Helper()

	dir, out := testutil.TestDir(t)
	db := testutil.TestDB(t)

	conv := pipeline.New(pipeline.WithCache(db))
	svc := noteservice.NewService(conv, db, pipeline.NewSession(), out)
	return NewRouter(svc, authEnabled, authToken, sseHandler), dir
}

func sampleBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(ConvertRequest{Source: pipeline.SampleSource, Text: pipeline.SampleText})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func do(router http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestConvert_JSON(t *testing.T) {
	router := testEnv(t, "")

	w := do(router, http.MethodPost, "/convert", sampleBody(t))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ConvertResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Report.Quotes != 3 {
		t.Errorf("quotes = %d, want 3", resp.Report.Quotes)
	}
	if resp.Report.Tagging != pipeline.TaggingFallback {
		t.Errorf("tagging = %q, want fallback", resp.Report.Tagging)
	}
	if len(resp.Notes) != 5 {
		t.Fatalf("notes = %d, want 5", len(resp.Notes))
	}
	if resp.Notes[0].Filename != "stand-out-of-our-light.md" {
		t.Errorf("source filename = %q", resp.Notes[0].Filename)
	}
	if !strings.HasPrefix(resp.Notes[0].Content, "---\nnote-type: source\n") {
		t.Errorf("source content = %q", resp.Notes[0].Content)
	}
}

func TestConvert_Zip(t *testing.T) {
	router := testEnv(t, "")

	w := do(router, http.MethodPost, "/convert?format=zip", sampleBody(t))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "application/zip" {
		t.Errorf("content type = %q", got)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="stand-out-of-our-light-highlights.zip"` {
		t.Errorf("disposition = %q", got)
	}
	if w.Header().Get("X-Run-Id") == "" {
		t.Error("missing X-Run-Id")
	}
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	if len(zr.File) != 5 {
		t.Errorf("entries = %d, want 5", len(zr.File))
	}
}

func TestConvert_CSV(t *testing.T) {
	router := testEnv(t, "")

	w := do(router, http.MethodPost, "/convert?format=csv", sampleBody(t))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	records, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("rows = %d, want header + 5", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(export.Columns, ",") {
		t.Errorf("header = %v", records[0])
	}
}

func TestConvert_Errors(t *testing.T) {
	router := testEnv(t, "")

	cases := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"bad json", "/convert", "{", http.StatusBadRequest},
		{"bad format", "/convert?format=pdf", `{}`, http.StatusBadRequest},
		{"dir format", "/convert?format=dir", `{}`, http.StatusBadRequest},
		{"missing title", "/convert", `{"source":{"authors":["A"]},"text":"Page 1 | Highlight\nx"}`, http.StatusUnprocessableEntity},
		{"missing author", "/convert", `{"source":{"title":"T"},"text":"Page 1 | Highlight\nx"}`, http.StatusUnprocessableEntity},
		{"bad source format", "/convert", `{"source":{"title":"T","authors":["A"],"format":"scroll"}}`, http.StatusUnprocessableEntity},
		{"unknown mode", "/convert", `{"source":{"title":"T","authors":["A"]},"settings":{"mode":"premium"}}`, http.StatusBadRequest},
		{"no suggester", "/convert", `{"source":{"title":"T","authors":["A"]},"settings":{"mode":"batch"}}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(router, http.MethodPost, tc.target, []byte(tc.body))
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestConvert_EmptyTextIsNotAnError(t *testing.T) {
	router := testEnv(t, "")

	w := do(router, http.MethodPost, "/convert", []byte(`{"source":{"title":"Deep Work","authors":["Cal Newport"]},"text":"no markers here"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ConvertResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Report.Quotes != 0 || len(resp.Report.Warnings) == 0 {
		t.Errorf("report = %+v", resp.Report)
	}
	if len(resp.Notes) != 2 {
		t.Errorf("notes = %d, want source + author", len(resp.Notes))
	}
}

func TestExtract(t *testing.T) {
	router := testEnv(t, "")

	body, _ := json.Marshal(ExtractRequest{Text: pipeline.SampleText})
	w := do(router, http.MethodPost, "/extract", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ExtractResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 3 || len(resp.Quotes) != 3 {
		t.Errorf("count = %d, quotes = %d", resp.Count, len(resp.Quotes))
	}
	if resp.Quotes[2].Page != "88" {
		t.Errorf("page = %q, want 88", resp.Quotes[2].Page)
	}
}

func TestInspect(t *testing.T) {
	router := testEnv(t, "")

	doc := "---\nnote-type: source\nauthor: [\"[[james-williams]]\"]\n---\n\n# Stand Out of Our Light\n\nSummary goes here.\n"
	body, _ := json.Marshal(InspectRequest{Content: doc})
	w := do(router, http.MethodPost, "/inspect", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var d NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &d)
	if d.Title != "Stand Out of Our Light" {
		t.Errorf("title = %q", d.Title)
	}
	if len(d.Links) != 1 || d.Links[0] != "james-williams" {
		t.Errorf("links = %v", d.Links)
	}

	w = do(router, http.MethodPost, "/inspect", []byte(`{"content":""}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty content = %d, want 400", w.Code)
	}
}

func TestSessionExportAndReset(t *testing.T) {
	router := testEnv(t, "")

	w := do(router, http.MethodGet, "/session", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("empty session = %d, want 404", w.Code)
	}

	if w := do(router, http.MethodPost, "/convert", sampleBody(t)); w.Code != http.StatusOK {
		t.Fatalf("convert = %d", w.Code)
	}

	w = do(router, http.MethodGet, "/session?format=csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("session csv = %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "filename,title,") {
		t.Errorf("csv = %q", w.Body.String())
	}

	w = do(router, http.MethodDelete, "/session", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("reset = %d, want 204", w.Code)
	}
	w = do(router, http.MethodGet, "/session", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("after reset = %d, want 404", w.Code)
	}
}

func TestSessionExportDir(t *testing.T) {
	router, dir := testEnvOutput(t, false, "", nil)

	if w := do(router, http.MethodGet, "/session?format=dir", nil); w.Code != http.StatusNotFound {
		t.Errorf("empty session dir = %d, want 404", w.Code)
	}
	if w := do(router, http.MethodPost, "/convert", sampleBody(t)); w.Code != http.StatusOK {
		t.Fatalf("convert = %d", w.Code)
	}

	w := do(router, http.MethodGet, "/session?format=dir", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("session dir = %d, body %s", w.Code, w.Body.String())
	}
	var resp ExportResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Format != export.FormatDir || resp.Name != "stand-out-of-our-light" {
		t.Errorf("export = %+v", resp)
	}
	if len(resp.Paths) != 5 || resp.Paths[0] != "stand-out-of-our-light/stand-out-of-our-light.md" {
		t.Fatalf("paths = %v", resp.Paths)
	}
	for _, p := range resp.Paths {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(p))); err != nil {
			t.Errorf("missing %s: %v", p, err)
		}
	}
}

func TestRuns(t *testing.T) {
	router := testEnv(t, "")

	w := do(router, http.MethodPost, "/convert", sampleBody(t))
	var resp ConvertResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)

	w = do(router, http.MethodGet, "/runs?limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("runs = %d", w.Code)
	}
	var list RunListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Runs) != 1 || list.Runs[0].ID != resp.Report.RunID {
		t.Fatalf("runs = %+v", list.Runs)
	}
	if list.Runs[0].Tagging != "fallback" {
		t.Errorf("tagging = %q", list.Runs[0].Tagging)
	}

	w = do(router, http.MethodGet, "/runs/"+resp.Report.RunID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get run = %d", w.Code)
	}
	w = do(router, http.MethodGet, "/runs/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing run = %d, want 404", w.Code)
	}
}

func TestContract(t *testing.T) {
	router := testEnv(t, "")

	w := do(router, http.MethodGet, "/contract", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ContractResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.Contains(resp.Contract, "note-type: quote") {
		t.Error("contract missing quote example")
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodPost, "/convert", bytes.NewReader(sampleBody(t)))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed convert = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := testEnv(t, "secret123")

	w := do(router, http.MethodGet, "/runs", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router := testEnv(t, "")

	w := do(router, http.MethodGet, "/runs", nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func TestSSEEvents_AuthProtected(t *testing.T) {
	b := sse.NewBroker(0)
	defer b.Close()
	router := testEnvFull(t, true, "secret", b)

	w := do(router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	b := sse.NewBroker(0)
	defer b.Close()
	router := testEnvFull(t, true, "tok", b)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
