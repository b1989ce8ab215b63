package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/starford/marginalia/internal/models"
)

// Columns is the CSV header row.
var Columns = []string{
	"filename", "title", "source", "author", "year", "publisher",
	"format", "page", "note-type", "tags", "body",
}

var errBadHeader = errors.New("export: unexpected CSV header")

// Row is one note projected onto the CSV columns.
type Row struct {
	Filename  string
	Title     string
	Source    string
	Author    string
	Year      string
	Publisher string
	Format    string
	Page      string
	NoteType  string
	Tags      string
	Body      string
}

func (r Row) record() []string {
	return []string{
		r.Filename, r.Title, r.Source, r.Author, r.Year, r.Publisher,
		r.Format, r.Page, r.NoteType, r.Tags, r.Body,
	}
}

func rowFromRecord(rec []string) Row {
	return Row{
		Filename: rec[0], Title: rec[1], Source: rec[2], Author: rec[3], Year: rec[4],
		Publisher: rec[5], Format: rec[6], Page: rec[7], NoteType: rec[8], Tags: rec[9], Body: rec[10],
	}
}

// RowOf projects a note onto the CSV columns. List values are joined with
// ", "; fields a note does not carry stay empty.
func RowOf(n models.Note) Row {
	get := func(key string) string {
		v, _ := n.Get(key)
		return v.Flat()
	}
	return Row{
		Filename:  n.Stem(),
		Title:     n.Title,
		Source:    get("source"),
		Author:    get("author"),
		Year:      get("year"),
		Publisher: get("publisher"),
		Format:    get("format"),
		Page:      get("page"),
		NoteType:  get("note-type"),
		Tags:      get("tags"),
		Body:      n.Body,
	}
}

// CSV writes the header row and one row per note.
func CSV(w io.Writer, ns []models.Note) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("export: csv header: %w", err)
	}
	for _, n := range ns {
		if err := cw.Write(RowOf(n).record()); err != nil {
			return fmt.Errorf("export: csv row %s: %w", n.Filename, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: csv flush: %w", err)
	}
	return nil
}

// ReadCSV parses a table written by CSV.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("export: csv header: %w", err)
	}
	for i, c := range Columns {
		if header[i] != c {
			return nil, fmt.Errorf("%w: column %d is %q", errBadHeader, i, header[i])
		}
	}
	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("export: csv row: %w", err)
		}
		rows = append(rows, rowFromRecord(rec))
	}
}
