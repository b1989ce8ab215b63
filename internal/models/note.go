// Package models defines the domain types shared by the conversion pipeline.
package models

import "strings"

// NoteKind distinguishes the three note families written per run.
type NoteKind string

const (
	KindSource NoteKind = "source"
	KindAuthor NoteKind = "author"
	KindQuote  NoteKind = "quote"
)

// ValueKind selects how a header value is laid out.
type ValueKind int

const (
	// ScalarValue renders on the key line.
	ScalarValue ValueKind = iota
	// InlineListValue renders as [a, b] on the key line.
	InlineListValue
	// BlockListValue renders as indented "  - item" lines.
	BlockListValue
)

// Value is a header value. Items is used by the list kinds, Text by scalars.
type Value struct {
	Kind  ValueKind `json:"kind"`
	Text  string    `json:"text,omitempty"`
	Items []string  `json:"items,omitempty"`
}

// Scalar returns a scalar header value.
func Scalar(text string) Value { return Value{Kind: ScalarValue, Text: text} }

// InlineList returns an inline list header value.
func InlineList(items ...string) Value { return Value{Kind: InlineListValue, Items: items} }

// BlockList returns a block list header value.
func BlockList(items ...string) Value { return Value{Kind: BlockListValue, Items: items} }

// Flat returns the value as one line of text: the scalar itself, or the list
// items joined with ", ".
func (v Value) Flat() string {
	if v.Kind == ScalarValue {
		return v.Text
	}
	return strings.Join(v.Items, ", ")
}

// Field is one key/value pair of a note header.
type Field struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// Note is one rendered knowledge-base document.
type Note struct {
	Filename string   `json:"filename"`
	Kind     NoteKind `json:"kind"`
	Title    string   `json:"title,omitempty"`
	Header   []Field  `json:"header"`
	Body     string   `json:"body"`
}

// Stem returns the filename without its ".md" extension. Back-references use it.
func (n Note) Stem() string {
	return strings.TrimSuffix(n.Filename, ".md")
}

// Get returns the header value stored under key.
func (n Note) Get(key string) (Value, bool) {
	for _, f := range n.Header {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Link formats a back-reference to the note with the given stem.
func Link(stem string) string {
	return "[[" + stem + "]]"
}
