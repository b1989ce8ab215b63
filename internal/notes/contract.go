package notes

// Contract describes the note documents a conversion produces, for API and
// MCP consumers that read or post-process them.
const Contract = `# Marginalia Note Format

A conversion turns one highlight export into three kinds of linked Markdown
notes: one source note, one note per author, one note per highlight.

## Document layout

` + "```" + `markdown
---
<header lines>
---

<body>
` + "```" + `

The file ends with a single newline. Header values are plain when they are an
integer or a simple word-like string, otherwise double-quoted with ` + "`\\\\`" + `,
` + "`\\\"`" + `, ` + "`\\n`" + `, ` + "`\\r`" + ` and ` + "`\\t`" + ` escapes. Back-references are
always quoted wikilinks: ` + "`\"[[stem]]\"`" + `.

## Source note

Header order: ` + "`note-type: source`" + `, ` + "`tags`" + ` (only when the source has
tags), ` + "`author`" + ` (inline list of author links), ` + "`year`" + `, ` + "`publisher`" + `,
` + "`format`" + `, ` + "`link`" + `, ` + "`citation`" + `.
Body: ` + "`# <full title>`" + `, a blank line, then the summary.
Filename: slug of the title before its first colon, else ` + "`source`" + `.

## Author note

Header: ` + "`note-type: author`" + `. Body: the bio (first author only) or a
placeholder. Filename: slug of the name, else ` + "`author-N`" + `.

## Quote note

Header order: ` + "`note-type: quote`" + `, ` + "`source`" + ` (link), ` + "`author`" + ` (inline
list of links), ` + "`tags`" + `, ` + "`page`" + `, ` + "`link`" + ` (omitted when empty).
A quote without tags renders ` + "`tags:`" + ` followed by a single ` + "`  -`" + ` line.
Body: ` + "`> <quote text>`" + `.
Filename: slug of the suggested phrase (80 characters), else of the first 50
characters of the quote, else ` + "`quote-N`" + `.

## Names

Slugs are lowercase ASCII letters, digits, underscores and hyphens, at most 60
characters, or 80 for a suggested quote phrase. Filenames are unique within a
conversion: repeats get ` + "`-2`" + `, ` + "`-3`" + ` and so on, in the order
source, authors, quotes. Tags are lowercase and kebab-case with any namespace
prefix removed (` + "`topics/Deep Work`" + ` becomes ` + "`deep-work`" + `).

## Example

` + "```" + `markdown
---
note-type: quote
source: "[[stand-out-of-our-light]]"
author: ["[[james-williams]]"]
tags:
  - attention
  - freedom
page: 88
---

> The liberation of human attention may be the defining moral and political struggle of our time.
` + "```" + `
`
