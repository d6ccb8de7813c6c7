// Package normalisers provides text extraction helpers for the document
// formats a vault can hold.
//
// The markdown package parses frontmatter and wiki links; the pdf package
// extracts plain text from PDF bytes through pdftotext.
package normalisers
