// Package extract turns files dropped into the inbox or uploaded over
// the API into plain text ready for ingestion.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content plus the
// source type recorded on the ingested document. Plain text formats
// (.txt, .md, .rst) are returned as-is after UTF-8 validation; PDF,
// DOCX, and XLSX are decoded from their binary formats.
func (e *Extractor) Extract(path string) (text, sourceType string, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"). Unknown extensions
// are treated as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (text, sourceType string, err error) {
	switch ext {
	case ".pdf":
		text, err = extractPDF(content)
		return text, "pdf", err
	case ".docx":
		text, err = extractDOCX(content)
		return text, "docx", err
	case ".xlsx":
		text, err = extractExcel(content)
		return text, "xlsx", err
	default:
		text, err = extractPlain(content)
		return text, "text", err
	}
}

// extractPlain returns content as a string, replacing invalid UTF-8
// sequences with the replacement character.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}
	return string(content), nil
}
