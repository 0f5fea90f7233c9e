package ats

import (
	"mime"
	"path/filepath"
	"strings"
)

// DocumentFormat is a résumé file format text can be extracted from.
type DocumentFormat string

const (
	FormatPDF     DocumentFormat = "pdf"
	FormatDOCX    DocumentFormat = "docx"
	FormatTXT     DocumentFormat = "txt"
	FormatUnknown DocumentFormat = ""
)

// RawDocument is an uploaded résumé before text extraction.
type RawDocument struct {
	Name   string
	Format DocumentFormat
	Data   []byte
}

// DetectFormat picks the format from the file extension, falling back to
// the declared content type.
func DetectFormat(name, contentType string) DocumentFormat {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".txt":
		return FormatTXT
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return FormatUnknown
	}
	switch mediaType {
	case "application/pdf":
		return FormatPDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return FormatDOCX
	case "text/plain":
		return FormatTXT
	}
	return FormatUnknown
}
