package review

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/remote"
)

// DocxContentType is the MIME type of Word documents.
const DocxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// MsgDownloadFailed is shown when a document cannot be produced.
const MsgDownloadFailed = "Failed to download document"

// Download is a decoded document ready to be served.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Encode base64-encodes document bytes for transport.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode reverses Encode.
func Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

// DecodeDownload turns a platform document into bytes. documentType names
// the file when the platform sends no filename. Nothing is produced on error.
func DecodeDownload(file *remote.DocumentFile, documentType string) (*Download, error) {
	if file == nil || strings.TrimSpace(file.DocxBase64) == "" {
		return nil, &apperr.SubmissionError{Message: MsgDownloadFailed, Err: errors.New("review: empty document")}
	}
	data, err := Decode(file.DocxBase64)
	if err != nil {
		return nil, &apperr.SubmissionError{Message: MsgDownloadFailed, Err: fmt.Errorf("review: decode document: %w", err)}
	}

	name := file.Filename
	if name == "" {
		name = documentType + ".docx"
	}
	return &Download{
		Filename:    name,
		ContentType: DetectContentType(data),
		Data:        data,
	}, nil
}

// DetectContentType sniffs document bytes. Generic archives are reported as
// Word documents since that is what the platform stores.
func DetectContentType(data []byte) string {
	mt := mimetype.Detect(data)
	if mt.Is("application/zip") || mt.Is("application/octet-stream") {
		return DocxContentType
	}
	return mt.String()
}
