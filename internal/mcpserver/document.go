package mcpserver

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/dagaz/internal/review"
)

const maxDocumentSize = 20 << 20 // 20 MB

var (
	safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

	docxMIMEs = map[string]bool{
		review.DocxContentType:     true,
		"application/octet-stream": true,
		"application/zip":          true,
	}
)

// decodeDocument accepts standard or unpadded base64, or a base64 data URI
// with a Word or generic binary media type.
func decodeDocument(raw string) ([]byte, error) {
	encoded := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, fmt.Errorf("invalid data URI: missing comma separator")
		}
		if !strings.Contains(meta, ";base64") {
			return nil, fmt.Errorf("only base64 data URIs are supported")
		}
		mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
		if !docxMIMEs[mime] {
			return nil, fmt.Errorf("unsupported MIME type in data URI: %s", mime)
		}
		encoded = payload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("document too large: %d bytes (max %d)", len(data), maxDocumentSize)
	}
	return data, nil
}

// sanitizeFilename reduces name to a flat file name of safe characters.
func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "document.docx"
	}
	return safeFilenameRe.ReplaceAllString(base, "_")
}
