package util

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"strings"
)

// SniffMIME detects the content type of an uploaded document by magic bytes.
// Returns "" when the bytes are not a format the scanner knows about.
func SniffMIME(b []byte) string {
	switch {
	// JPEG: FF D8
	case len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8:
		return "image/jpeg"
	// PNG
	case len(b) >= 8 && bytes.Equal(b[:8], []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	// PDF
	case len(b) >= 5 && string(b[:5]) == "%PDF-":
		return "application/pdf"
	// TIFF, little and big endian
	case len(b) >= 4 && (string(b[:4]) == "II*\x00" || string(b[:4]) == "MM\x00*"):
		return "image/tiff"
	}

	ct := http.DetectContentType(b)
	switch ct {
	case "image/gif", "image/webp", "image/bmp":
		return ct
	}
	return ""
}

// IsPDF reports whether mime names a paginated document.
func IsPDF(mime string) bool {
	return strings.EqualFold(strings.TrimSpace(mime), "application/pdf")
}

func MakeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64MaybeDataURL decodes base64. For a data: URI the MIME from the prefix is returned too.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hintMIME string
	if strings.HasPrefix(s, "data:") {
		// data:<mime>;base64,<payload>
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hintMIME = meta[:semi]
			} else {
				hintMIME = meta
			}
			s = s[idx+1:]
		}
	}
	// standard alphabet first, then URL-safe
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, hintMIME, nil
	} else if b2, err2 := base64.URLEncoding.DecodeString(s); err2 == nil {
		return b2, hintMIME, nil
	} else {
		return nil, "", err
	}
}
