package transform

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Format is an output image encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
)

// ParseFormat normalizes a configured output format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (supported: png, webp, jpeg)", s)
	}
}

// ParseFormats parses and de-duplicates a format list, keeping its order.
func ParseFormats(names []string) ([]Format, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one output format is required")
	}
	seen := make(map[Format]bool, len(names))
	formats := make([]Format, 0, len(names))
	for _, name := range names {
		f, err := ParseFormat(name)
		if err != nil {
			return nil, err
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		formats = append(formats, f)
	}
	return formats, nil
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// SupportsAlpha reports whether the encoding keeps transparency.
func (f Format) SupportsAlpha() bool {
	return f != FormatJPEG
}

// sourceFormats maps accepted source MIME types to short names.
var sourceFormats = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpeg",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/bmp":  "bmp",
	"image/tiff": "tiff",
}

// DetectSourceFormat sniffs the content type of data. It returns the short
// format name, the detected MIME type, and whether the format can be decoded.
func DetectSourceFormat(data []byte) (format string, mime string, ok bool) {
	m := mimetype.Detect(data)
	for candidate := m; candidate != nil; candidate = candidate.Parent() {
		if name, found := sourceFormats[candidate.String()]; found {
			return name, candidate.String(), true
		}
	}
	return "", m.String(), false
}

// IsSupportedUpload reports whether data is an image the pipeline can take.
func IsSupportedUpload(data []byte) (string, bool) {
	_, mime, ok := DetectSourceFormat(data)
	return mime, ok
}
