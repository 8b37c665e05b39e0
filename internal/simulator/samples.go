package simulator

import (
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/franckalain/foodanalysis/internal/nutrition"
)

// PlaceholderName is written when the samples directory has no images.
const PlaceholderName = "placeholder.jpg"

// placeholderJPEG is a bare JFIF header followed by end-of-image.
var placeholderJPEG = []byte{
	0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 0x4a, 0x46, 0x49, 0x46,
	0x00, 0x01, 0x01, 0x01, 0x00, 0x48, 0x00, 0x48, 0x00, 0x00,
	0xff, 0xd9,
}

const sampleSVG = `<?xml version="1.0" encoding="UTF-8"?>
<svg width="400" height="300" xmlns="http://www.w3.org/2000/svg">
  <rect width="400" height="300" fill="%s"/>
  <text x="200" y="150" font-family="Arial, sans-serif" font-size="24" fill="white" text-anchor="middle" dominant-baseline="middle">%s</text>
  <text x="200" y="180" font-family="Arial, sans-serif" font-size="14" fill="white" text-anchor="middle" dominant-baseline="middle">Sample Food Image</text>
</svg>
`

// WritePlaceholder creates dir/placeholder.jpg unless it already exists and
// returns its path.
func WritePlaceholder(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, PlaceholderName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return path, nil
	}
	if err != nil {
		return "", err
	}
	if _, err := f.Write(placeholderJPEG); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// SampleFileName is the SVG card name for a profile, e.g. "apple.svg".
func SampleFileName(p nutrition.Profile) string {
	base := strings.TrimSuffix(p.SampleImage, filepath.Ext(p.SampleImage))
	if base == "" {
		base = strings.ToLower(p.Name)
	}
	return base + ".svg"
}

// CreateSamples writes one coloured SVG card per known food into dir,
// overwriting existing cards. It returns the written paths.
func CreateSamples(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create samples directory: %w", err)
	}

	var written []string
	for _, p := range nutrition.Profiles() {
		path := filepath.Join(dir, SampleFileName(p))
		svg := fmt.Sprintf(sampleSVG, html.EscapeString(p.Color), html.EscapeString(p.Name))
		if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
