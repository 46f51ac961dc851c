package reader

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Document is the active text buffer.
type Document struct {
	Name string
	Text string
}

// Present reports whether there is anything to read.
func (d Document) Present() bool {
	return d.Text != ""
}

// DecodeText reads r the way a browser reads a file as text: UTF-8 unless a
// BOM says otherwise, with invalid sequences replaced by U+FFFD.
func DecodeText(r io.Reader) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(r, dec))
	if err != nil {
		return "", fmt.Errorf("failed to decode document: %w", err)
	}
	return string(data), nil
}
