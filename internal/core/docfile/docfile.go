// Package docfile reads and writes vault documents: markdown files with a
// YAML frontmatter header delimited by "---" fences.
//
// Parsing is strict. Headers are validated eagerly and unknown fields are
// rejected rather than best-effort parsed, so a malformed document surfaces
// as a validation error instead of a half-populated record.
package docfile

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontmatter indicates the document did not start with a YAML fence.
	ErrMissingFrontmatter = errors.New("docfile: missing frontmatter")
	// ErrMalformedFrontmatter indicates the header block was not properly fenced.
	ErrMalformedFrontmatter = errors.New("docfile: malformed frontmatter")
)

// Split separates a document into its raw YAML header and markdown body.
func Split(content []byte) (header, body []byte, err error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return nil, nil, ErrMissingFrontmatter
	}

	rest := normalized[4:]
	parts := bytes.SplitN(rest, []byte("\n---\n"), 2)
	if len(parts) < 2 {
		// Allow a header-only document that ends at the closing fence.
		trimmed := bytes.TrimSuffix(rest, []byte("\n"))
		if bytes.HasSuffix(trimmed, []byte("\n---")) {
			return bytes.TrimSuffix(trimmed, []byte("\n---")), nil, nil
		}
		return nil, nil, ErrMalformedFrontmatter
	}
	return parts[0], parts[1], nil
}

// DecodeHeader unmarshals a raw YAML header into out, rejecting unknown fields.
func DecodeHeader(header []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(header))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("docfile: decode header: %w", err)
	}
	return nil
}

// Render produces a complete document from a header struct and markdown body.
// The body is written verbatim after the closing fence, so Split followed by
// Render reproduces the original document byte for byte. Field order follows
// the header struct definition, so rendering is deterministic.
func Render(header any, body string) ([]byte, error) {
	data, err := yaml.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("docfile: encode header: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(data, "\n"))
	buf.WriteString("\n---\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}
