// Package frontmatter reads and writes markdown documents that open with a
// YAML header between --- lines.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---\n"

// Split separates the YAML header of data from its body. data must begin
// with a --- line and the header ends at the next --- line.
func Split(data []byte) (header, body []byte, err error) {
	if !bytes.HasPrefix(data, []byte(delim)) {
		return nil, nil, fmt.Errorf("frontmatter: missing opening --- delimiter")
	}
	rest := data[len(delim):]
	var idx int
	if bytes.HasPrefix(rest, []byte(delim)) {
		idx = -1
	} else if idx = bytes.Index(rest, []byte("\n---")); idx < 0 {
		return nil, nil, fmt.Errorf("frontmatter: missing closing --- delimiter")
	}
	header = rest[:idx+1]
	tail := rest[idx+1+len("---"):]
	tail = bytes.TrimPrefix(tail, []byte("\n"))
	// One blank line separates the header from the body.
	tail = bytes.TrimPrefix(tail, []byte("\n"))
	return header, tail, nil
}

// Decode unmarshals the header of data into v and returns the body.
func Decode(data []byte, v any) (string, error) {
	header, body, err := Split(data)
	if err != nil {
		return "", err
	}
	if err := yaml.Unmarshal(header, v); err != nil {
		return "", fmt.Errorf("frontmatter: unmarshal: %w", err)
	}
	return string(body), nil
}

// Render marshals v as the header of a markdown document followed by body.
func Render(v any, body string) (string, error) {
	header, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("frontmatter: marshal: %w", err)
	}
	var b strings.Builder
	b.WriteString(delim)
	b.Write(header)
	b.WriteString(delim)
	if body != "" {
		b.WriteString("\n")
		b.WriteString(body)
	}
	return b.String(), nil
}
