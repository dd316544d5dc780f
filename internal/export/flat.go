// Package export converts banding trees to and from their interchange forms:
// the canonical flat node list (JSON or YAML), the nested document, and a
// plain-text outline.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/bandtree/internal/tree"
)

// Format names an interchange form.
type Format string

const (
	FormatFlat   Format = "flat"
	FormatNested Format = "nested"
	FormatYAML   Format = "yaml"
)

// ErrUnknownFormat is returned for a format name outside flat, nested and yaml.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat accepts flat, json (alias of flat), nested or yaml. Empty means flat.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "flat", "json":
		return FormatFlat, nil
	case "nested":
		return FormatNested, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFormat, s)
}

// DetectFormat guesses the format of a file from its extension, then from
// its first non-blank byte: '{' is a nested document, anything else a flat
// node list.
func DetectFormat(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatNested
	}
	return FormatFlat
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// Source is the read side of a tree store.
type Source interface {
	Root() (tree.Node, bool)
	Find(id string) (tree.Node, error)
	Nodes() []tree.Node
}

// Encode renders src in format f.
func Encode(src Source, f Format) ([]byte, error) {
	switch f {
	case FormatFlat:
		return EncodeJSON(src.Nodes())
	case FormatYAML:
		return EncodeYAML(src.Nodes())
	case FormatNested:
		doc, err := BuildDocument(src)
		if err != nil {
			return nil, err
		}
		return json.MarshalIndent(doc, "", "  ")
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownFormat, f)
}

// Decode parses data in format f and restores it into a store.
func Decode(data []byte, f Format, opts ...tree.Option) (*tree.Store, error) {
	switch f {
	case FormatFlat:
		nodes, err := DecodeJSON(data)
		if err != nil {
			return nil, err
		}
		return tree.Restore(nodes, opts...)
	case FormatYAML:
		nodes, err := DecodeYAML(data)
		if err != nil {
			return nil, err
		}
		return tree.Restore(nodes, opts...)
	case FormatNested:
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse nested document: %w", err)
		}
		return doc.Store(opts...)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownFormat, f)
}

// EncodeJSON writes the canonical ordered node list.
func EncodeJSON(nodes []tree.Node) ([]byte, error) {
	if nodes == nil {
		nodes = []tree.Node{}
	}
	return json.MarshalIndent(nodes, "", "  ")
}

// DecodeJSON reads a node list written by EncodeJSON. Unknown fields are
// rejected.
func DecodeJSON(data []byte) ([]tree.Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var nodes []tree.Node
	if err := dec.Decode(&nodes); err != nil {
		return nil, fmt.Errorf("parse node list: %w", err)
	}
	return nodes, nil
}

// EncodeYAML writes the node list as YAML.
func EncodeYAML(nodes []tree.Node) ([]byte, error) {
	if nodes == nil {
		nodes = []tree.Node{}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(nodes); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeYAML reads a node list written by EncodeYAML.
func DecodeYAML(data []byte) ([]tree.Node, error) {
	var nodes []tree.Node
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("parse yaml node list: %w", err)
	}
	return nodes, nil
}
