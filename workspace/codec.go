package workspace

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/c360/vizflow/errors"
)

// Format is a document encoding.
type Format string

// Supported formats
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// maxDocumentSize bounds documents read from files and streams.
const maxDocumentSize = 32 << 20

//go:embed schema.json
var schemaJSON []byte

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
})

// Schema returns the JSON schema documents are validated against.
func Schema() []byte { return bytes.Clone(schemaJSON) }

// FormatFromPath picks the format by file extension. Unknown extensions
// are JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Validate checks raw JSON against the workspace schema.
func Validate(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return errors.WrapFatal(err, "Workspace", "Validate", "compile schema")
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"Workspace", "Validate", "parse document")
	}
	if result.Valid() {
		return nil
	}

	var b strings.Builder
	for _, desc := range result.Errors() {
		fmt.Fprintf(&b, "\n  - %s: %s", desc.Field(), desc.Description())
	}
	return errors.WrapInvalid(fmt.Errorf("%w:%s", errors.ErrSchemaViolation, b.String()),
		"Workspace", "Validate", "schema check")
}

// Unmarshal decodes, validates and version checks a document.
func Unmarshal(data []byte, format Format) (*Document, error) {
	if len(data) > maxDocumentSize {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: document of %d bytes exceeds %d", errors.ErrInvalidData, len(data), maxDocumentSize),
			"Workspace", "Unmarshal", "size check")
	}

	if format == FormatYAML {
		// Validation and decoding both run on the JSON form.
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
				"Workspace", "Unmarshal", "decode yaml")
		}
		converted, err := json.Marshal(raw)
		if err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
				"Workspace", "Unmarshal", "convert yaml")
		}
		data = converted
	}

	if err := Validate(data); err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"Workspace", "Unmarshal", "decode json")
	}
	if doc.Version > CurrentVersion {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: version %d, supported %d", errors.ErrVersionTooNew, doc.Version, CurrentVersion),
			"Workspace", "Unmarshal", "version check")
	}
	return &doc, nil
}

// Marshal encodes a document. JSON output is indented.
func Marshal(doc *Document, format Format) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.WrapFatal(err, "Workspace", "Marshal", "encode json")
	}
	if format != FormatYAML {
		return append(data, '\n'), nil
	}

	// Going through JSON keeps one set of field names for both formats.
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapFatal(err, "Workspace", "Marshal", "convert to yaml")
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(raw); err != nil {
		return nil, errors.WrapFatal(err, "Workspace", "Marshal", "encode yaml")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.WrapFatal(err, "Workspace", "Marshal", "encode yaml")
	}
	return buf.Bytes(), nil
}

// Decode reads a whole document from r.
func Decode(r io.Reader, format Format) (*Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDocumentSize+1))
	if err != nil {
		return nil, errors.WrapTransient(err, "Workspace", "Decode", "read document")
	}
	return Unmarshal(data, format)
}

// Encode writes doc to w.
func Encode(w io.Writer, doc *Document, format Format) error {
	data, err := Marshal(doc, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return errors.WrapTransient(err, "Workspace", "Encode", "write document")
	}
	return nil
}

// ReadFile loads a document, choosing the format by extension.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Workspace", "ReadFile", fmt.Sprintf("open %s", path))
	}
	defer f.Close()
	return Decode(f, FormatFromPath(path))
}

// WriteFile saves a document, choosing the format by extension.
func WriteFile(path string, doc *Document) error {
	data, err := Marshal(doc, FormatFromPath(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapTransient(err, "Workspace", "WriteFile", fmt.Sprintf("write %s", path))
	}
	return nil
}
