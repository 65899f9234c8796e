// SPDX-License-Identifier: MPL-2.0

package modmanifest

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modhost/modhost/pkg/cueutil"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	// FormatCUE is module.cue.
	FormatCUE Format = "cue"
	// FormatYAML is module.yaml or module.yml.
	FormatYAML Format = "yaml"
	// FormatTOML is module.toml.
	FormatTOML Format = "toml"
)

var (
	// ErrManifestInvalid is the sentinel for every manifest failure.
	ErrManifestInvalid = errors.New("invalid module manifest")
	// ErrManifestNotFound is returned when a package holds no manifest file.
	ErrManifestNotFound = errors.New("module manifest not found")

	// manifestFiles lists accepted manifest names in lookup order.
	manifestFiles = []struct {
		name   string
		format Format
	}{
		{"module.cue", FormatCUE},
		{"module.yaml", FormatYAML},
		{"module.yml", FormatYAML},
		{"module.toml", FormatTOML},
	}
)

//go:embed module_schema.cue
var moduleSchema []byte

type (
	// Format identifies a manifest encoding.
	Format string

	// InvalidManifestError reports why a package could not be described.
	// It matches both ErrManifestInvalid and its cause under errors.Is.
	InvalidManifestError struct {
		Path  string
		Cause error
	}
)

// Error implements the error interface.
func (e *InvalidManifestError) Error() string {
	return fmt.Sprintf("invalid module manifest %s: %v", e.Path, e.Cause)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *InvalidManifestError) Unwrap() []error {
	return []error{ErrManifestInvalid, e.Cause}
}

// FindManifest returns the manifest path and format inside dir.
func FindManifest(dir string) (string, Format, error) {
	for _, mf := range manifestFiles {
		path := filepath.Join(dir, mf.name)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, mf.format, nil
		}
	}
	return "", "", ErrManifestNotFound
}

// HasManifest reports whether dir contains a manifest file.
func HasManifest(dir string) bool {
	_, _, err := FindManifest(dir)
	return err == nil
}

// ParseDir reads and validates the manifest of the package at dir.
func ParseDir(dir string) (*Descriptor, error) {
	path, format, err := FindManifest(dir)
	if err != nil {
		return nil, &InvalidManifestError{Path: dir, Cause: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InvalidManifestError{Path: path, Cause: err}
	}

	d, err := ParseBytes(data, format, path)
	if err != nil {
		return nil, err
	}
	d.Dir = dir
	return d, nil
}

// ParseBytes decodes and validates a manifest held in memory. filename is
// used for error messages and recorded as the descriptor's Source.
func ParseBytes(data []byte, format Format, filename string) (*Descriptor, error) {
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, filename); err != nil {
		return nil, &InvalidManifestError{Path: filename, Cause: err}
	}

	var (
		d   *Descriptor
		err error
	)
	switch format {
	case FormatCUE:
		d, err = decodeCUE(data, filename)
	case FormatYAML:
		d, err = decodeYAML(data)
	case FormatTOML:
		d, err = decodeTOML(data)
	default:
		err = fmt.Errorf("unsupported manifest format %q", format)
	}
	if err != nil {
		return nil, &InvalidManifestError{Path: filename, Cause: err}
	}

	if err := d.Validate(); err != nil {
		return nil, &InvalidManifestError{Path: filename, Cause: err}
	}
	d.Source = filename
	return d, nil
}

func decodeCUE(data []byte, filename string) (*Descriptor, error) {
	res, err := cueutil.ParseAndDecode[Descriptor](moduleSchema, data, "#Module", cueutil.WithFilename(filename))
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

func decodeYAML(data []byte) (*Descriptor, error) {
	var d Descriptor
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &d, nil
}

func decodeTOML(data []byte) (*Descriptor, error) {
	var d Descriptor
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode toml: %w", err)
	}
	return &d, nil
}
