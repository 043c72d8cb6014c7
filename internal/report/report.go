// Package report writes query and metadata results for people and
// downstream tools: JSON with a provenance header, CSV and XLSX tables, and
// plain-text summaries.
package report

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/zeebo/errs"
)

// Error is the class of report errors.
var Error = errs.Class("report")

// Provenance identifies the content a report was computed from.
type Provenance struct {
	// Version is the data request content version.
	Version string
	// File is the base name of the content file.
	File string
	// SHA256 is the hex digest of the content file.
	SHA256 string
	// APIVersion is the version of this software.
	APIVersion string
}

// NewProvenance hashes the content file at path.
func NewProvenance(path, version, apiVersion string) (Provenance, error) {
	if version == "" {
		return Provenance{}, Error.New("must provide data request content version")
	}
	if apiVersion == "" {
		return Provenance{}, Error.New("must provide API version")
	}
	if path == "" {
		return Provenance{}, Error.New("must provide path to data request content")
	}
	f, err := os.Open(path)
	if err != nil {
		return Provenance{}, Error.Wrap(err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Provenance{}, Error.New("hash %s: %v", path, err)
	}
	return Provenance{
		Version:    version,
		File:       filepath.Base(filepath.Clean(path)),
		SHA256:     hex.EncodeToString(h.Sum(nil)),
		APIVersion: apiVersion,
	}, nil
}

func (p Provenance) addTo(header *orderedmap.OrderedMap[string, any]) {
	header.Set("dreq content version", p.Version)
	header.Set("dreq content file", p.File)
	header.Set("dreq content sha256 hash", p.SHA256)
	header.Set("dreq api version", p.APIVersion)
}

// encode writes v as four-space indented JSON.
func encode(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return Error.Wrap(err)
	}
	_, err := w.Write(buf.Bytes())
	return Error.Wrap(err)
}

// Format is an output file format chosen by extension.
type Format string

const (
	FormatJSON Format = ".json"
	FormatCSV  Format = ".csv"
	FormatXLSX Format = ".xlsx"
)

// FormatOf returns the format of a path from its extension.
func FormatOf(path string) (Format, error) {
	ext := Format(strings.ToLower(filepath.Ext(path)))
	switch ext {
	case FormatJSON, FormatCSV, FormatXLSX:
		return ext, nil
	default:
		return "", Error.New("unsupported output format %q for %s", string(ext), path)
	}
}

func createFile(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Error.Wrap(err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = Error.Wrap(cerr)
		}
	}()
	return write(f)
}
