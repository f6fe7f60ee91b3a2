package source

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/schema"
)

// ReadFile parses a located file into raw records per the kind's file type.
func ReadFile(path string, ks *schema.KindSchema) ([]any, error) {
	switch ks.File {
	case schema.FileJSON:
		return ReadJSON(path)
	case schema.FileCSV:
		return ReadCSV(path)
	default:
		return nil, errs.Configf("unknown file kind %q", ks.File)
	}
}

// ReadJSON parses a JSON export file: an array of record objects, or a
// single object treated as one record.
func ReadJSON(path string) ([]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Inputf("opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var doc any
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, errs.Inputf("parsing %s: %w", filepath.Base(path), err)
	}
	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		return []any{v}, nil
	default:
		return nil, errs.Inputf("%s: top level is %T, want array or object", filepath.Base(path), doc)
	}
}

// ReadCSV parses a CSV export file with a header row into one map per data
// row, keyed by trimmed header names. Cells stay strings; coercion happens
// at field resolution.
func ReadCSV(path string) ([]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Inputf("opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, errs.Inputf("%s is empty", filepath.Base(path))
	}
	if err != nil {
		return nil, errs.Inputf("parsing %s: %w", filepath.Base(path), err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []any
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Inputf("parsing %s: %w", filepath.Base(path), err)
		}
		m := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(row) {
				m[name] = strings.TrimSpace(row[i])
			}
		}
		rows = append(rows, m)
	}
	return rows, nil
}
