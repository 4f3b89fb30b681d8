package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/repeateval/repeat/internal/query"
	"github.com/repeateval/repeat/internal/table"
)

// Output formats.
const (
	formatCSV  = "csv"
	formatJSON = "json"
)

// writeTable writes t in format.
func writeTable(w io.Writer, format string, t *table.Table) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t.Records())
	}
	return table.WriteCSV(w, t)
}

// writeResults writes one table per measure, in measure name order. With
// outDir every table goes to <outDir>/<measure>.<format>; otherwise CSV
// tables are written one after another, each preceded by a "# <measure>"
// line, and JSON as one object keyed by measure.
func writeResults(w io.Writer, format string, results query.Results, outDir string) error {
	measures := make([]string, 0, len(results))
	for m := range results {
		measures = append(measures, m)
	}
	sort.Strings(measures)

	if outDir != "" {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return err
		}
		for _, m := range measures {
			if err := writeTableFile(filepath.Join(outDir, m+"."+format), format, results[m]); err != nil {
				return err
			}
		}
		return nil
	}

	if format == formatJSON {
		out := make(map[string][]map[string]any, len(results))
		for _, m := range measures {
			out[m] = results[m].Records()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for i, m := range measures {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "# %s\n", m); err != nil {
			return err
		}
		if err := table.WriteCSV(w, results[m]); err != nil {
			return err
		}
	}
	return nil
}

func writeTableFile(path, format string, t *table.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return writeTable(f, format, t)
}

// writeList writes one value per line, or a JSON array.
func writeList[T any](w io.Writer, format string, values []T) error {
	if format == formatJSON {
		if values == nil {
			values = []T{}
		}
		return json.NewEncoder(w).Encode(values)
	}
	for _, v := range values {
		if _, err := fmt.Fprintln(w, v); err != nil {
			return err
		}
	}
	return nil
}
