package fetcher

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CountRows counts records in a response body without keeping them.
//
// CSV: data rows after the header. JSON: length of the top-level array, or
// of the array found at path ("value.timeSeries"). A JSON object with no
// path counts as one record.
func CountRows(r io.Reader, format Format, path string) (int, error) {
	if format == FormatCSV {
		return countCSV(r)
	}
	return countJSON(r, path)
}

func countCSV(r io.Reader) (int, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	n := 0
	for {
		_, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return n - 1, nil
}

func countJSON(r io.Reader, path string) (int, error) {
	var doc any
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, err
	}

	if path != "" {
		for _, key := range strings.Split(path, ".") {
			obj, ok := doc.(map[string]any)
			if !ok {
				return 0, fmt.Errorf("rows path %q: %q is not an object", path, key)
			}
			doc, ok = obj[key]
			if !ok {
				// Upstreams omit empty collections.
				return 0, nil
			}
		}
	}

	switch v := doc.(type) {
	case []any:
		return len(v), nil
	case nil:
		return 0, nil
	default:
		return 1, nil
	}
}
