// Package export renders simulation results as spreadsheets, CSV, the execution log
// and console summaries, and files them in artifact storage.
package export

import (
	"fmt"
	"strings"

	"github.com/newthinker/trailsim/internal/core"
)

// Format is an artifact type
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatTXT  Format = "txt"
)

// AllFormats lists every supported format in export order.
var AllFormats = []Format{FormatXLSX, FormatCSV, FormatTXT}

// ParseFormat accepts a format name case-insensitively
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatXLSX, FormatCSV, FormatTXT:
		return f, nil
	}
	return "", core.WrapError(core.ErrInvalidParameters, fmt.Errorf("unknown export format %q", s))
}

// ParseFormats parses a list of names, dropping duplicates
func ParseFormats(names []string) ([]Format, error) {
	seen := make(map[Format]bool, len(names))
	var out []Format
	for _, n := range names {
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// FileName is the artifact's name for symbol
func (f Format) FileName(symbol string) string {
	switch f {
	case FormatTXT:
		return symbol + "_summary.txt"
	default:
		return symbol + "_trades." + string(f)
	}
}

// ContentType is the MIME type served for the format
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}
