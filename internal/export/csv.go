package export

import (
	"bytes"
	"encoding/csv"

	"github.com/newthinker/trailsim/internal/backtest"
)

// CSV renders the trade log with a header row
func CSV(res *backtest.Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Columns); err != nil {
		return nil, err
	}
	for _, rec := range res.Records {
		if err := w.Write(textCells(rec)); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
