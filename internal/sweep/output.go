package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes one row per result: the parameter values, the
// log-likelihood and the likelihood relative to the best point.
func WriteCSV(w io.Writer, names []string, results []ComboResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FormatHeaders(names)); err != nil {
		return err
	}

	ll := make([]float64, len(results))
	for i, r := range results {
		ll[i] = r.LogLikelihood
	}
	rel := RelativeLikelihood(ll)

	for i, r := range results {
		if len(r.Params) != len(names) {
			return fmt.Errorf("result %d has %d params, header has %d", i, len(r.Params), len(names))
		}
		row := make([]string, 0, len(names)+2)
		for _, v := range r.Params {
			row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
		}
		row = append(row,
			strconv.FormatFloat(r.LogLikelihood, 'f', 6, 64),
			strconv.FormatFloat(rel[i], 'g', 6, 64),
		)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatHeaders returns the CSV header for the given parameter names.
func FormatHeaders(names []string) []string {
	header := append([]string(nil), names...)
	return append(header, "log_likelihood", "relative_likelihood")
}
