package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/banshee-data/occupancy/internal/sampler"
)

var summaryHeader = []string{"param", "mean", "sd", "q025", "median", "q975", "rhat", "acceptance_rate", "draws"}

// WriteSummaryCSV writes one row per parameter summary.
func WriteSummaryCSV(w io.Writer, sums []sampler.Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	for _, s := range sums {
		row := []string{
			s.Name,
			formatFloat(s.Mean),
			formatFloat(s.SD),
			formatFloat(s.Q025),
			formatFloat(s.Median),
			formatFloat(s.Q975),
			formatFloat(s.RHat),
			formatFloat(s.AcceptanceRate),
			strconv.Itoa(s.Draws),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
