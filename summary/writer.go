package summary

import (
	"encoding/csv"
	"io"
	"strconv"
)

var header = []string{"step", "tag", "min", "max", "num", "sum", "sum_squares"}

// Writer writes histograms as CSV records, one per histogram per step.
type Writer struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewWriter returns a Writer writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w)}
}

// Write records hs as observed at step.
func (w *Writer) Write(step int, hs []Histogram) error {
	if !w.wroteHeader {
		if err := w.w.Write(header); err != nil {
			return err
		}
		w.wroteHeader = true
	}
	s := strconv.Itoa(step)
	for _, h := range hs {
		record := []string{
			s,
			h.Name,
			formatFloat(h.Min),
			formatFloat(h.Max),
			formatFloat(h.Num),
			formatFloat(h.Sum),
			formatFloat(h.SumSquares),
		}
		if err := w.w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes any buffered records.
func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', 6, 64) }
