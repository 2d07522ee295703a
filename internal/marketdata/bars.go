// Package marketdata loads and generates the inputs the engine consumes:
// daily bars, portfolios, quotes and entity attributes.
package marketdata

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "chaosalign/internal/errors"
	"chaosalign/internal/models"
)

// dateLayouts are the timestamp formats accepted in bar files.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// barRow is one CSV line: date,open,high,low,close,volume.
type barRow struct {
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// ReadBars parses CSV bars and returns them sorted oldest first.
func ReadBars(r io.Reader, symbol string) ([]models.Bar, error) {
	var rows []*barRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, apperrors.NewDataError("bars", symbol, "failed to parse csv", err)
	}

	bars := make([]models.Bar, 0, len(rows))
	for i, row := range rows {
		ts, err := parseDate(row.Date)
		if err != nil {
			return nil, apperrors.NewDataError("bars", symbol, fmt.Sprintf("row %d", i+1), err)
		}
		bars = append(bars, models.Bar{
			Timestamp: ts,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

// LoadBars reads a CSV bar file.
func LoadBars(path, symbol string) ([]models.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			err = apperrors.ErrDataNotFound
		}
		return nil, apperrors.NewDataError("bars", symbol, "failed to open "+path, err)
	}
	defer f.Close()
	return ReadBars(f, symbol)
}

// WriteBars writes bars as CSV.
func WriteBars(w io.Writer, bars []models.Bar) error {
	rows := make([]*barRow, len(bars))
	for i, b := range bars {
		rows[i] = &barRow{
			Date:   b.Timestamp.Format(time.RFC3339),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	return gocsv.Marshal(rows, w)
}
