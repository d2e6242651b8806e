package dataops

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
	starctx "github.com/leapstack-labs/leaptrack/internal/starlark"
)

// ErrUnsupportedDateFeature is returned for unknown date feature names.
var ErrUnsupportedDateFeature = errors.New("unsupported date feature")

// DefaultDateFeatures are extracted when no features are requested.
var DefaultDateFeatures = []string{"year", "month", "day", "weekday"}

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006/01/02",
	"01/02/2006",
	"20060102",
}

// ParseDate parses the date formats commonly found in warehouse extracts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date", s)
}

// ExtractDateFeatures adds "<dateCol>_<feature>" columns for each requested
// feature (year, month, day, weekday with Monday=0) and saves the result as
// "date_features". Missing dates yield empty cells.
func (s *Service) ExtractDateFeatures(ctx context.Context, path, dateCol string, features []string) (string, error) {
	if len(features) == 0 {
		features = DefaultDateFeatures
	}
	extract := make([]func(time.Time) int, len(features))
	for i, f := range features {
		fn, ok := dateFeatures[f]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnsupportedDateFeature, f)
		}
		extract[i] = fn
	}

	t, err := ReadTable(path)
	if err != nil {
		return "", err
	}
	idx, err := columnIndex(t, dateCol)
	if err != nil {
		return "", err
	}

	out := artifact.Table{Columns: append([]string(nil), t.Columns...)}
	for _, f := range features {
		out.Columns = append(out.Columns, dateCol+"_"+f)
	}
	for i, row := range t.Rows {
		r := append([]string(nil), row...)
		if starctx.IsNull(row[idx]) {
			r = append(r, make([]string, len(features))...)
			out.Rows = append(out.Rows, r)
			continue
		}
		d, err := ParseDate(row[idx])
		if err != nil {
			return "", fmt.Errorf("row %d: %w", i+1, err)
		}
		for _, fn := range extract {
			r = append(r, strconv.Itoa(fn(d)))
		}
		out.Rows = append(out.Rows, r)
	}

	return s.save(ctx, out, PrefixDateFeatures)
}

// Weekday counts from Monday=0 to Sunday=6.
var dateFeatures = map[string]func(time.Time) int{
	"year":    func(t time.Time) int { return t.Year() },
	"month":   func(t time.Time) int { return int(t.Month()) },
	"day":     func(t time.Time) int { return t.Day() },
	"weekday": func(t time.Time) int { return (int(t.Weekday()) + 6) % 7 },
}
