package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cyclescan/internal/cycle"
)

// CSVDir reads "<token>.csv" files holding date,close rows (header optional).
type CSVDir struct {
	dir string
}

// NewCSVDir returns a provider rooted at dir.
func NewCSVDir(dir string) *CSVDir {
	return &CSVDir{dir: dir}
}

// FetchSeries loads the file for token and keeps rows within [from, to].
func (c *CSVDir) FetchSeries(ctx context.Context, token string, from, to time.Time) (cycle.Series, error) {
	if err := ctx.Err(); err != nil {
		return cycle.Series{}, err
	}
	if token == "" || strings.ContainsAny(token, `/\`) {
		return cycle.Series{}, fmt.Errorf("%w: invalid token %q", ErrDataUnavailable, token)
	}

	file, err := os.Open(filepath.Join(c.dir, token+".csv"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cycle.Series{}, fmt.Errorf("%w: no file for %s", ErrDataUnavailable, token)
		}
		return cycle.Series{}, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	defer file.Close()

	obs, err := readCloses(file, from, to)
	if err != nil {
		return cycle.Series{}, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, token, err)
	}
	return normalise(token, obs)
}

func readCloses(r io.Reader, from, to time.Time) ([]cycle.Observation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	obs := make([]cycle.Observation, 0, 512)
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: expected date,close", line)
		}

		date, err := parseDate(record[0])
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		closePrice, err := decimal.NewFromString(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: close: %w", line, err)
		}
		if (!from.IsZero() && date.Before(from.Truncate(24*time.Hour))) || (!to.IsZero() && date.After(to)) {
			continue
		}
		obs = append(obs, cycle.Observation{Date: date, Close: closePrice})
	}
	return obs, nil
}

func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

var _ SeriesProvider = (*CSVDir)(nil)
