// Package ingest loads manifest and weighing CSV exports and watches drop
// directories for new ones.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/joseph-ayodele/cryotrace/internal/analytics"
)

// LoadStats summarizes one CSV load. Row failures do not abort the load.
type LoadStats struct {
	Rows    int
	Created int
	Skipped int
	Failed  int
	Errors  []error
}

func (s *LoadStats) fail(line int, err error) {
	s.Failed++
	s.Errors = append(s.Errors, fmt.Errorf("line %d: %w", line, err))
}

// Err joins every row error, or returns nil for a clean load.
func (s LoadStats) Err() error {
	return errors.Join(s.Errors...)
}

// table reads a CSV with a header row and gives column access by name.
type table struct {
	r       *csv.Reader
	columns map[string]int
	line    int
}

func newTable(src io.Reader) (*table, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv is empty")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[normalizeHeader(h)] = i
	}
	return &table{r: r, columns: columns, line: 1}, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

func (t *table) has(cols ...string) bool {
	return lo.EveryBy(cols, func(c string) bool {
		_, ok := t.columns[c]
		return ok
	})
}

// next returns the following non-blank row, or io.EOF.
func (t *table) next() (row, error) {
	for {
		rec, err := t.r.Read()
		t.line++
		if err != nil {
			return row{}, err
		}
		if lo.EveryBy(rec, func(f string) bool { return strings.TrimSpace(f) == "" }) {
			continue
		}
		return row{t: t, fields: rec, line: t.line}, nil
	}
}

type row struct {
	t      *table
	fields []string
	line   int
}

func (r row) get(col string) string {
	i, ok := r.t.columns[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// missing lists the given columns that are blank in this row.
func (r row) missing(cols ...string) []string {
	return lo.Filter(cols, func(c string, _ int) bool { return r.get(c) == "" })
}

func (r row) float(col string) (*float64, error) {
	s := r.get(col)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a number", col, s)
	}
	return &f, nil
}

func (r row) int64(col string) (*int64, error) {
	s := r.get(col)
	if s == "" {
		return nil, nil
	}
	// spreadsheet exports write integer ids as "12.0"
	s = strings.TrimSuffix(s, ".0")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not an integer", col, s)
	}
	return &n, nil
}

func (r row) time(col string) (*time.Time, error) {
	s := r.get(col)
	if s == "" {
		return nil, nil
	}
	t, err := analytics.ParseTimestamp(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", col, err)
	}
	return &t, nil
}
