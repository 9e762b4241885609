// Copyright 2025 Sensortable

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package table renders query results as analysis-ready tables, in CSV or
// fixed-width text.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/stockparfait/errors"

	"github.com/sensortable/sensortable/sensor"
)

// Row is one printable table row.
type Row interface {
	CSV() []string // an encoding/csv compatible representation
}

// Cells is the trivial Row of ready-made strings.
type Cells []string

func (c Cells) CSV() []string { return c }

// Table container with an optional header.
type Table struct {
	Header []string
	Rows   []Row
}

// New creates a Table with the given column headers.
func New(header ...string) *Table {
	return &Table{Header: header}
}

// AddRow appends one or more rows.
func (t *Table) AddRow(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// FromWide builds a table out of pivoted sensor rows. The column set is the
// union of all row columns in first-seen order, prefixed by the timestamp
// column. Absent cells render empty, like null values. Timestamps are
// formatted in loc; nil means UTC.
func FromWide(rows []sensor.Wide, loc *time.Location) *Table {
	if loc == nil {
		loc = time.UTC
	}
	var cols []sensor.ID
	seen := map[sensor.ID]bool{}
	for _, r := range rows {
		for _, c := range r.Columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	t := New(append([]string{"timestamp"}, cols...)...)
	for _, r := range rows {
		cells := make(Cells, 1+len(cols))
		cells[0] = r.Timestamp.ToTime().In(loc).Format("2006-01-02 15:04:05")
		for i, c := range cols {
			if v, ok := r.Values[c]; ok {
				cells[i+1] = v.Text()
			}
		}
		t.AddRow(cells)
	}
	return t
}

// FromRecords builds a long-format table out of point records.
func FromRecords(recs []sensor.Record, loc *time.Location) *Table {
	if loc == nil {
		loc = time.UTC
	}
	t := New("time", "sensor", "value")
	for _, r := range recs {
		t.AddRow(Cells{
			r.Time.ToTime().In(loc).Format("2006-01-02 15:04:05"),
			r.Sensor,
			r.Value.Text(),
		})
	}
	return t
}

// Params control table output.
type Params struct {
	Rows     int  // max. rows to write; 0 = unlimited
	NoHeader bool // skip the header row
}

// rowsToWrite applies the Params row limit.
func (t *Table) rowsToWrite(p Params) []Row {
	if p.Rows > 0 && p.Rows < len(t.Rows) {
		return t.Rows[:p.Rows]
	}
	return t.Rows
}

// WriteCSV writes the table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader && len(t.Header) > 0 {
		if err := cw.Write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for _, r := range t.rowsToWrite(p) {
		if err := cw.Write(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush rows")
	}
	return nil
}

// WriteText writes the table as fixed-width text with a dashed header
// separator.
func (t *Table) WriteText(w io.Writer, p Params) error {
	rows := t.rowsToWrite(p)
	var widths []int
	grow := func(cells []string) error {
		if widths == nil {
			widths = make([]int, len(cells))
		}
		if len(cells) != len(widths) {
			return errors.Reason("row size %d != expected %d", len(cells), len(widths))
		}
		for i, c := range cells {
			if n := len([]rune(c)); n > widths[i] {
				widths[i] = n
			}
		}
		return nil
	}
	header := !p.NoHeader && len(t.Header) > 0
	if header {
		if err := grow(t.Header); err != nil {
			return errors.Annotate(err, "bad header")
		}
	}
	for i, r := range rows {
		if err := grow(r.CSV()); err != nil {
			return errors.Annotate(err, "bad row %d", i+1)
		}
	}
	line := func(cells []string) error {
		padded := make([]string, len(cells))
		for i, c := range cells {
			padded[i] = fmt.Sprintf("%*s", widths[i], c)
		}
		_, err := fmt.Fprintf(w, "%s\n", strings.Join(padded, " | "))
		return err
	}
	if header {
		if err := line(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
		dashes := make([]string, len(widths))
		for i, n := range widths {
			dashes[i] = strings.Repeat("-", n)
		}
		if err := line(dashes); err != nil {
			return errors.Annotate(err, "failed to write separator")
		}
	}
	for i, r := range rows {
		if err := line(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to write row %d", i+1)
		}
	}
	return nil
}
